// Package models defines the data the enrichment pipeline reads and writes:
// the per-row Context, the table-name and status constants of the
// reference data it looks up, and the audit/exception rows it emits. None of these types know how to persist
// themselves — that is internal/dao's job.
package models

import (
	"time"
)

// SourceType selects which subset of Context fields is meaningful and
// which step-specific branches apply.
type SourceType string

const (
	SourceBank SourceType = "BANK"
	SourceSecu SourceType = "SECU"
)

// Sentinel values used across the pipeline when a lookup cannot be
// resolved but processing must still continue (spec §6).
const (
	SentinelUnknown   = "UNKNOWN"
	SentinelSystem    = "SYSTEM"
	SentinelUnmatched = "UNMATCHED"
	BaseCurrency      = "EUR"
)

// Well-known processedSteps checkpoints (spec §4.2).
const (
	StatusCurrencyValidated    = "currency_validated"
	StatusFXConverted          = "fx_converted"
	StatusCustomerIdentified   = "customer_identified"
	StatusCounterpartyResolved = "counterparty_determined"
	StatusF14Mapped            = "f14_mapped"
	StatusF14NoMatch           = "f14_no_match"
	StatusF14NoRules           = "f14_no_rules"
	StatusCurrencyMissing      = "currency_missing"
	StatusAmountInvalid        = "amount_invalid"
)

// Well-known keys written into Context.Enrichments. Documented in one place
// per the spec's design note on the "additional data" map (§9).
const (
	EnrichCurrencyName         = "currency_name"
	EnrichCurrencySymbol       = "currency_symbol"
	EnrichCurrencyDecimals     = "currency_decimal_places"
	EnrichOriginalAmount       = "original_amount"
	EnrichOriginalCurrency     = "original_currency"
	EnrichBaseAmount           = "base_amount"
	EnrichBaseFee              = "base_fee"
	EnrichBaseCurrency         = "base_currency"
	EnrichFXRate               = "fx_rate"
	EnrichFXRateDate           = "fx_rate_date"
	EnrichFXRateSource         = "fx_rate_source"
	EnrichCustomerID           = "customer_id"
	EnrichCustomerName         = "customer_name"
	EnrichCustomerCode         = "customer_code"
	EnrichCustomerType         = "customer_type"
	EnrichCustomerBaseCurrency = "customer_base_currency"
	EnrichCustomerRiskLevel    = "customer_risk_level"
	EnrichCustomerConfidence   = "customer_confidence"
	EnrichCustomerMethod       = "customer_method"
	EnrichOtherSideBIC         = "other_side_bic"
	EnrichOtherSideName        = "other_side_name"
	EnrichCounterpartyID       = "counterparty_id"
	EnrichCounterpartyType     = "counterparty_type"
	EnrichCounterpartyBIC      = "counterparty_bic"
	EnrichCounterpartyName     = "counterparty_name"
	EnrichCounterpartyShort    = "counterparty_short_code"
	EnrichInternalType         = "internal_type"
	EnrichF14RuleID            = "f14_rule_id"
	EnrichF14RuleName          = "f14_rule_name"
	EnrichF14RulesEvaluated    = "f14_rules_evaluated"
)

// Context is the per-row, mutable, single-threaded record that flows
// through the pipeline. Fields are read and written in place by steps;
// the pipeline runtime itself never mutates a Context (spec §4.1).
type Context struct {
	TransactionID string
	StatementID   string
	SourceType    SourceType

	Currency        string
	Amount          string
	TransactionDate time.Time

	CustomerIDRaw string

	// BANK-only fields.
	OtherSideName    string
	OtherSideBic     string
	PaymentDesc      string
	ReferenceNumber  string
	DebitCredit      string
	AccountNumber    string

	// SECU-only fields.
	Ticker      string
	SecuType    string
	Description string
	Reference   string
	Fee         string

	StatementBank string

	ProcessingStatus string
	ProcessedSteps   []string
	ErrorMessage     string

	Enrichments map[string]interface{}

	// Cancel, when non-nil, is checked by the pipeline runtime between
	// steps for cooperative cancellation (spec §5).
	Cancel func() bool
}

// NewContext builds a Context with its enrichment scratch space ready to
// use. transactionId and sourceType are immutable once set (spec
// invariant), so they are required constructor arguments.
func NewContext(transactionID, statementID string, sourceType SourceType) *Context {
	return &Context{
		TransactionID: transactionID,
		StatementID:   statementID,
		SourceType:    sourceType,
		Enrichments:   make(map[string]interface{}),
	}
}

// MarkStep appends a checkpoint to ProcessedSteps (append-only invariant)
// and updates ProcessingStatus.
func (c *Context) MarkStep(status string) {
	c.ProcessingStatus = status
	c.ProcessedSteps = append(c.ProcessedSteps, status)
}

// Fail sets ErrorMessage, which gates subsequent steps' default
// shouldExecute via HasFatalError.
func (c *Context) Fail(message string) {
	c.ErrorMessage = message
}

// HasFatalError reports whether a prior step recorded a fatal error.
func (c *Context) HasFatalError() bool {
	return c.ErrorMessage != ""
}

// Field resolves a logical context field by name, used by the F14 rule
// engine to evaluate matchingField against arbitrary Context attributes.
func (c *Context) Field(name string) string {
	switch name {
	case "currency":
		return c.Currency
	case "amount":
		return c.Amount
	case "other_side_name":
		return c.OtherSideName
	case "other_side_bic":
		return c.OtherSideBic
	case "payment_description":
		return c.PaymentDesc
	case "reference_number":
		return c.ReferenceNumber
	case "debit_credit", "d_c":
		return c.DebitCredit
	case "account_number":
		return c.AccountNumber
	case "ticker":
		return c.Ticker
	case "type":
		return c.SecuType
	case "description":
		return c.Description
	case "reference":
		return c.Reference
	case "fee":
		return c.Fee
	case "statement_bank":
		return c.StatementBank
	case "source_type":
		return string(c.SourceType)
	default:
		if v, ok := c.Enrichments[name]; ok {
			return stringify(v)
		}
		return ""
	}
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

package steps

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
	"github.com/fincore/txn-enrichment/internal/pipeline"
)

var (
	directIDPattern = regexp.MustCompile(`^[A-Z]+-\d+$`)
	regTokenPattern = regexp.MustCompile(`(?i)(REG:|REG-|REGNUM:|REGISTRATION:)(\S+)`)
)

const (
	methodDirectID   = "DIRECT_ID"
	methodAccountNum = "ACCOUNT_NUMBER"
	methodExtractReg = "EXTRACTED_REGISTRATION"
	methodNamePat    = "NAME_PATTERN"
)

var methodConfidence = map[string]int{
	methodDirectID:   100,
	methodAccountNum: 95,
	methodExtractReg: 90,
	methodNamePat:    70,
}

// CustomerIdentification resolves a customer_id for BANK rows using the
// ranked method chain in spec §4.5. It never runs for SECU rows, which
// represent the bank's own book rather than a customer's.
type CustomerIdentification struct{}

func NewCustomerIdentification() *CustomerIdentification { return &CustomerIdentification{} }

func (s *CustomerIdentification) Name() string { return "customer_identification" }

func (s *CustomerIdentification) ShouldExecute(row *models.Context) bool {
	return !row.HasFatalError() && row.SourceType == models.SourceBank
}

func (s *CustomerIdentification) Run(ctx context.Context, row *models.Context, store dao.Store) pipeline.StepResult {
	customer, method, ok := identifyCustomer(ctx, store, row)

	if !ok {
		row.Enrichments[models.EnrichCustomerID] = models.SentinelUnknown
		row.Enrichments[models.EnrichCustomerConfidence] = "0"
		err := multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "MISSING_CUSTOMER", "no matching customer found", "failure"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
				ExceptionType: models.ExceptionMissingCustomer, Details: "no matching customer found",
				Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate,
				Priority: models.PriorityHigh,
			}),
		)
		row.MarkStep(models.StatusCustomerIdentified)
		return pipeline.StepResult{Success: true, Message: "customer not identified", Payload: err}
	}

	confidence := methodConfidence[method]
	row.Enrichments[models.EnrichCustomerID] = customer["id"]
	row.Enrichments[models.EnrichCustomerName] = customer["name"]
	row.Enrichments[models.EnrichCustomerCode] = customer["short_name"]
	row.Enrichments[models.EnrichCustomerType] = customer["customer_type"]
	row.Enrichments[models.EnrichCustomerBaseCurrency] = customer["base_currency"]
	row.Enrichments[models.EnrichCustomerRiskLevel] = customer["risk_level"]
	row.Enrichments[models.EnrichCustomerConfidence] = strconv.Itoa(confidence)
	row.Enrichments[models.EnrichCustomerMethod] = method

	var advisoryErr error
	if customer["status"] != models.CustomerStatusActive {
		advisoryErr = multierr.Append(advisoryErr, multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "INACTIVE_CUSTOMER", "customer "+customer["id"]+" is not active", "advisory"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
				ExceptionType: models.ExceptionInactiveCustomer, Details: "customer " + customer["id"] + " is not active",
				Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate,
				Priority: models.PriorityHigh,
			}),
		))
	}
	if confidence < 80 {
		advisoryErr = multierr.Append(advisoryErr, multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "LOW_CONFIDENCE_IDENTIFICATION", "matched via "+method, "advisory"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
				ExceptionType: models.ExceptionLowConfidenceID, Details: "matched via " + method,
				Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate,
				Priority: models.PriorityLow,
			}),
		))
	}

	if auditErr := AuditLog(ctx, store, row.TransactionID, s.Name(), "CUSTOMER_IDENTIFIED", "matched "+customer["id"]+" via "+method, "success"); auditErr != nil {
		advisoryErr = multierr.Append(advisoryErr, auditErr)
	}

	row.MarkStep(models.StatusCustomerIdentified)
	return pipeline.StepResult{Success: true, Message: "customer identified via " + method, Payload: advisoryErr}
}

// identifyCustomer walks the method chain, returning the first match.
func identifyCustomer(ctx context.Context, store dao.Store, row *models.Context) (dao.Row, string, bool) {
	if customer, ok := directIDMatch(ctx, store, row.CustomerIDRaw); ok {
		return customer, methodDirectID, true
	}
	if customer, ok := accountNumberMatch(ctx, store, row.AccountNumber); ok {
		return customer, methodAccountNum, true
	}
	if reg := extractRegistrationNumber(row.ReferenceNumber, row.PaymentDesc); reg != "" {
		if customer, ok := lookupByIdentifierFields(ctx, store, reg); ok {
			return customer, methodExtractReg, true
		}
	}
	if customer, ok := namePatternMatch(ctx, store, row.OtherSideName); ok {
		return customer, methodNamePat, true
	}
	return nil, "", false
}

// directIDMatch implements method 1: either a "CUST-123"-shaped key, or a
// registration/personal/tax ID lookup in that preference order.
func directIDMatch(ctx context.Context, store dao.Store, raw string) (dao.Row, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if directIDPattern.MatchString(raw) {
		rows, err := store.Find(ctx, models.TableCustomerMaster, "id = ?", []interface{}{raw}, "", false, 0, 1)
		if err == nil && len(rows) > 0 {
			return rows[0], true
		}
		return nil, false
	}
	return lookupByIdentifierFields(ctx, store, raw)
}

// lookupByIdentifierFields tries registrationNumber, then personalId, then
// taxId, in that preference order (spec §4.5 method 1 and method 3).
func lookupByIdentifierFields(ctx context.Context, store dao.Store, value string) (dao.Row, bool) {
	for _, field := range []string{"registration_number", "personal_id", "tax_id"} {
		rows, err := store.Find(ctx, models.TableCustomerMaster, field+" = ?", []interface{}{value}, "id", false, 0, 1)
		if err == nil && len(rows) > 0 {
			return rows[0], true
		}
	}
	return nil, false
}

// accountNumberMatch implements method 2: customer-account mapping first,
// then bankAccountNumber/primaryAccount on the customer master directly.
func accountNumberMatch(ctx context.Context, store dao.Store, accountNumber string) (dao.Row, bool) {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, false
	}

	mappings, err := store.Find(ctx, models.TableCustomerAccount,
		"account_number = ? AND status = ?", []interface{}{accountNumber, models.StatusActive}, "", false, 0, 1)
	if err == nil && len(mappings) > 0 {
		row, found, err := store.Load(ctx, models.TableCustomerMaster, mappings[0]["customer_id"])
		if err == nil && found {
			return row, true
		}
	}

	for _, field := range []string{"bank_account_number", "primary_account"} {
		rows, err := store.Find(ctx, models.TableCustomerMaster, field+" = ?", []interface{}{accountNumber}, "id", false, 0, 1)
		if err == nil && len(rows) > 0 {
			return rows[0], true
		}
	}
	return nil, false
}

// extractRegistrationNumber scans referenceNumber and paymentDescription
// for a REG/REGNUM/REGISTRATION-prefixed token (spec §4.5 method 3).
func extractRegistrationNumber(referenceNumber, paymentDesc string) string {
	for _, field := range []string{referenceNumber, paymentDesc} {
		if m := regTokenPattern.FindStringSubmatch(field); m != nil {
			return strings.TrimSpace(m[2])
		}
	}
	return ""
}

// namePatternMatch implements method 4: exact match on name/shortName,
// falling back to a length-gated substring match either direction.
func namePatternMatch(ctx context.Context, store dao.Store, otherSideName string) (dao.Row, bool) {
	name := strings.ToUpper(strings.TrimSpace(otherSideName))
	if name == "" {
		return nil, false
	}

	candidates, err := store.Find(ctx, models.TableCustomerMaster, "", nil, "id", false, 0, 0)
	if err != nil {
		return nil, false
	}

	for _, c := range candidates {
		if strings.ToUpper(c["name"]) == name || strings.ToUpper(c["short_name"]) == name {
			return c, true
		}
	}

	for _, c := range candidates {
		for _, field := range []string{c["name"], c["short_name"]} {
			candidate := strings.ToUpper(field)
			if candidate == "" {
				continue
			}
			if substringMatch(name, candidate) {
				return c, true
			}
		}
	}
	return nil, false
}

// substringMatch accepts a either-direction substring match only when both
// strings are at least 5 characters and the shorter is at least 70% the
// length of the longer (spec §4.5 method 4).
func substringMatch(a, b string) bool {
	if len(a) < 5 || len(b) < 5 {
		return false
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return false
	}
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return float64(shorter) >= 0.70*float64(longer)
}

// Package steps implements the five domain enrichment steps as
// pipeline.Step implementations, plus the helpers they share for parsing
// amounts, appending audit log entries, and raising exception rows.
package steps

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/errors"
	"github.com/fincore/txn-enrichment/internal/models"
)

var amountCleanRe = regexp.MustCompile(`[^0-9.\-]`)

// ParseAmount strips currency symbols/thousands separators/whitespace and
// parses the remainder as a decimal, preserving a leading sign. Amount
// arithmetic uses decimal; only amountPriority's banding converts the
// absolute amount to float64.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := amountCleanRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return decimal.Zero, &errors.ErrValidation{Field: "amount", Message: "empty or unparsable: " + raw}
	}
	amt, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &errors.ErrValidation{Field: "amount", Message: err.Error()}
	}
	return amt, nil
}

// AuditLog appends a best-effort audit_log row. Failing to write an audit
// entry must never fail the step it documents, so callers fold its error
// into a multierr.Combine alongside any exception-emission error instead
// of returning early.
func AuditLog(ctx context.Context, store dao.Store, transactionID, stepName, action, details, status string) error {
	row := dao.Row{
		"id":             uuid.NewString(),
		"transaction_id": transactionID,
		"step_name":      stepName,
		"action":         action,
		"details":        details,
		"timestamp":      time.Now().UTC().Format(time.RFC3339Nano),
		"status":         status,
	}
	return store.SaveOrUpdate(ctx, models.TableAuditLog, row)
}

// RaiseException appends an exception_queue row, deriving assignedTo and
// dueDate from priority the way spec §4.2's SLA table prescribes.
func RaiseException(ctx context.Context, store dao.Store, ex models.ExceptionRow) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.Status == "" {
		ex.Status = models.ExceptionStatusPending
	}
	if ex.ExceptionDate.IsZero() {
		ex.ExceptionDate = time.Now().UTC()
	}
	if ex.AssignedTo == "" {
		fxSpecific := ex.ExceptionType == models.ExceptionFXRateMissing || ex.ExceptionType == models.ExceptionOldFXRate
		ex.AssignedTo = models.AssigneeFor(ex.Priority, fxSpecific)
	}
	if ex.DueDate.IsZero() {
		ex.DueDate = models.DueDateFor(ex.Priority, ex.ExceptionDate)
	}

	row := dao.Row{
		"id":               ex.ID,
		"transaction_id":   ex.TransactionID,
		"statement_id":     ex.StatementID,
		"source_type":      string(ex.SourceType),
		"exception_type":   ex.ExceptionType,
		"details":          ex.Details,
		"amount":           ex.Amount,
		"currency":         ex.Currency,
		"transaction_date": ex.TransactionDate.UTC().Format(time.RFC3339Nano),
		"priority":         ex.Priority,
		"status":           ex.Status,
		"assigned_to":      ex.AssignedTo,
		"due_date":         ex.DueDate.UTC().Format(time.RFC3339Nano),
		"exception_date":   ex.ExceptionDate.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range ex.Context {
		row["ctx_"+k] = v
	}
	return store.SaveOrUpdate(ctx, models.TableExceptionQueue, row)
}

// amountPriority derives the severity priority for an amount given as a raw
// (possibly unparsed) Context amount string, per the amount-derived
// priority table in spec §4.3. An unparsable amount is treated as zero
// (lowest priority) rather than blocking exception emission.
func amountPriority(rawAmount string) string {
	amt, err := ParseAmount(rawAmount)
	if err != nil {
		return models.PriorityLow
	}
	f, _ := amt.Abs().Float64()
	return models.AmountPriority(f)
}


package steps

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/errors"
	"github.com/fincore/txn-enrichment/internal/models"
	"github.com/fincore/txn-enrichment/internal/pipeline"
)

// CurrencyValidation is the first domain step: it normalizes the
// Context's currency and confirms it is a known, active currency.
type CurrencyValidation struct{}

func NewCurrencyValidation() *CurrencyValidation { return &CurrencyValidation{} }

func (s *CurrencyValidation) Name() string { return "currency_validation" }

func (s *CurrencyValidation) ShouldExecute(row *models.Context) bool {
	return !row.HasFatalError()
}

func (s *CurrencyValidation) Run(ctx context.Context, row *models.Context, store dao.Store) pipeline.StepResult {
	priority := amountPriority(row.Amount)

	if strings.TrimSpace(row.Currency) == "" {
		err := multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "MISSING_CURRENCY", "currency field is empty", "failure"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID:   row.TransactionID,
				StatementID:     row.StatementID,
				SourceType:      row.SourceType,
				ExceptionType:   models.ExceptionMissingCurrency,
				Details:         "currency field is empty",
				Amount:          row.Amount,
				Currency:        row.Currency,
				TransactionDate: row.TransactionDate,
				Priority:        priority,
			}),
		)
		row.Fail("currency field is empty")
		row.MarkStep(models.StatusCurrencyMissing)
		return pipeline.StepResult{Success: false, Message: "currency field is empty and was flagged", Payload: err}
	}

	normalized := strings.ToUpper(strings.TrimSpace(row.Currency))
	row.Currency = normalized

	rows, err := store.Find(ctx, models.TableCurrencyMaster, "code = ?", []interface{}{normalized}, "", false, 0, 1)
	if err != nil || len(rows) == 0 || rows[0]["status"] != models.StatusActive {
		details := "unknown or inactive currency: " + normalized
		notFound := &errors.ErrNotFound{Table: models.TableCurrencyMaster, Key: normalized}
		emitErr := multierr.Append(notFound, multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "INVALID_CURRENCY", details, "failure"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID:   row.TransactionID,
				StatementID:     row.StatementID,
				SourceType:      row.SourceType,
				ExceptionType:   models.ExceptionInvalidCurrency,
				Details:         details,
				Amount:          row.Amount,
				Currency:        normalized,
				TransactionDate: row.TransactionDate,
				Priority:        priority,
			}),
		))
		return pipeline.StepResult{Success: false, Message: details, Payload: emitErr}
	}

	master := rows[0]
	row.Enrichments[models.EnrichCurrencyName] = master["name"]
	row.Enrichments[models.EnrichCurrencySymbol] = master["symbol"]
	row.Enrichments[models.EnrichCurrencyDecimals] = master["decimal_places"]

	if err := AuditLog(ctx, store, row.TransactionID, s.Name(), "CURRENCY_VALIDATED", "currency "+normalized+" is active", "success"); err != nil {
		// Audit emission never fails the row; surface it only as a message.
		row.MarkStep(models.StatusCurrencyValidated)
		return pipeline.StepResult{Success: true, Message: "currency validated (audit log failed: " + err.Error() + ")"}
	}

	row.MarkStep(models.StatusCurrencyValidated)
	return pipeline.StepResult{Success: true, Message: "currency validated"}
}

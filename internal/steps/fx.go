package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
	"github.com/fincore/txn-enrichment/internal/pipeline"
)

const fxLookbackDays = 5

// FXConversion converts the Context's amount into the EUR base currency,
// tolerating a short lookback window of stale rates (spec §4.4).
type FXConversion struct{}

func NewFXConversion() *FXConversion { return &FXConversion{} }

func (s *FXConversion) Name() string { return "fx_conversion" }

func (s *FXConversion) ShouldExecute(row *models.Context) bool {
	return !row.HasFatalError()
}

func (s *FXConversion) Run(ctx context.Context, row *models.Context, store dao.Store) pipeline.StepResult {
	priority := amountPriority(row.Amount)

	if row.Currency == "" {
		err := multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "MISSING_CURRENCY", "currency field is empty", "failure"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
				ExceptionType: models.ExceptionMissingCurrency, Details: "currency field is empty",
				Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate, Priority: priority,
			}),
		)
		row.Fail("currency field is empty")
		row.MarkStep(models.StatusCurrencyMissing)
		return pipeline.StepResult{Success: false, Message: "currency field is empty", Payload: err}
	}

	amount, err := ParseAmount(row.Amount)
	if err != nil {
		row.Fail("cannot parse amount: " + err.Error())
		row.MarkStep(models.StatusAmountInvalid)
		return pipeline.StepResult{Success: false, Message: err.Error()}
	}

	if row.Currency == models.BaseCurrency {
		row.Enrichments[models.EnrichOriginalAmount] = amount.StringFixed(2)
		row.Enrichments[models.EnrichOriginalCurrency] = row.Currency
		row.Enrichments[models.EnrichBaseAmount] = amount.StringFixed(2)
		row.Enrichments[models.EnrichBaseCurrency] = models.BaseCurrency
		row.Enrichments[models.EnrichFXRate] = "1.0"
		row.Enrichments[models.EnrichFXRateSource] = "BASE_CURRENCY"
		row.MarkStep(models.StatusFXConverted)
		return pipeline.StepResult{Success: true, Message: "already in base currency"}
	}

	fxDate := row.TransactionDate
	rate, rateDate, ageDays, found := findFXRate(ctx, store, row.Currency, fxDate)

	if !found {
		details := fmt.Sprintf("no active fx rate for %s within %d days of %s", row.Currency, fxLookbackDays, fxDate.Format("2006-01-02"))
		emitErr := multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "FX_RATE_MISSING", details, "failure"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
				ExceptionType: models.ExceptionFXRateMissing, Details: details,
				Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate,
				Priority: models.PriorityHigh,
			}),
		)
		row.Enrichments[models.EnrichOriginalAmount] = amount.StringFixed(2)
		row.Enrichments[models.EnrichOriginalCurrency] = row.Currency
		row.Enrichments[models.EnrichBaseAmount] = "0.00"
		row.Enrichments[models.EnrichBaseCurrency] = models.BaseCurrency
		row.Enrichments[models.EnrichFXRate] = "0"
		row.MarkStep(models.StatusFXConverted)
		return pipeline.StepResult{Success: true, Message: details, Payload: emitErr}
	}

	var advisoryErr error
	if ageDays > 0 {
		details := fmt.Sprintf("using fx rate from %s, %d day(s) old", rateDate.Format("2006-01-02"), ageDays)
		advisoryErr = multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "OLD_FX_RATE", details, "advisory"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
				ExceptionType: models.ExceptionOldFXRate, Details: details,
				Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate,
				Priority: models.PriorityLow,
			}),
		)
	}

	baseAmount := amount.Mul(rate).Round(2)
	row.Enrichments[models.EnrichOriginalAmount] = amount.StringFixed(2)
	row.Enrichments[models.EnrichOriginalCurrency] = row.Currency
	row.Enrichments[models.EnrichBaseAmount] = baseAmount.StringFixed(2)
	row.Enrichments[models.EnrichBaseCurrency] = models.BaseCurrency
	row.Enrichments[models.EnrichFXRate] = rate.String()
	row.Enrichments[models.EnrichFXRateDate] = rateDate.Format("2006-01-02")
	row.Enrichments[models.EnrichFXRateSource] = models.TableFXRatesEUR

	if row.Fee != "" {
		if fee, ferr := ParseAmount(row.Fee); ferr == nil {
			row.Enrichments[models.EnrichBaseFee] = fee.Mul(rate).Round(2).StringFixed(2)
		}
	}

	if auditErr := AuditLog(ctx, store, row.TransactionID, s.Name(), "BASE_CURRENCY_CALCULATED", "converted "+row.Currency+" to EUR", "success"); auditErr != nil {
		advisoryErr = multierr.Append(advisoryErr, auditErr)
	}

	row.MarkStep(models.StatusFXConverted)
	return pipeline.StepResult{Success: true, Message: "converted to base currency", Payload: advisoryErr}
}

// findFXRate returns the EUR-per-unit conversion rate for currency at
// fxDate: the exact-date active rate if present, otherwise the most
// recent active rate within the lookback window. ageDays is how many
// days older than fxDate the chosen rate's effectiveDate is.
func findFXRate(ctx context.Context, store dao.Store, currency string, fxDate time.Time) (rate decimal.Decimal, rateDate time.Time, ageDays int, found bool) {
	rows, err := store.Find(ctx, models.TableFXRatesEUR,
		"target_currency = ? AND status = ?",
		[]interface{}{currency, models.StatusActive}, "", false, 0, 0)
	if err != nil || len(rows) == 0 {
		return decimal.Zero, time.Time{}, 0, false
	}

	var bestDate time.Time
	var bestRow dao.Row
	haveBest := false

	for _, r := range rows {
		d, err := time.Parse("2006-01-02", r["effective_date"])
		if err != nil {
			continue
		}
		if d.After(fxDate) {
			continue
		}
		age := int(fxDate.Sub(d).Hours() / 24)
		if age > fxLookbackDays {
			continue
		}
		if !haveBest || d.After(bestDate) {
			bestDate = d
			bestRow = r
			haveBest = true
		}
	}

	if !haveBest {
		return decimal.Zero, time.Time{}, 0, false
	}

	exchangeRate, err := decimal.NewFromString(bestRow["exchange_rate"])
	if err != nil || exchangeRate.IsZero() {
		return decimal.Zero, time.Time{}, 0, false
	}

	rate = decimal.NewFromInt(1).DivRound(exchangeRate, 10)
	ageDays = int(fxDate.Sub(bestDate).Hours() / 24)
	return rate, bestDate, ageDays, true
}

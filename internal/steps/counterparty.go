package steps

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
	"github.com/fincore/txn-enrichment/internal/pipeline"
)

// CounterpartyDetermination resolves the counterparty for a row to the
// statement-issuing bank — deliberately not the "other side" of the
// transaction, per the confirmed design decision in spec §9 item 2.
type CounterpartyDetermination struct{}

func NewCounterpartyDetermination() *CounterpartyDetermination { return &CounterpartyDetermination{} }

func (s *CounterpartyDetermination) Name() string { return "counterparty_determination" }

func (s *CounterpartyDetermination) ShouldExecute(row *models.Context) bool {
	return !row.HasFatalError()
}

func (s *CounterpartyDetermination) Run(ctx context.Context, row *models.Context, store dao.Store) pipeline.StepResult {
	row.Enrichments[models.EnrichOtherSideBIC] = row.OtherSideBic
	row.Enrichments[models.EnrichOtherSideName] = row.OtherSideName

	var match dao.Row
	var found bool

	switch row.SourceType {
	case models.SourceBank:
		match, found = findCounterparty(ctx, store, models.CounterpartyBank, row.StatementBank)
	case models.SourceSecu:
		match, found = findSecuCounterparty(ctx, store, row)
	}

	if !found {
		priority := amountPriority(row.Amount)
		err := multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "COUNTERPARTY_NOT_FOUND", "no active counterparty for BIC "+row.StatementBank, "failure"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
				ExceptionType: models.ExceptionCounterpartyNotFound, Details: "no active counterparty for BIC " + row.StatementBank,
				Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate, Priority: priority,
			}),
		)
		row.Enrichments[models.EnrichCounterpartyID] = models.SentinelUnknown
		row.MarkStep(models.StatusCounterpartyResolved)
		return pipeline.StepResult{Success: true, Message: "counterparty not found", Payload: err}
	}

	row.Enrichments[models.EnrichCounterpartyID] = match["id"]
	row.Enrichments[models.EnrichCounterpartyType] = match["counterparty_type"]
	row.Enrichments[models.EnrichCounterpartyBIC] = match["bic"]
	row.Enrichments[models.EnrichCounterpartyName] = match["name"]
	row.Enrichments[models.EnrichCounterpartyShort] = match["short_code"]

	if err := AuditLog(ctx, store, row.TransactionID, s.Name(), "COUNTERPARTY_DETERMINED", "resolved to "+match["id"], "success"); err != nil {
		row.MarkStep(models.StatusCounterpartyResolved)
		return pipeline.StepResult{Success: true, Message: "counterparty determined (audit log failed: " + err.Error() + ")"}
	}

	row.MarkStep(models.StatusCounterpartyResolved)
	return pipeline.StepResult{Success: true, Message: "counterparty determined"}
}

// findCounterparty looks up an active counterparty row of the given type
// whose BIC field matches bic, then resolves a human-readable name for it.
func findCounterparty(ctx context.Context, store dao.Store, counterpartyType, bic string) (dao.Row, bool) {
	if bic == "" {
		return nil, false
	}

	var bicField string
	switch counterpartyType {
	case models.CounterpartyBank:
		bicField = "bank_id"
	case models.CounterpartyCustodian:
		bicField = "custodian_id"
	case models.CounterpartyBroker:
		bicField = "broker_id"
	default:
		return nil, false
	}

	rows, err := store.Find(ctx, models.TableCounterparty,
		"counterparty_type = ? AND "+bicField+" = ? AND is_active = ?",
		[]interface{}{counterpartyType, bic, "true"}, "", false, 0, 1)
	if err != nil || len(rows) == 0 {
		return nil, false
	}

	row := rows[0].Clone()
	row["bic"] = bic
	row["name"] = resolveCounterpartyName(ctx, store, counterpartyType, bic)
	return row, true
}

// findSecuCounterparty implements the SECU branch of spec §4.6: the
// counterparty type is inferred from the row's transaction type and
// description, then resolved against the statement bank's BIC, with a
// broker-table indirection when the inferred type is Broker.
func findSecuCounterparty(ctx context.Context, store dao.Store, row *models.Context) (dao.Row, bool) {
	counterpartyType := inferSecuCounterpartyType(row.SecuType, row.Description)

	if counterpartyType == models.CounterpartyBroker {
		brokers, err := store.Find(ctx, models.TableBroker, "bic = ?", []interface{}{row.StatementBank}, "", false, 0, 1)
		if err != nil || len(brokers) == 0 {
			return nil, false
		}
		rows, err := store.Find(ctx, models.TableCounterparty,
			"counterparty_type = ? AND broker_id = ? AND is_active = ?",
			[]interface{}{models.CounterpartyBroker, brokers[0]["id"], "true"}, "", false, 0, 1)
		if err != nil || len(rows) == 0 {
			return nil, false
		}
		out := rows[0].Clone()
		out["bic"] = row.StatementBank
		out["name"] = brokers[0]["name"]
		return out, true
	}

	return findCounterparty(ctx, store, counterpartyType, row.StatementBank)
}

// inferSecuCounterpartyType maps a free-form SECU transaction type
// description to a counterparty type per spec §4.6.
func inferSecuCounterpartyType(secuType, description string) string {
	combined := strings.ToUpper(secuType + " " + description)
	switch {
	case strings.Contains(combined, "BUY") || strings.Contains(combined, "SELL") || strings.Contains(combined, "TRADE"):
		return models.CounterpartyBroker
	case strings.Contains(combined, "CUSTODY") || strings.Contains(combined, "SAFEKEEPING") ||
		strings.Contains(combined, "DIVIDEND") || strings.Contains(combined, "CORPORATE"):
		return models.CounterpartyCustodian
	default:
		return models.CounterpartyCustodian
	}
}

// resolveCounterpartyName looks up the bank or broker master row for a
// display name to attach to the matched counterparty.
func resolveCounterpartyName(ctx context.Context, store dao.Store, counterpartyType, bic string) string {
	switch counterpartyType {
	case models.CounterpartyBank, models.CounterpartyCustodian:
		rows, err := store.Find(ctx, models.TableBank, "bic = ?", []interface{}{bic}, "", false, 0, 1)
		if err == nil && len(rows) > 0 {
			return rows[0]["name"]
		}
	case models.CounterpartyBroker:
		rows, err := store.Find(ctx, models.TableBroker, "bic = ?", []interface{}{bic}, "", false, 0, 1)
		if err == nil && len(rows) > 0 {
			return rows[0]["name"]
		}
	}
	return ""
}

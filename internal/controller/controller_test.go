package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
	"github.com/fincore/txn-enrichment/internal/pipeline"
)

type fakeLoader struct {
	contexts []*models.Context
	err      error
}

func (f fakeLoader) LoadData(_ context.Context, _ dao.Store, _ Config) ([]*models.Context, error) {
	return f.contexts, f.err
}

type fakePersister struct {
	err      error
	persisted []*models.Context
	result    pipeline.BatchResult
}

func (f *fakePersister) Persist(_ context.Context, contexts []*models.Context, result pipeline.BatchResult) error {
	f.persisted = contexts
	f.result = result
	return f.err
}

func bankContext(id string) *models.Context {
	row := models.NewContext(id, "STMT-1", models.SourceBank)
	row.Currency = "EUR"
	row.Amount = "100.00"
	return row
}

func TestEnrichmentController_RunsRowsThroughFixedStepOrder(t *testing.T) {
	loader := fakeLoader{contexts: []*models.Context{bankContext("TXN-1")}}
	persister := &fakePersister{}
	store := dao.NewMemoryStore()

	ctl := New(loader, persister, store, nil)
	report, err := ctl.Run(context.Background(), Config{BatchID: "batch-1"})

	require.NoError(t, err)
	assert.Equal(t, "batch-1", report.BatchID)
	assert.Equal(t, 1, report.TotalCount)
	require.Len(t, persister.persisted, 1)

	var stepNames []string
	for _, outcome := range persister.result.RowResults[0].StepOutcomes {
		stepNames = append(stepNames, outcome.StepName)
	}
	assert.Equal(t, []string{
		"currency_validation",
		"fx_conversion",
		"customer_identification",
		"counterparty_determination",
		"f14_mapping",
	}, stepNames)
}

func TestEnrichmentController_PropagatesLoaderError(t *testing.T) {
	loader := fakeLoader{err: errors.New("load failed")}
	persister := &fakePersister{}

	ctl := New(loader, persister, dao.NewMemoryStore(), nil)
	_, err := ctl.Run(context.Background(), Config{})

	assert.Error(t, err)
}

func TestEnrichmentController_PropagatesPersistError(t *testing.T) {
	loader := fakeLoader{contexts: []*models.Context{bankContext("TXN-1")}}
	persister := &fakePersister{err: errors.New("persist failed")}

	ctl := New(loader, persister, dao.NewMemoryStore(), nil)
	_, err := ctl.Run(context.Background(), Config{})

	assert.Error(t, err)
}

func TestEnrichmentController_ReportAggregatesStepSuccessRate(t *testing.T) {
	loader := fakeLoader{contexts: []*models.Context{bankContext("TXN-1"), bankContext("TXN-2")}}
	persister := &fakePersister{}
	store := dao.NewMemoryStore()
	store.(dao.Seeder).Seed(models.TableCurrencyMaster,
		dao.Row{"id": "EUR", "code": "EUR", "name": "Euro", "status": models.StatusActive},
	)

	ctl := New(loader, persister, store, nil)
	report, err := ctl.Run(context.Background(), Config{})

	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalCount)
	assert.Equal(t, 2, report.StepSuccessRate["currency_validation"])
	assert.Equal(t, 2, report.StepSuccessRate["fx_conversion"])
}

// Package controller wires the loader, the pipeline, and the persister
// together into the thin orchestration layer described in spec §4.8. It
// contains no business logic of its own.
package controller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
	"github.com/fincore/txn-enrichment/internal/pipeline"
	"github.com/fincore/txn-enrichment/internal/steps"
)

// Loader delivers a batch of pre-populated Contexts for a run, the way
// spec §6 describes loadData(dao, config) -> [Context].
type Loader interface {
	LoadData(ctx context.Context, store dao.Store, config Config) ([]*models.Context, error)
}

// Persister receives the enriched Contexts and the BatchResult once the
// pipeline has run. Its internals are out of scope (spec §6); the
// contract is one success per Context it accepts.
type Persister interface {
	Persist(ctx context.Context, contexts []*models.Context, result pipeline.BatchResult) error
}

// Config carries the only options the pipeline's semantics respond to
// (spec §6): whether a failed step aborts the rest of a row, and an
// optional batch identifier surfaced in logs and reports.
type Config struct {
	StopOnError bool
	BatchID     string
}

// Report is the aggregate outcome of a controller run: totals, per-step
// success counts, and timing (spec §4.8).
type Report struct {
	BatchID         string
	TotalCount      int
	SuccessCount    int
	FailureCount    int
	Elapsed         time.Duration
	StepSuccessRate map[string]int
}

// EnrichmentController loads rows, runs them through the fixed step
// order, and hands the result to the persister.
type EnrichmentController struct {
	loader    Loader
	persister Persister
	store     dao.Store
	log       *zap.Logger
}

// New builds a controller over the given loader, persister, store, and
// logger.
func New(loader Loader, persister Persister, store dao.Store, log *zap.Logger) *EnrichmentController {
	return &EnrichmentController{loader: loader, persister: persister, store: store, log: log}
}

// buildPipeline wires the five domain steps in the declared order
// currency -> fx -> customer -> counterparty -> f14 (spec §4.8).
func (c *EnrichmentController) buildPipeline(config Config) *pipeline.Pipeline {
	return pipeline.New(c.log).
		AddStep(steps.NewCurrencyValidation()).
		AddStep(steps.NewFXConversion()).
		AddStep(steps.NewCustomerIdentification()).
		AddStep(steps.NewCounterpartyDetermination()).
		AddStep(steps.NewF14Mapping()).
		SetStopOnError(config.StopOnError)
}

// Run executes one full controller cycle: load, pipeline, persist,
// report.
func (c *EnrichmentController) Run(ctx context.Context, config Config) (Report, error) {
	contexts, err := c.loader.LoadData(ctx, c.store, config)
	if err != nil {
		return Report{}, err
	}

	p := c.buildPipeline(config)
	batch := p.ExecuteBatch(ctx, contexts, c.store)

	if err := c.persister.Persist(ctx, contexts, batch); err != nil {
		return Report{}, err
	}

	return buildReport(config.BatchID, batch), nil
}

func buildReport(batchID string, batch pipeline.BatchResult) Report {
	stepSuccess := make(map[string]int)
	for _, row := range batch.RowResults {
		for _, outcome := range row.StepOutcomes {
			if outcome.Result.Success {
				stepSuccess[outcome.StepName]++
			}
		}
	}

	return Report{
		BatchID:         batchID,
		TotalCount:      batch.TotalCount,
		SuccessCount:    batch.SuccessCount,
		FailureCount:    batch.FailureCount,
		Elapsed:         batch.Elapsed,
		StepSuccessRate: stepSuccess,
	}
}

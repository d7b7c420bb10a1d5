// Package pipeline runs an ordered list of enrichment steps over a
// models.Context, one row at a time, isolating each row's panics and
// errors from the rest of the batch the way the teacher's population jobs
// isolate one day's fetch failure from the rest of the run (see
// internal/services/price_population_service.go: PopulatePrices keeps
// going after a single day errors and only fails the whole job on a
// harder condition).
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/errors"
	"github.com/fincore/txn-enrichment/internal/models"
)

// Step is one stage of enrichment. ShouldExecute lets a step opt out
// without being removed from the pipeline (e.g. customer identification
// skips SECU rows).
type Step interface {
	Name() string
	ShouldExecute(row *models.Context) bool
	Run(ctx context.Context, row *models.Context, store dao.Store) StepResult
}

// StepResult is what a single step reports about a single row.
type StepResult struct {
	Success bool
	Message string
	Payload interface{}
}

// StepOutcome pairs a step's name with its result, preserving the order
// steps actually ran in for a given row.
type StepOutcome struct {
	StepName string
	Result   StepResult
}

// RowResult is the outcome of running every applicable step over one
// Context.
type RowResult struct {
	TransactionID  string
	StepOutcomes   []StepOutcome
	OverallSuccess bool
	Elapsed        time.Duration
}

// BatchResult aggregates RowResults across an executeBatch call.
type BatchResult struct {
	RowResults   []RowResult
	TotalCount   int
	SuccessCount int
	FailureCount int
	Elapsed      time.Duration
}

// Pipeline runs its Steps, in registration order, over one or many
// Contexts.
type Pipeline struct {
	steps       []Step
	stopOnError bool
	log         *zap.Logger
}

// New builds an empty Pipeline. Steps are added with AddStep.
func New(log *zap.Logger) *Pipeline {
	return &Pipeline{log: log}
}

// AddStep appends a step to the end of the pipeline and returns the
// pipeline for chaining, matching the builder style the teacher uses for
// its repository/service constructors.
func (p *Pipeline) AddStep(step Step) *Pipeline {
	p.steps = append(p.steps, step)
	return p
}

// SetStopOnError controls whether a failed step aborts the remaining
// steps for that row (true) or whether the pipeline keeps running later
// steps regardless (false, the default used by the enrichment
// controller). With false, each later step still decides for itself
// through ShouldExecute whether to run after an earlier failure.
func (p *Pipeline) SetStopOnError(stop bool) *Pipeline {
	p.stopOnError = stop
	return p
}

// Execute runs every applicable step over a single Context and returns
// its RowResult. A panicking step is recovered and reported as a failed
// StepResult rather than crashing the batch.
func (p *Pipeline) Execute(ctx context.Context, row *models.Context, store dao.Store) RowResult {
	start := time.Now()
	result := RowResult{TransactionID: row.TransactionID, OverallSuccess: true}

	for _, step := range p.steps {
		if row.Cancel != nil && row.Cancel() {
			result.StepOutcomes = append(result.StepOutcomes, StepOutcome{
				StepName: step.Name(),
				Result:   StepResult{Success: false, Message: "cancelled"},
			})
			result.OverallSuccess = false
			break
		}

		if !step.ShouldExecute(row) {
			result.StepOutcomes = append(result.StepOutcomes, StepOutcome{
				StepName: step.Name(),
				Result:   StepResult{Success: true, Message: "skipped"},
			})
			continue
		}

		outcome := p.runStep(ctx, step, row, store)
		result.StepOutcomes = append(result.StepOutcomes, outcome)
		if !outcome.Result.Success {
			result.OverallSuccess = false
			if p.stopOnError {
				break
			}
		}
	}

	result.Elapsed = time.Since(start)
	return result
}

// runStep invokes a single step with panic recovery, turning a panic
// into an ErrFatal-backed failure so one misbehaving step can never take
// down the batch.
func (p *Pipeline) runStep(ctx context.Context, step Step, row *models.Context, store dao.Store) (outcome StepOutcome) {
	outcome.StepName = step.Name()
	defer func() {
		if r := recover(); r != nil {
			err := &errors.ErrFatal{Step: step.Name(), Cause: r}
			if p.log != nil {
				p.log.Error("step panicked", zap.String("step", step.Name()), zap.Any("cause", r))
			}
			row.Fail(err.Error())
			outcome.Result = StepResult{Success: false, Message: err.Error()}
		}
	}()
	outcome.Result = step.Run(ctx, row, store)
	return outcome
}

// ExecuteBatch runs Execute over every Context, isolating each row's
// failures from the rest of the batch.
func (p *Pipeline) ExecuteBatch(ctx context.Context, contexts []*models.Context, store dao.Store) BatchResult {
	start := time.Now()
	batch := BatchResult{TotalCount: len(contexts)}

	for _, c := range contexts {
		row := p.Execute(ctx, c, store)
		batch.RowResults = append(batch.RowResults, row)
		if row.OverallSuccess {
			batch.SuccessCount++
		} else {
			batch.FailureCount++
		}
	}

	batch.Elapsed = time.Since(start)
	if p.log != nil {
		p.log.Info("batch complete",
			zap.Int("succeeded", batch.SuccessCount),
			zap.Int("total", batch.TotalCount),
			zap.Duration("elapsed", batch.Elapsed),
		)
	}
	return batch
}

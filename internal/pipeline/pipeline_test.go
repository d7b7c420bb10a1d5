package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
)

// fakeStep is a hand-written mock of the Step interface, following the
// teacher's pattern of hand-rolled test doubles over a mocking framework.
type fakeStep struct {
	name      string
	should    bool
	result    StepResult
	panicWith interface{}
	calls     int
}

func (f *fakeStep) Name() string                          { return f.name }
func (f *fakeStep) ShouldExecute(row *models.Context) bool { return f.should }
func (f *fakeStep) Run(_ context.Context, row *models.Context, _ dao.Store) StepResult {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result
}

func newRow(id string) *models.Context {
	return models.NewContext(id, "STMT-1", models.SourceBank)
}

func TestPipeline_ExecuteRunsStepsInOrder(t *testing.T) {
	var order []string
	step1 := &fakeStep{name: "a", should: true, result: StepResult{Success: true}}
	step2 := &fakeStep{name: "b", should: true, result: StepResult{Success: true}}

	p := New(nil).AddStep(step1).AddStep(step2)
	row := newRow("TXN-1")
	result := p.Execute(context.Background(), row, dao.NewMemoryStore())

	for _, o := range result.StepOutcomes {
		order = append(order, o.StepName)
	}
	assert.Equal(t, []string{"a", "b"}, order)
	assert.True(t, result.OverallSuccess)
	assert.Equal(t, 1, step1.calls)
	assert.Equal(t, 1, step2.calls)
}

func TestPipeline_SkipsStepsThatShouldNotExecute(t *testing.T) {
	skipped := &fakeStep{name: "skip-me", should: false}
	p := New(nil).AddStep(skipped)
	result := p.Execute(context.Background(), newRow("TXN-1"), dao.NewMemoryStore())

	require.Len(t, result.StepOutcomes, 1)
	assert.Equal(t, "skip-me", result.StepOutcomes[0].StepName)
	assert.True(t, result.StepOutcomes[0].Result.Success)
	assert.Equal(t, "skipped", result.StepOutcomes[0].Result.Message)
	assert.Equal(t, 0, skipped.calls)
}

func TestPipeline_ContinuesAfterFailureByDefault(t *testing.T) {
	failing := &fakeStep{name: "fails", should: true, result: StepResult{Success: false}}
	after := &fakeStep{name: "after", should: true, result: StepResult{Success: true}}

	p := New(nil).AddStep(failing).AddStep(after)
	result := p.Execute(context.Background(), newRow("TXN-1"), dao.NewMemoryStore())

	require.Len(t, result.StepOutcomes, 2)
	assert.False(t, result.OverallSuccess)
	assert.Equal(t, 1, after.calls)
}

func TestPipeline_StopsOnErrorWhenConfigured(t *testing.T) {
	failing := &fakeStep{name: "fails", should: true, result: StepResult{Success: false}}
	after := &fakeStep{name: "after", should: true, result: StepResult{Success: true}}

	p := New(nil).AddStep(failing).AddStep(after).SetStopOnError(true)
	result := p.Execute(context.Background(), newRow("TXN-1"), dao.NewMemoryStore())

	require.Len(t, result.StepOutcomes, 1)
	assert.Equal(t, 0, after.calls)
}

func TestPipeline_RecoversFromPanic(t *testing.T) {
	panicking := &fakeStep{name: "boom", should: true, panicWith: "kaboom"}
	p := New(nil).AddStep(panicking)
	row := newRow("TXN-1")
	result := p.Execute(context.Background(), row, dao.NewMemoryStore())

	require.Len(t, result.StepOutcomes, 1)
	assert.False(t, result.StepOutcomes[0].Result.Success)
	assert.True(t, row.HasFatalError())
}

func TestPipeline_EachStepNameAppearsAtMostOnce(t *testing.T) {
	step := &fakeStep{name: "only-once", should: true, result: StepResult{Success: true}}
	p := New(nil).AddStep(step)
	result := p.Execute(context.Background(), newRow("TXN-1"), dao.NewMemoryStore())

	seen := map[string]int{}
	for _, o := range result.StepOutcomes {
		seen[o.StepName]++
	}
	for name, count := range seen {
		assert.Equalf(t, 1, count, "step %s ran %d times", name, count)
	}
}

// failsForID fails only for one chosen transaction ID, letting a single
// ExecuteBatch run exercise both a successful and a failing row.
type failsForID struct{ targetID string }

func (failsForID) Name() string                          { return "conditional" }
func (failsForID) ShouldExecute(row *models.Context) bool { return true }
func (f failsForID) Run(_ context.Context, row *models.Context, _ dao.Store) StepResult {
	if row.TransactionID == f.targetID {
		return StepResult{Success: false, Message: "boom"}
	}
	return StepResult{Success: true}
}

func TestPipeline_ExecuteBatchIsolatesRowFailures(t *testing.T) {
	good := newRow("TXN-GOOD")
	bad := newRow("TXN-BAD")

	p := New(nil).AddStep(failsForID{targetID: "TXN-BAD"})
	batch := p.ExecuteBatch(context.Background(), []*models.Context{good, bad}, dao.NewMemoryStore())

	assert.Equal(t, 2, batch.TotalCount)
	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
}

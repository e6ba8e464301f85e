package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/opspilot/internal/application/capability"
	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// scriptedDiagnoser replays diagnoses (or errors) in call order, recording
// the contexts it was invoked with.
type scriptedDiagnoser struct {
	results  []*task.DiagnosisResult
	errs     []error
	calls    int
	contexts []map[string]any
}

func (d *scriptedDiagnoser) Diagnose(_ context.Context, rc capability.RequestContext) (*task.DiagnosisResult, error) {
	d.contexts = append(d.contexts, rc.Context)
	idx := d.calls
	d.calls++
	if idx < len(d.errs) && d.errs[idx] != nil {
		return nil, d.errs[idx]
	}
	if idx < len(d.results) {
		return d.results[idx], nil
	}
	if len(d.results) > 0 {
		return d.results[len(d.results)-1], nil
	}
	return nil, fmt.Errorf("no diagnosis scripted for call %d", idx)
}

func diagnosisWithConfidence(rootCause string, confidences ...float64) *task.DiagnosisResult {
	solutions := make([]task.Solution, 0, len(confidences))
	for i, c := range confidences {
		solutions = append(solutions, task.Solution{
			Description: fmt.Sprintf("%s solution %d", rootCause, i),
			Confidence:  c,
		})
	}
	return &task.DiagnosisResult{RootCause: rootCause, Solutions: solutions}
}

func TestRefinementLoop_ConfidentFirstPassSkipsDeepAnalysis(t *testing.T) {
	inv := &scriptedDiagnoser{results: []*task.DiagnosisResult{
		diagnosisWithConfidence("disk full", 0.9, 0.85),
	}}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	diag, err := loop.Run(context.Background(), capability.RequestContext{Task: "disk alerts"})
	require.NoError(t, err)
	assert.Equal(t, "disk full", diag.RootCause)
	// A confident low-complexity diagnosis goes straight to solution
	// generation and finalizes: two invocations, no deep pass.
	assert.Equal(t, 2, inv.calls)
	assert.NotContains(t, inv.contexts[1], "previous_root_cause")
	assert.Equal(t, "disk full", inv.contexts[1]["confirmed_root_cause"])
}

func TestRefinementLoop_HighComplexityForcesDeepAnalysis(t *testing.T) {
	high := diagnosisWithConfidence("cascading failure", 0.95)
	high.Complexity = "high"
	high.RiskLevel = "high"
	inv := &scriptedDiagnoser{results: []*task.DiagnosisResult{high}}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	diag, err := loop.Run(context.Background(), capability.RequestContext{Task: "region outage"})
	require.NoError(t, err)
	assert.Equal(t, "cascading failure", diag.RootCause)
	// Even a confident diagnosis is deepened when it judges the problem
	// high complexity or high risk: initial, deep, then solutions.
	assert.Equal(t, 3, inv.calls)
	assert.Equal(t, "cascading failure", inv.contexts[1]["previous_root_cause"])
}

func TestRefinementLoop_RespectsInvocationCeiling(t *testing.T) {
	// Confidence never reaches the threshold; the loop must stop at the
	// ceiling regardless.
	low := diagnosisWithConfidence("unclear", 0.4)
	inv := &scriptedDiagnoser{results: []*task.DiagnosisResult{low}}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	diag, err := loop.Run(context.Background(), capability.RequestContext{Task: "flaky deploys"})
	require.NoError(t, err)
	require.NotNil(t, diag)
	assert.LessOrEqual(t, inv.calls, 5)
	assert.Equal(t, 5, inv.calls)
}

func TestRefinementLoop_DeepAnalysisGetsPriorFindings(t *testing.T) {
	suspect := diagnosisWithConfidence("suspect dns", 0.5)
	suspect.Complexity = "high"
	inv := &scriptedDiagnoser{results: []*task.DiagnosisResult{
		suspect,
		diagnosisWithConfidence("confirmed dns", 0.9),
		diagnosisWithConfidence("confirmed dns", 0.9),
	}}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	diag, err := loop.Run(context.Background(), capability.RequestContext{Task: "intermittent timeouts"})
	require.NoError(t, err)
	assert.Equal(t, "confirmed dns", diag.RootCause)

	// Second call is the deep-analysis pass and carries the first result.
	require.GreaterOrEqual(t, inv.calls, 2)
	deepCtx := inv.contexts[1]
	assert.Equal(t, "suspect dns", deepCtx["previous_root_cause"])
	assert.Contains(t, deepCtx, "refinement_request")
}

func TestRefinementLoop_MergesSolutions(t *testing.T) {
	inv := &scriptedDiagnoser{results: []*task.DiagnosisResult{
		diagnosisWithConfidence("bad cert", 0.5),
		diagnosisWithConfidence("bad cert", 0.6),
		diagnosisWithConfidence("bad cert rotate", 0.95),
	}}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	diag, err := loop.Run(context.Background(), capability.RequestContext{Task: "tls failures"})
	require.NoError(t, err)
	// Solutions from every pass are unioned by description.
	descriptions := map[string]bool{}
	for _, s := range diag.Solutions {
		descriptions[s.Description] = true
	}
	assert.True(t, descriptions["bad cert solution 0"])
	assert.True(t, descriptions["bad cert rotate solution 0"])
}

func TestRefinementLoop_InitialErrorSurfaces(t *testing.T) {
	inv := &scriptedDiagnoser{errs: []error{
		fmt.Errorf("completion service: boom"),
		fmt.Errorf("completion service: boom"),
	}}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	_, err := loop.Run(context.Background(), capability.RequestContext{Task: "anything"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")
	// A failed initial pass gets one recovery attempt through solution
	// generation before the loop gives up.
	assert.Equal(t, 2, inv.calls)
}

func TestRefinementLoop_InitialErrorRecoversThroughSolutionGeneration(t *testing.T) {
	inv := &scriptedDiagnoser{
		errs:    []error{fmt.Errorf("completion service: boom")},
		results: []*task.DiagnosisResult{nil, diagnosisWithConfidence("recovered cause", 0.9)},
	}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	diag, err := loop.Run(context.Background(), capability.RequestContext{Task: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "recovered cause", diag.RootCause)
	assert.Equal(t, 2, inv.calls)
	// The recovery attempt starts over from the bare request.
	assert.NotContains(t, inv.contexts[1], "confirmed_root_cause")
}

func TestRefinementLoop_LaterErrorKeepsBestDiagnosis(t *testing.T) {
	inv := &scriptedDiagnoser{
		results: []*task.DiagnosisResult{diagnosisWithConfidence("partial", 0.5), nil},
		errs:    []error{nil, fmt.Errorf("rate limited")},
	}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	diag, err := loop.Run(context.Background(), capability.RequestContext{Task: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "partial", diag.RootCause)
	assert.Equal(t, 2, inv.calls)
}

func TestRefinementLoop_NoSolutionsFinalizesEarly(t *testing.T) {
	inv := &scriptedDiagnoser{results: []*task.DiagnosisResult{
		{RootCause: "known transient", Solutions: nil},
	}}
	loop := NewRefinementLoop(inv, 5, 0.8, nil)

	diag, err := loop.Run(context.Background(), capability.RequestContext{Task: "blip"})
	require.NoError(t, err)
	assert.Equal(t, "known transient", diag.RootCause)
	// One solution-generation pass runs, then the empty solution list
	// finalizes the loop.
	assert.Equal(t, 2, inv.calls)
}

package workflow

import (
	"context"
	"fmt"

	"github.com/opspilot/opspilot/internal/application/capability"
	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// Refinement stages. The loop moves between them until the confidence
// check decides the diagnosis is good enough or the invocation ceiling is
// reached.
const (
	stageInitialAnalysis    = "initial_analysis"
	stageDeepAnalysis       = "deep_analysis"
	stageSolutionGeneration = "solution_generation"
	stageConfidenceCheck    = "confidence_check"
	stageFinalize           = "finalize"
)

type diagnoseInvoker interface {
	Diagnose(ctx context.Context, rc capability.RequestContext) (*task.DiagnosisResult, error)
}

// RefinementLoop deepens a diagnosis over multiple invocations. Every
// model invocation counts against the recursion ceiling; the confidence
// check and finalize stages are free. A diagnosis whose weakest solution
// meets the confidence threshold ends the loop early.
type RefinementLoop struct {
	invoker       diagnoseInvoker
	maxRecursions int
	threshold     float64
	logf          LogFunc
}

// NewRefinementLoop builds a loop with the given invocation ceiling and
// confidence threshold. Non-positive arguments fall back to 5 and 0.8.
func NewRefinementLoop(invoker diagnoseInvoker, maxRecursions int, threshold float64, logf LogFunc) *RefinementLoop {
	if maxRecursions <= 0 {
		maxRecursions = 5
	}
	if threshold <= 0 {
		threshold = 0.8
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &RefinementLoop{invoker: invoker, maxRecursions: maxRecursions, threshold: threshold, logf: logf}
}

// Run executes the staged refinement and returns the best diagnosis seen.
// The error is non-nil only when no invocation produced a diagnosis at all.
func (l *RefinementLoop) Run(ctx context.Context, rc capability.RequestContext) (*task.DiagnosisResult, error) {
	var best *task.DiagnosisResult
	var lastErr error
	invocations := 0
	stage := stageInitialAnalysis

	for {
		// The ceiling gates every invoking stage; only finalize may run
		// once the budget is spent.
		if stage != stageFinalize && stage != stageConfidenceCheck && invocations >= l.maxRecursions {
			stage = stageFinalize
		}
		l.logf("refinement: stage %s, invocation %d/%d", stage, invocations, l.maxRecursions)

		switch stage {
		case stageInitialAnalysis:
			diag, err := l.invoker.Diagnose(ctx, rc)
			invocations++
			if err != nil {
				lastErr = err
				stage = stageSolutionGeneration
				continue
			}
			best = diag
			if shouldDeepAnalyze(diag) {
				stage = stageDeepAnalysis
			} else {
				stage = stageSolutionGeneration
			}

		case stageDeepAnalysis:
			diag, err := l.invoker.Diagnose(ctx, l.deepContext(rc, best))
			invocations++
			if err != nil {
				lastErr = err
				stage = stageConfidenceCheck
				continue
			}
			if best != nil {
				diag.Solutions = mergeSolutions(best.Solutions, diag.Solutions)
			}
			best = diag
			stage = stageSolutionGeneration

		case stageSolutionGeneration:
			// With no diagnosis to build on (the initial pass errored) this
			// is a plain recovery attempt.
			request := rc
			if best != nil {
				request = l.solutionContext(rc, best)
			}
			diag, err := l.invoker.Diagnose(ctx, request)
			invocations++
			switch {
			case err != nil:
				lastErr = err
			case best == nil:
				best = diag
				lastErr = nil
			default:
				best.Solutions = mergeSolutions(best.Solutions, diag.Solutions)
				lastErr = nil
			}
			stage = stageConfidenceCheck

		case stageConfidenceCheck:
			switch {
			case lastErr != nil, invocations >= l.maxRecursions:
				stage = stageFinalize
			case best == nil:
				stage = stageInitialAnalysis
			case len(best.Solutions) == 0, best.MinConfidence() >= l.threshold:
				stage = stageFinalize
			default:
				stage = stageDeepAnalysis
			}

		case stageFinalize:
			if best == nil {
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, fmt.Errorf("refinement produced no diagnosis")
			}
			l.logf("refinement: finalized after %d invocation(s), min confidence %.2f",
				invocations, best.MinConfidence())
			return best, nil
		}
	}
}

// shouldDeepAnalyze reports whether the initial diagnosis warrants a deep
// pass before solutions are generated: absent findings or a high
// complexity or risk judgement.
func shouldDeepAnalyze(diag *task.DiagnosisResult) bool {
	if diag == nil {
		return true
	}
	return diag.Complexity == "high" || diag.RiskLevel == "high"
}

func (l *RefinementLoop) deepContext(rc capability.RequestContext, best *task.DiagnosisResult) capability.RequestContext {
	enriched := cloneContext(rc.Context)
	if best != nil {
		enriched["previous_root_cause"] = best.RootCause
		enriched["previous_min_confidence"] = fmt.Sprintf("%.2f", best.MinConfidence())
	}
	enriched["refinement_request"] = "The previous analysis was not confident enough. Re-examine the issue and refine the root cause."
	return capability.RequestContext{Task: rc.Task, Context: enriched}
}

func (l *RefinementLoop) solutionContext(rc capability.RequestContext, best *task.DiagnosisResult) capability.RequestContext {
	enriched := cloneContext(rc.Context)
	enriched["confirmed_root_cause"] = best.RootCause
	enriched["refinement_request"] = "Propose additional high-confidence solutions for the confirmed root cause."
	return capability.RequestContext{Task: rc.Task, Context: enriched}
}

func cloneContext(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+3)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// mergeSolutions unions two solution lists by description, keeping the
// higher confidence on duplicates.
func mergeSolutions(existing, incoming []task.Solution) []task.Solution {
	merged := make([]task.Solution, len(existing))
	copy(merged, existing)
	for _, candidate := range incoming {
		found := false
		for i := range merged {
			if merged[i].Description == candidate.Description {
				if candidate.Confidence > merged[i].Confidence {
					merged[i] = candidate
				}
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, candidate)
		}
	}
	return merged
}

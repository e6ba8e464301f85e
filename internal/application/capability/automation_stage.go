package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// RetryAttemptMarker tags per-attempt automation errors so downstream
// merging can tell transient attempts from a final failure.
const RetryAttemptMarker = "will retry"

// IsRetryInternal reports whether an error message describes a transient
// automation attempt rather than a final stage outcome. The automation
// substring check is deliberately broad so legacy attempt messages are
// caught too.
func IsRetryInternal(msg string) bool {
	if strings.Contains(msg, RetryAttemptMarker) {
		return true
	}
	return strings.Contains(msg, "automation") && strings.Contains(msg, "failed")
}

type automateInvoker interface {
	Automate(ctx context.Context, rc RequestContext) (*task.ScriptResult, error)
}

// AutomationOutcome is the terminal result of a bounded retry run. Exactly
// one of Script and FatalError is set; AttemptErrors holds the transient
// failures preceding either.
type AutomationOutcome struct {
	Script        *task.ScriptResult
	AttemptErrors []string
	FatalError    string
}

// Succeeded reports whether any attempt produced a script.
func (o AutomationOutcome) Succeeded() bool {
	return o.Script != nil
}

// AutomationStage wraps script generation with bounded retries. Input is
// validated once before the first attempt; an invalid request never
// consumes an attempt.
type AutomationStage struct {
	invoker     automateInvoker
	maxAttempts int
	delay       time.Duration
	logf        LogFunc
}

// NewAutomationStage builds a stage with the given retry budget and
// inter-attempt delay. maxAttempts below 1 is raised to 1.
func NewAutomationStage(invoker automateInvoker, maxAttempts int, delay time.Duration, logf LogFunc) *AutomationStage {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &AutomationStage{invoker: invoker, maxAttempts: maxAttempts, delay: delay, logf: logf}
}

// Run executes automation until it succeeds, the retry budget is spent, or
// the context is canceled.
func (s *AutomationStage) Run(ctx context.Context, rc RequestContext) AutomationOutcome {
	if isBlank(rc.Task) {
		return AutomationOutcome{FatalError: "automation input invalid: request text is empty"}
	}

	var attemptErrors []string
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		script, err := s.invoker.Automate(ctx, rc)
		if err == nil {
			return AutomationOutcome{Script: script, AttemptErrors: attemptErrors}
		}
		lastErr = err
		s.logf("automation attempt %d/%d: %v", attempt, s.maxAttempts, err)

		if attempt == s.maxAttempts {
			break
		}
		attemptErrors = append(attemptErrors,
			fmt.Sprintf("automation attempt %d/%d failed: %v (%s)", attempt, s.maxAttempts, err, RetryAttemptMarker))

		select {
		case <-ctx.Done():
			return AutomationOutcome{
				AttemptErrors: attemptErrors,
				FatalError:    fmt.Sprintf("automation canceled: %v", ctx.Err()),
			}
		case <-time.After(s.delay):
		}
	}

	return AutomationOutcome{
		AttemptErrors: attemptErrors,
		FatalError:    fmt.Sprintf("automation exhausted %d attempts: last error: %v", s.maxAttempts, lastErr),
	}
}

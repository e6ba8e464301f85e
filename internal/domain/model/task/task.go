package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opspilot/opspilot/internal/domain/model"
)

// ErrInvalidTransition is returned when a status change would violate the
// task lifecycle
var ErrInvalidTransition = errors.New("invalid status transition")

// Plan is the human-readable execution plan shown while a task waits for
// approval
type Plan struct {
	Steps   []string `json:"steps"`
	Summary string   `json:"summary"`
}

// NewPlan builds the approval plan for a classification: one "Execute"
// step per required capability plus a one-line summary.
func NewPlan(c model.Classification) *Plan {
	steps := make([]string, 0, len(c.RequiredCapabilities))
	for _, capability := range c.RequiredCapabilities {
		steps = append(steps, fmt.Sprintf("Execute %s", capability))
	}
	return &Plan{
		Steps: steps,
		Summary: fmt.Sprintf("Will execute %d capabilities for %s task",
			len(c.RequiredCapabilities), c.Category),
	}
}

// Record is the task aggregate: one submitted request, its classification,
// lifecycle status, accumulated errors and the merged result payload.
// Records are owned by the task repository and mutated only by the
// orchestrating use case and the approval flow; they are never deleted.
type Record struct {
	ID             model.TaskID
	Request        string
	Status         model.Status
	Classification *model.Classification
	Plan           *Plan
	Result         Result
	Errors         []string
	FatalError     string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// New creates a task record for a request, starting in pending_approval
// until the submit flow decides between immediate execution and the
// approval gate.
func New(request string, now time.Time) (*Record, error) {
	if strings.TrimSpace(request) == "" {
		return nil, errors.New("request text cannot be empty")
	}
	return &Record{
		ID:        model.NewTaskID(),
		Request:   request,
		Status:    model.StatusPendingApproval,
		CreatedAt: now,
	}, nil
}

// UpdateStatus transitions the record to a new status, enforcing the
// lifecycle transition table
func (r *Record) UpdateStatus(next model.Status) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	return nil
}

// AwaitApproval parks the record behind the approval gate with its plan
func (r *Record) AwaitApproval(plan *Plan) error {
	if err := r.UpdateStatus(model.StatusWaitingApproval); err != nil {
		return err
	}
	r.Plan = plan
	return nil
}

// Begin marks the record as executing
func (r *Record) Begin() error {
	return r.UpdateStatus(model.StatusInProgress)
}

// Finish records the terminal outcome of a workflow run. The status comes
// from the merge step and may legitimately remain in_progress when neither
// the completed nor the failed condition holds.
func (r *Record) Finish(status model.Status, result Result, errs []string, now time.Time) error {
	if status != model.StatusInProgress {
		if err := r.UpdateStatus(status); err != nil {
			return err
		}
	}
	r.Result = result
	r.Errors = errs
	r.CompletedAt = &now
	return nil
}

// Fail records a fatal error that prevented the workflow from producing a
// merged result
func (r *Record) Fail(cause string, now time.Time) error {
	if err := r.UpdateStatus(model.StatusFailed); err != nil {
		return err
	}
	r.FatalError = cause
	r.CompletedAt = &now
	return nil
}

// Reject terminates a waiting record without running any capability
func (r *Record) Reject(now time.Time) error {
	if err := r.UpdateStatus(model.StatusRejected); err != nil {
		return err
	}
	r.CompletedAt = &now
	return nil
}

// Duration reports how long the task has run, using the completion time
// for finished tasks and the current time otherwise
func (r *Record) Duration(now time.Time) time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.CreatedAt)
	}
	return now.Sub(r.CreatedAt)
}

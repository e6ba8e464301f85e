package model

import (
	"errors"

	"github.com/google/uuid"
)

// TaskID represents a unique identifier for a task
type TaskID struct {
	value string
}

// NewTaskID creates a new TaskID
func NewTaskID() TaskID {
	return TaskID{value: uuid.New().String()}
}

// NewTaskIDFromString creates a TaskID from an existing string
func NewTaskIDFromString(id string) (TaskID, error) {
	if id == "" {
		return TaskID{}, errors.New("task ID cannot be empty")
	}
	return TaskID{value: id}, nil
}

// String returns the string representation
func (t TaskID) String() string {
	return t.value
}

// Equals checks if two TaskIDs are equal
func (t TaskID) Equals(other TaskID) bool {
	return t.value == other.value
}

// Status represents the lifecycle status of a task
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusInProgress      Status = "in_progress"
	StatusWaitingApproval Status = "waiting_approval"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusRejected        Status = "rejected"
)

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingApproval, StatusInProgress, StatusWaitingApproval,
		StatusCompleted, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		// Re-asserting the current status is a no-op, not a violation
		return !s.IsTerminal()
	}

	validTransitions := map[Status][]Status{
		StatusPendingApproval: {StatusWaitingApproval, StatusInProgress, StatusRejected, StatusFailed},
		StatusWaitingApproval: {StatusInProgress, StatusRejected, StatusFailed},
		StatusInProgress:      {StatusCompleted, StatusFailed},
		StatusCompleted:       {},
		StatusFailed:          {},
		StatusRejected:        {},
	}

	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == next {
			return true
		}
	}
	return false
}

// Category represents a task category derived from request text
type Category string

const (
	CategorySimple   Category = "simple"
	CategoryComplex  Category = "complex"
	CategoryCritical Category = "critical"
)

// String returns the string representation
func (c Category) String() string {
	return string(c)
}

// IsValid validates the category
func (c Category) IsValid() bool {
	switch c {
	case CategorySimple, CategoryComplex, CategoryCritical:
		return true
	default:
		return false
	}
}

// Capability identifies one of the specialized language-model-backed
// functions a workflow run may execute
type Capability string

const (
	CapabilityDiagnose Capability = "diagnose"
	CapabilityAutomate Capability = "automate"
	CapabilityDraft    Capability = "draft"
)

// String returns the string representation
func (c Capability) String() string {
	return string(c)
}

// IsValid validates the capability
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityDiagnose, CapabilityAutomate, CapabilityDraft:
		return true
	default:
		return false
	}
}

// AllCapabilities returns every capability in execution order
func AllCapabilities() []Capability {
	return []Capability{CapabilityDiagnose, CapabilityAutomate, CapabilityDraft}
}

// Level is a coarse complexity or risk grade
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// String returns the string representation
func (l Level) String() string {
	return string(l)
}

package dto

import (
	"time"

	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// TaskResponse is the standardized result shape returned to callers for
// every task operation (submit, approve, reject, get, list).
type TaskResponse struct {
	TaskID          string                `json:"task_id"`
	Status          string                `json:"status"`
	DurationSeconds float64               `json:"duration_seconds"`
	Error           string                `json:"error,omitempty"`
	Diagnosis       *task.DiagnosisResult `json:"diagnosis,omitempty"`
	Script          *task.ScriptResult    `json:"script,omitempty"`
	EmailDraft      string                `json:"email_draft,omitempty"`
	Commands        []string              `json:"commands"`
	Plan            *task.Plan            `json:"plan,omitempty"`
	Errors          []string              `json:"errors,omitempty"`
}

// FromRecord maps a task record to its response shape
func FromRecord(r *task.Record, now time.Time) *TaskResponse {
	resp := &TaskResponse{
		TaskID:          r.ID.String(),
		Status:          r.Status.String(),
		DurationSeconds: r.Duration(now).Seconds(),
		Error:           r.FatalError,
		Diagnosis:       r.Result.Diagnosis,
		Script:          r.Result.Script,
		EmailDraft:      r.Result.EmailDraft,
		Commands:        r.Result.Commands,
		Plan:            r.Plan,
		Errors:          r.Errors,
	}
	if resp.Commands == nil {
		resp.Commands = []string{}
	}
	return resp
}

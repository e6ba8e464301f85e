// Package workflow orchestrates classified requests through the capability
// stages and merges stage outputs into a task outcome.
package workflow

import (
	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// LogFunc receives printf-style progress lines from workflow execution.
type LogFunc func(format string, args ...interface{})

// State accumulates stage outputs over one workflow run. Stages only add
// to it; the merge step reads it once at the end.
type State struct {
	TaskID         string
	Request        string
	Classification model.Classification

	Diagnosis *task.DiagnosisResult
	Script    *task.ScriptResult
	Draft     *task.DraftResult

	// Errors collects stage errors in occurrence order, including the
	// transient automation attempts later filtered by the merge step.
	Errors []string
}

package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
)

func stateFor(required []model.Capability) *State {
	return &State{
		TaskID:  "t-1",
		Request: "restart the web tier",
		Classification: model.Classification{
			Category:             model.CategoryComplex,
			RequiredCapabilities: required,
		},
	}
}

func TestMerge_AllRequiredCompleted(t *testing.T) {
	st := stateFor([]model.Capability{model.CapabilityDiagnose, model.CapabilityAutomate, model.CapabilityDraft})
	st.Diagnosis = &task.DiagnosisResult{RootCause: "stale config"}
	st.Script = &task.ScriptResult{Code: "az vm restart --name web01", Commands: []string{"az vm restart --name web01"}}
	st.Draft = &task.DraftResult{Text: "All done."}

	status, result, errs := Merge(st)
	assert.Equal(t, model.StatusCompleted, status)
	assert.Equal(t, "All done.", result.EmailDraft)
	assert.Empty(t, errs)
}

func TestMerge_StatusCoversEveryRequiredSubset(t *testing.T) {
	// For every subset of required capabilities and every completion
	// pattern: completed exactly when all required produced output,
	// otherwise failed when a visible error names a capability, otherwise
	// still in progress.
	all := []model.Capability{model.CapabilityDiagnose, model.CapabilityAutomate, model.CapabilityDraft}
	for mask := 1; mask < 8; mask++ {
		var required []model.Capability
		for i, c := range all {
			if mask&(1<<i) != 0 {
				required = append(required, c)
			}
		}
		for done := 0; done < 8; done++ {
			st := stateFor(required)
			if done&1 != 0 {
				st.Diagnosis = &task.DiagnosisResult{RootCause: "x"}
			}
			if done&2 != 0 {
				st.Script = &task.ScriptResult{Code: "az vm list"}
			}
			if done&4 != 0 {
				st.Draft = &task.DraftResult{Text: "mail"}
			}
			for _, c := range required {
				if !producedOutput(c, done) {
					st.Errors = append(st.Errors, stageError(c))
				}
			}

			status, _, _ := Merge(st)
			name := fmt.Sprintf("mask=%d done=%d", mask, done)
			if mask&done == mask {
				assert.Equal(t, model.StatusCompleted, status, name)
			} else {
				assert.Equal(t, model.StatusFailed, status, name)
			}
		}
	}
}

func producedOutput(c model.Capability, done int) bool {
	switch c {
	case model.CapabilityDiagnose:
		return done&1 != 0
	case model.CapabilityAutomate:
		return done&2 != 0
	default:
		return done&4 != 0
	}
}

func stageError(c model.Capability) string {
	switch c {
	case model.CapabilityDiagnose:
		return "diagnose stage: completion service: down"
	case model.CapabilityAutomate:
		return "automation exhausted 3 attempts: last error: down"
	default:
		return "draft stage: completion service: down"
	}
}

func TestMerge_MissingOutputWithoutErrorStaysInProgress(t *testing.T) {
	st := stateFor([]model.Capability{model.CapabilityDiagnose, model.CapabilityDraft})
	st.Diagnosis = &task.DiagnosisResult{RootCause: "x"}
	// Draft produced nothing but no error was recorded either.

	status, _, errs := Merge(st)
	assert.Equal(t, model.StatusInProgress, status)
	assert.Empty(t, errs)
}

func TestMerge_ErrorNamingNonRequiredCapabilityDoesNotFail(t *testing.T) {
	st := stateFor([]model.Capability{model.CapabilityDraft})
	// A stray error blames a capability that was never required.
	st.Errors = []string{"diagnose stage: completion service: down"}

	status, _, errs := Merge(st)
	assert.Equal(t, model.StatusInProgress, status)
	// The error stays visible even though it decides nothing.
	require.Len(t, errs, 1)
}

func TestMerge_ErrorOnCapabilityWithResultDoesNotFail(t *testing.T) {
	st := stateFor([]model.Capability{model.CapabilityDiagnose, model.CapabilityDraft})
	st.Diagnosis = &task.DiagnosisResult{RootCause: "x"}
	// Diagnose produced a result despite the recorded error; draft simply
	// never ran, so nothing actually failed.
	st.Errors = []string{"diagnose stage: partial telemetry"}

	status, _, _ := Merge(st)
	assert.Equal(t, model.StatusInProgress, status)
}

func TestMerge_RetryInternalErrorsAreFiltered(t *testing.T) {
	st := stateFor([]model.Capability{model.CapabilityAutomate})
	st.Script = &task.ScriptResult{Code: "az vm restart --name web01"}
	st.Errors = []string{
		"automation attempt 1/3 failed: parse error (will retry)",
		"automation attempt 2/3 failed: parse error (will retry)",
	}

	status, _, errs := Merge(st)
	assert.Equal(t, model.StatusCompleted, status)
	assert.Empty(t, errs)
}

func TestMerge_ExhaustionErrorSurvivesAndFails(t *testing.T) {
	st := stateFor([]model.Capability{model.CapabilityAutomate})
	st.Errors = []string{
		"automation attempt 1/3 failed: boom (will retry)",
		"automation attempt 2/3 failed: boom (will retry)",
		"automation exhausted 3 attempts: last error: boom",
	}

	status, _, errs := Merge(st)
	assert.Equal(t, model.StatusFailed, status)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "exhausted")
}

func TestMerge_CommandsDerivedFromScriptBody(t *testing.T) {
	st := stateFor([]model.Capability{model.CapabilityAutomate})
	st.Script = &task.ScriptResult{Code: "# comment\naz group list\nGet-AzVM"}

	_, result, _ := Merge(st)
	assert.Equal(t, []string{"az group list", "Get-AzVM"}, result.Commands)
}

func TestMerge_CommandsNeverNil(t *testing.T) {
	st := stateFor([]model.Capability{model.CapabilityDiagnose})
	st.Diagnosis = &task.DiagnosisResult{RootCause: "x"}

	_, result, _ := Merge(st)
	assert.NotNil(t, result.Commands)
	assert.Empty(t, result.Commands)
}

func TestCoerceDraft(t *testing.T) {
	assert.Empty(t, coerceDraft(nil))
	assert.Equal(t, "plain", coerceDraft(&task.DraftResult{Text: "plain"}))
	assert.Equal(t, "from body", coerceDraft(&task.DraftResult{Structured: map[string]any{"body": "from body"}}))

	rendered := coerceDraft(&task.DraftResult{Structured: map[string]any{"subject": "hi"}})
	assert.Contains(t, rendered, `"subject"`)
}

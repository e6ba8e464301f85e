package workflow

import (
	"strings"

	"github.com/opspilot/opspilot/internal/application/capability"
	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// Merge folds the accumulated stage outputs into a task outcome. Transient
// automation attempts are filtered from the visible error list; the final
// status derives from which required capabilities produced output and
// which are named by a surviving error.
func Merge(st *State) (model.Status, task.Result, []string) {
	visible := filterRetryInternal(st.Errors)

	result := task.Result{
		Diagnosis: st.Diagnosis,
		Script:    st.Script,
	}
	result.EmailDraft = coerceDraft(st.Draft)
	result.Commands = mergeCommands(st.Script)

	required := st.Classification.RequiredCapabilities
	isRequired := map[model.Capability]bool{}
	completed := 0
	for _, c := range required {
		isRequired[c] = true
		if capabilityCompleted(c, &result) {
			completed++
		}
	}

	// A capability counts as failed only when it was required, an error
	// names it, and it produced no output.
	failed := map[model.Capability]bool{}
	for _, msg := range visible {
		c, ok := attributeError(msg)
		if ok && isRequired[c] && !capabilityCompleted(c, &result) {
			failed[c] = true
		}
	}

	status := model.StatusInProgress
	switch {
	case len(required) > 0 && completed == len(required):
		status = model.StatusCompleted
	case len(failed) > 0:
		status = model.StatusFailed
	}
	return status, result, visible
}

func filterRetryInternal(errs []string) []string {
	visible := make([]string, 0, len(errs))
	for _, msg := range errs {
		if !capability.IsRetryInternal(msg) {
			visible = append(visible, msg)
		}
	}
	return visible
}

func capabilityCompleted(c model.Capability, result *task.Result) bool {
	switch c {
	case model.CapabilityDiagnose:
		return result.Diagnosis != nil
	case model.CapabilityAutomate:
		return result.Script != nil
	case model.CapabilityDraft:
		return result.EmailDraft != ""
	default:
		return false
	}
}

// attributeError maps a visible error message to the capability it blames.
// Automation messages carry no stage tag, so the bare substring matches.
func attributeError(msg string) (model.Capability, bool) {
	switch {
	case strings.Contains(msg, "diagnose stage"):
		return model.CapabilityDiagnose, true
	case strings.Contains(msg, "automation") || strings.Contains(msg, "automate"):
		return model.CapabilityAutomate, true
	case strings.Contains(msg, "draft stage"):
		return model.CapabilityDraft, true
	default:
		return "", false
	}
}

// coerceDraft flattens a draft result to plain text. Structured drafts
// prefer conventional body fields before falling back to a JSON rendering.
func coerceDraft(d *task.DraftResult) string {
	if d == nil {
		return ""
	}
	if d.Text != "" {
		return d.Text
	}
	for _, key := range []string{"email", "body", "text", "content"} {
		if s, ok := d.Structured[key].(string); ok && s != "" {
			return s
		}
	}
	if len(d.Structured) > 0 {
		return renderJSON(d.Structured)
	}
	return ""
}

// mergeCommands prefers the commands the automate capability already
// extracted, re-deriving them from the script body otherwise. The result
// is never nil.
func mergeCommands(script *task.ScriptResult) []string {
	if script == nil {
		return []string{}
	}
	if len(script.Commands) > 0 {
		return script.Commands
	}
	return capability.ExtractCommands(script.Code)
}

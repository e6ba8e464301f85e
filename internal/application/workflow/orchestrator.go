package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opspilot/opspilot/internal/application/capability"
	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// Diagnostic depth selects between a single diagnose invocation and the
// staged refinement loop.
const (
	DepthSingle = "single"
	DepthDeep   = "deep"
)

type capabilityInvoker interface {
	Diagnose(ctx context.Context, rc capability.RequestContext) (*task.DiagnosisResult, error)
	Automate(ctx context.Context, rc capability.RequestContext) (*task.ScriptResult, error)
	Draft(ctx context.Context, rc capability.RequestContext) (*task.DraftResult, error)
}

// Orchestrator runs the capability stages a classification requires, in
// order: diagnose, automate, draft. Each stage is conditional on the
// classification and feeds its output forward through the stage context.
type Orchestrator struct {
	invoker    capabilityInvoker
	automation *capability.AutomationStage
	refinement *RefinementLoop
	pruner     *Pruner
	depth      string
	logf       LogFunc
}

// NewOrchestrator wires an orchestrator from its stage collaborators.
// An unknown depth falls back to deep.
func NewOrchestrator(
	invoker capabilityInvoker,
	automation *capability.AutomationStage,
	refinement *RefinementLoop,
	pruner *Pruner,
	depth string,
	logf LogFunc,
) *Orchestrator {
	if depth != DepthSingle {
		depth = DepthDeep
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Orchestrator{
		invoker:    invoker,
		automation: automation,
		refinement: refinement,
		pruner:     pruner,
		depth:      depth,
		logf:       logf,
	}
}

// Run executes the workflow for an approved task record and returns the
// merged outcome. It never returns an error: stage failures are folded
// into the outcome's error list and status.
func (o *Orchestrator) Run(ctx context.Context, rec *task.Record) (model.Status, task.Result, []string) {
	st := &State{
		TaskID:         rec.ID.String(),
		Request:        rec.Request,
		Classification: *rec.Classification,
	}
	rc := capability.RequestContext{Task: rec.Request}

	if st.Classification.Requires(model.CapabilityDiagnose) {
		o.runDiagnose(ctx, st, rc)
	}
	if st.Classification.Requires(model.CapabilityAutomate) {
		o.runAutomate(ctx, st, rc)
	}
	if st.Classification.Requires(model.CapabilityDraft) {
		o.runDraft(ctx, st)
	}

	status, result, errs := Merge(st)
	o.logf("workflow %s: merged status %s with %d visible error(s)", st.TaskID, status, len(errs))
	return status, result, errs
}

func (o *Orchestrator) runDiagnose(ctx context.Context, st *State, rc capability.RequestContext) {
	var diag *task.DiagnosisResult
	var err error
	if o.depth == DepthDeep {
		diag, err = o.refinement.Run(ctx, rc)
	} else {
		diag, err = o.invoker.Diagnose(ctx, rc)
	}
	if err != nil {
		st.Errors = append(st.Errors, fmt.Sprintf("diagnose stage: %v", err))
		return
	}
	st.Diagnosis = diag
}

func (o *Orchestrator) runAutomate(ctx context.Context, st *State, rc capability.RequestContext) {
	if st.Diagnosis != nil {
		rc = capability.RequestContext{Task: rc.Task, Context: diagnosisContext(st.Diagnosis)}
	}
	outcome := o.automation.Run(ctx, rc)
	st.Errors = append(st.Errors, outcome.AttemptErrors...)
	if !outcome.Succeeded() {
		st.Errors = append(st.Errors, outcome.FatalError)
		return
	}
	st.Script = outcome.Script
}

func (o *Orchestrator) runDraft(ctx context.Context, st *State) {
	fields := o.pruner.Prune(ctx, draftContext(st))
	draft, err := o.invoker.Draft(ctx, capability.RequestContext{Task: st.Request, Context: fields})
	if err != nil {
		st.Errors = append(st.Errors, fmt.Sprintf("draft stage: %v", err))
		return
	}
	st.Draft = draft
}

// diagnosisContext shapes the diagnose output as prompt context for the
// automate stage.
func diagnosisContext(diag *task.DiagnosisResult) map[string]any {
	fields := map[string]any{
		"root_cause": diag.RootCause,
	}
	if len(diag.Solutions) > 0 {
		fields["recommended_solution"] = diag.Solutions[0].Description
	}
	if len(diag.AffectedComponents) > 0 {
		fields["affected_components"] = toAny(diag.AffectedComponents)
	}
	return fields
}

// draftContext assembles everything the status email may reference. Keys
// align with the pruner fallback allow-list so a budget overrun still
// keeps the essentials.
func draftContext(st *State) map[string]any {
	fields := map[string]any{
		"task_id": st.TaskID,
		"status":  model.StatusInProgress.String(),
		"request": st.Request,
	}
	if st.Diagnosis != nil {
		fields["root_cause"] = st.Diagnosis.RootCause
		fields["solutions"] = toAny(st.Diagnosis.Solutions)
		if len(st.Diagnosis.Evidence) > 0 {
			fields["evidence"] = toAny(st.Diagnosis.Evidence)
		}
	}
	if st.Script != nil {
		fields["script"] = st.Script.Code
		if st.Script.Verification != nil {
			fields["verification"] = toAny(st.Script.Verification)
		}
		if len(st.Script.Commands) > 0 {
			fields["action_items"] = toAny(st.Script.Commands)
		}
	}
	if len(st.Errors) > 0 {
		fields["errors"] = toAny(filterRetryInternal(st.Errors))
	}
	return fields
}

// toAny round-trips a typed value through JSON so the pruner and prompt
// rendering see plain maps and slices.
func toAny(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}

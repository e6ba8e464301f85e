// Package capability invokes model-backed capabilities (diagnose, automate,
// draft) against a completion gateway and parses their structured replies.
package capability

import (
	"context"
	"fmt"

	"github.com/opspilot/opspilot/internal/application/port/output"
	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// LogFunc receives printf-style progress lines from capability execution.
type LogFunc func(format string, args ...interface{})

// Invoker executes a single capability per call. Each capability pairs a
// fixed system prompt with the request context and decodes the reply into
// the corresponding domain result.
type Invoker struct {
	gateway     output.CompletionGateway
	model       string
	temperature float64
	maxTokens   int
	logf        LogFunc
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithModel overrides the model passed to the completion gateway.
func WithModel(model string) Option {
	return func(i *Invoker) { i.model = model }
}

// WithSampling overrides temperature and the completion token cap.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(i *Invoker) {
		i.temperature = temperature
		i.maxTokens = maxTokens
	}
}

// WithLogFunc sets the progress logger. Logging is optional.
func WithLogFunc(logf LogFunc) Option {
	return func(i *Invoker) { i.logf = logf }
}

// NewInvoker creates an Invoker over the given gateway.
func NewInvoker(gateway output.CompletionGateway, opts ...Option) *Invoker {
	i := &Invoker{
		gateway:     gateway,
		temperature: 0.7,
		maxTokens:   1000,
		logf:        func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Invoker) complete(ctx context.Context, messages []output.Message) (string, error) {
	resp, err := i.gateway.Complete(ctx, output.CompletionRequest{
		Messages:    messages,
		Model:       i.model,
		Temperature: i.temperature,
		MaxTokens:   i.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completion service: %w", err)
	}
	return resp.Content, nil
}

// Diagnose runs root-cause analysis for the request.
func (i *Invoker) Diagnose(ctx context.Context, rc RequestContext) (*task.DiagnosisResult, error) {
	if isBlank(rc.Task) {
		return nil, fmt.Errorf("diagnose: request text is empty")
	}
	content, err := i.complete(ctx, diagnoseMessages(rc))
	if err != nil {
		return nil, fmt.Errorf("diagnose: %w", err)
	}

	var diagnosis task.DiagnosisResult
	if err := decodeObject(content, &diagnosis); err != nil {
		return nil, fmt.Errorf("diagnose: parse completion: %w", err)
	}
	if diagnosis.RootCause == "" {
		return nil, fmt.Errorf("diagnose: completion missing root_cause")
	}
	i.logf("diagnose: root cause %q with %d solution(s)", diagnosis.RootCause, len(diagnosis.Solutions))
	return &diagnosis, nil
}

// Automate generates an automation script and verifies it. Generation
// errors surface to the caller; verification errors degrade the result
// instead, marking the script as unverified.
func (i *Invoker) Automate(ctx context.Context, rc RequestContext) (*task.ScriptResult, error) {
	if isBlank(rc.Task) {
		return nil, fmt.Errorf("automate: request text is empty")
	}
	script, err := i.generateScript(ctx, rc)
	if err != nil {
		return nil, err
	}

	verification := i.verifyScript(ctx, script.Code)
	script.Verification = verification
	script.LintPassed = verification.SyntaxCheck && verification.SecurityCheck
	script.Commands = ExtractCommands(script.Code)
	i.logf("automate: script of %d command(s), lint passed %v", len(script.Commands), script.LintPassed)
	return script, nil
}

type scriptPayload struct {
	Script         string   `json:"script"`
	Dependencies   []string `json:"dependencies"`
	RollbackScript string   `json:"rollback_script"`
}

func (i *Invoker) generateScript(ctx context.Context, rc RequestContext) (*task.ScriptResult, error) {
	content, err := i.complete(ctx, scriptMessages(rc))
	if err != nil {
		return nil, fmt.Errorf("automate: %w", err)
	}

	var payload scriptPayload
	if err := decodeObject(content, &payload); err != nil {
		raw, ok := extractField(content, "script")
		if !ok {
			return nil, fmt.Errorf("automate: parse completion: %w", err)
		}
		payload.Script = unescapeNewlines(raw)
	}
	if isBlank(payload.Script) {
		return nil, fmt.Errorf("automate: completion produced an empty script")
	}
	return &task.ScriptResult{
		Language:       "powershell",
		Code:           payload.Script,
		Dependencies:   payload.Dependencies,
		RollbackScript: payload.RollbackScript,
	}, nil
}

func (i *Invoker) verifyScript(ctx context.Context, code string) *task.ScriptVerification {
	content, err := i.complete(ctx, verifyMessages(code))
	if err == nil {
		var verification task.ScriptVerification
		if parseErr := decodeObject(content, &verification); parseErr == nil {
			return &verification
		}
		err = fmt.Errorf("automate: parse verification: malformed reply")
	}
	i.logf("automate: verification unavailable: %v", err)
	return &task.ScriptVerification{
		SyntaxCheck:   false,
		SecurityCheck: false,
		LintScore:     0,
		LintIssues:    []string{"verification unavailable: " + err.Error()},
	}
}

// Draft produces a status email for the request and its accumulated
// context.
func (i *Invoker) Draft(ctx context.Context, rc RequestContext) (*task.DraftResult, error) {
	if isBlank(rc.Task) {
		return nil, fmt.Errorf("draft: request text is empty")
	}
	content, err := i.complete(ctx, draftMessages(rc))
	if err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}

	var obj map[string]any
	if err := decodeObject(content, &obj); err == nil {
		if email, ok := obj["email"].(string); ok && email != "" {
			return &task.DraftResult{Text: email}, nil
		}
		if len(obj) > 0 {
			return &task.DraftResult{Structured: obj}, nil
		}
	}
	if raw, ok := extractField(content, "email"); ok {
		return &task.DraftResult{Text: unescapeNewlines(raw)}, nil
	}
	// An unstructured reply still carries the draft text.
	if !isBlank(content) {
		return &task.DraftResult{Text: content}, nil
	}
	return nil, fmt.Errorf("draft: completion produced no text")
}

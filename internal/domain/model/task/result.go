package task

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Solution is one proposed remediation inside a diagnosis, carrying the
// confidence score the refinement loop uses as its termination signal.
type Solution struct {
	Description         string   `json:"description"`
	Confidence          float64  `json:"confidence"`
	ImplementationSteps []string `json:"implementation_steps,omitempty"`
	VerificationSteps   []string `json:"verification_steps,omitempty"`
}

// UnmarshalJSON tolerates string confidence values. Models asked for a
// number still occasionally answer "0.8" or a qualitative high/medium/low.
func (s *Solution) UnmarshalJSON(data []byte) error {
	type alias Solution
	aux := struct {
		*alias
		Confidence json.RawMessage `json:"confidence"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Confidence = coerceConfidence(aux.Confidence)
	return nil
}

func coerceConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
		return n
	}
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "high":
		return 0.9
	case "medium":
		return 0.6
	case "low":
		return 0.3
	}
	return 0
}

// DiagnosisResult is the structured output of the diagnose capability
type DiagnosisResult struct {
	RootCause          string     `json:"root_cause"`
	Evidence           []string   `json:"evidence"`
	Solutions          []Solution `json:"solutions"`
	Complexity         string     `json:"complexity,omitempty"`
	RiskLevel          string     `json:"risk_level,omitempty"`
	AffectedComponents []string   `json:"affected_components,omitempty"`
}

// MinConfidence returns the lowest solution confidence, or 1.0 when the
// diagnosis proposes no solutions
func (d *DiagnosisResult) MinConfidence() float64 {
	min := 1.0
	for _, s := range d.Solutions {
		if s.Confidence < min {
			min = s.Confidence
		}
	}
	return min
}

// ScriptVerification holds the independent syntax/security/lint judgement
// for a generated script. A failed verification degrades the script result
// but never fails the workflow.
type ScriptVerification struct {
	SyntaxCheck       bool     `json:"syntax_check"`
	SecurityCheck     bool     `json:"security_check"`
	LintScore         int      `json:"lint_score"`
	LintIssues        []string `json:"lint_issues"`
	VerificationSteps []string `json:"verification_steps,omitempty"`
	ExpectedOutput    string   `json:"expected_output,omitempty"`
}

// ScriptResult is the structured output of the automate capability
type ScriptResult struct {
	Language       string              `json:"language"`
	Code           string              `json:"code"`
	LintPassed     bool                `json:"lint_passed"`
	Verification   *ScriptVerification `json:"verification,omitempty"`
	Dependencies   []string            `json:"dependencies,omitempty"`
	RollbackScript string              `json:"rollback_script,omitempty"`
	Commands       []string            `json:"commands,omitempty"`
}

// DraftResult is the output of the draft capability. Text holds the draft
// once coerced; Structured keeps the raw object when the model returned one
// instead of plain text.
type DraftResult struct {
	Text       string         `json:"text,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`
}

// Result is the per-capability payload accumulated by a workflow run and
// snapshotted into the task record at merge time.
type Result struct {
	Diagnosis  *DiagnosisResult `json:"diagnosis,omitempty"`
	Script     *ScriptResult    `json:"script,omitempty"`
	EmailDraft string           `json:"email_draft,omitempty"`
	Commands   []string         `json:"commands,omitempty"`
}

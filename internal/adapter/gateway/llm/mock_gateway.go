package llm

import (
	"context"
	"strings"

	"github.com/opspilot/opspilot/internal/application/port/output"
)

// MockGateway is an offline CompletionGateway keyed on system prompt
// content. It lets the full pipeline run without a completion service,
// for demos and end-to-end tests.
type MockGateway struct{}

// NewMockGateway creates a mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

const mockDiagnosis = `{
  "root_cause": "The service is resource constrained: CPU utilization is pinned at 100% on the affected hosts",
  "evidence": ["Sustained CPU saturation in the metrics", "Request latency rises with load"],
  "solutions": [
    {
      "description": "Scale the VM size up one tier and restart the service",
      "confidence": 0.9,
      "implementation_steps": ["Resize the VM", "Restart the service"],
      "verification_steps": ["Confirm CPU below 70% under normal load"]
    }
  ],
  "complexity": "medium",
  "risk_level": "medium",
  "affected_components": ["compute"]
}`

const mockScript = `{
  "script": "# Resize and restart the affected VM\naz vm resize --resource-group ops-rg --name web01 --size Standard_D4s_v5\naz vm restart --resource-group ops-rg --name web01",
  "dependencies": ["azure-cli"],
  "rollback_script": "az vm resize --resource-group ops-rg --name web01 --size Standard_D2s_v5"
}`

const mockVerification = `{
  "syntax_check": true,
  "security_check": true,
  "lint_score": 92,
  "lint_issues": [],
  "verification_steps": ["Run with --dry-run first"],
  "expected_output": "VM resized and restarted"
}`

const mockEmail = `{
  "email": "Subject: Operations update\n\nHello,\n\nThe reported issue has been analyzed and a remediation script prepared. The root cause was CPU saturation on the affected hosts; the script resizes and restarts the impacted VM.\n\nRegards,\nOperations"
}`

// Complete returns a canned reply matching the system prompt's role.
func (g *MockGateway) Complete(_ context.Context, req output.CompletionRequest) (*output.CompletionResponse, error) {
	system := ""
	if len(req.Messages) > 0 && req.Messages[0].Role == "system" {
		system = req.Messages[0].Content
	}

	var content string
	switch {
	case strings.Contains(system, "diagnostician"):
		content = mockDiagnosis
	case strings.Contains(system, "script writer"):
		content = mockScript
	case strings.Contains(system, "verifier"):
		content = mockVerification
	case strings.Contains(system, "technical writer"):
		content = mockEmail
	case strings.Contains(system, "compress"):
		// Pruning requests echo the original payload untouched.
		content = lastUserPayload(req.Messages)
	default:
		content = `{"email": "No handler for this prompt."}`
	}
	return &output.CompletionResponse{
		Content:     content,
		TotalTokens: EstimateTokens(content),
	}, nil
}

// CountTokens estimates without a network call.
func (g *MockGateway) CountTokens(_ context.Context, text string) (int, error) {
	return EstimateTokens(text), nil
}

func lastUserPayload(messages []output.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			content := messages[i].Content
			if idx := strings.Index(content, "{"); idx >= 0 {
				return content[idx:]
			}
			return content
		}
	}
	return "{}"
}

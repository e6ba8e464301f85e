package capability

import (
	"fmt"
	"strings"

	"github.com/opspilot/opspilot/internal/application/port/output"
)

const diagnoseSystemPrompt = `You are an expert infrastructure diagnostician.
Analyze the reported issue and respond with a single JSON object:
{
  "root_cause": "most likely root cause",
  "evidence": ["observation supporting the root cause"],
  "solutions": [
    {
      "description": "what to do",
      "confidence": 0.0,
      "implementation_steps": ["ordered step"],
      "verification_steps": ["how to confirm the fix"]
    }
  ],
  "complexity": "low|medium|high",
  "risk_level": "low|medium|high",
  "affected_components": ["component name"]
}
Confidence is a number between 0 and 1. Respond with JSON only.`

const scriptSystemPrompt = `You are an expert automation script writer for Azure and Windows environments.
Write a PowerShell script that performs the requested operation using Azure CLI where applicable.
Respond with a single JSON object:
{"script": "the complete script with \n line separators", "dependencies": ["required module"], "rollback_script": "script that undoes the change, or empty"}
Respond with JSON only.`

const verifySystemPrompt = `You are a strict script verifier. Review the script for syntax errors,
security issues and style problems. Respond with a single JSON object:
{
  "syntax_check": true,
  "security_check": true,
  "lint_score": 0-100,
  "lint_issues": ["issue"],
  "verification_steps": ["how to validate the script before running it"],
  "expected_output": "what a successful run prints"
}
Respond with JSON only.`

const draftSystemPrompt = `You are a technical writer for an operations team.
Draft a concise status email summarizing the work below for a non-technical audience.
Respond with a single JSON object: {"email": "the full email text"}
Respond with JSON only.`

func diagnoseMessages(rc RequestContext) []output.Message {
	return []output.Message{
		{Role: "system", Content: diagnoseSystemPrompt},
		{Role: "user", Content: withContext("Issue: "+rc.Task, rc.Context)},
	}
}

func scriptMessages(rc RequestContext) []output.Message {
	return []output.Message{
		{Role: "system", Content: scriptSystemPrompt},
		{Role: "user", Content: withContext("Operation: "+rc.Task, rc.Context)},
	}
}

func verifyMessages(script string) []output.Message {
	return []output.Message{
		{Role: "system", Content: verifySystemPrompt},
		{Role: "user", Content: "Script to review:\n" + script},
	}
}

func draftMessages(rc RequestContext) []output.Message {
	return []output.Message{
		{Role: "system", Content: draftSystemPrompt},
		{Role: "user", Content: withContext("Request: "+rc.Task, rc.Context)},
	}
}

func withContext(lead string, context map[string]any) string {
	flat := Flatten(context)
	if flat == "" {
		return lead
	}
	return fmt.Sprintf("%s\n\nContext:\n%s", lead, flat)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

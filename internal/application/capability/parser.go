package capability

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// decodeObject parses completion text into v as a JSON object.
// Models wrap objects in markdown fences, prepend prose, or emit single
// quotes; the fallback chain recovers the first decodable object fragment
// before giving up. Untrusted text is never evaluated, only decoded.
func decodeObject(content string, v any) error {
	content = strings.TrimSpace(content)

	if m := codeFencePattern.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(content, "{") {
		if idx := strings.Index(content, "{"); idx >= 0 {
			content = content[idx:]
		}
	}

	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	// Fragment between the first '{' and the last '}'
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		fragment := content[start : end+1]
		if err := json.Unmarshal([]byte(fragment), v); err == nil {
			return nil
		}
		// Single-quoted pseudo-JSON
		requoted := strings.ReplaceAll(fragment, "'", `"`)
		if err := json.Unmarshal([]byte(requoted), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no decodable JSON object in completion response")
}

// extractField recovers a single string field from malformed completion
// text by pattern match, tolerating both quoting conventions. Used as the
// last-resort parse for single-field payloads (script, email).
func extractField(content, field string) (string, bool) {
	doubleQuoted := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"([\s\S]*?)"\s*}`)
	if m := doubleQuoted.FindStringSubmatch(content); m != nil {
		return m[1], true
	}
	singleQuoted := regexp.MustCompile(`["']` + regexp.QuoteMeta(field) + `["']\s*:\s*'([\s\S]*?)'\s*}`)
	if m := singleQuoted.FindStringSubmatch(content); m != nil {
		return m[1], true
	}
	return "", false
}

// unescapeNewlines normalizes literal escape sequences left behind when a
// script body was recovered by pattern match instead of a JSON decode
func unescapeNewlines(s string) string {
	s = strings.ReplaceAll(s, `\r\n`, `\n`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\r`, "\n")
	return s
}

package capability

import (
	"fmt"
	"sort"
	"strings"
)

// RequestContext carries the request text plus accumulated stage outputs
// into a capability invocation.
type RequestContext struct {
	Task    string
	Context map[string]any
}

// Flatten renders a context map as "key: value" lines with deterministic
// key order, for embedding in a prompt.
func Flatten(context map[string]any) string {
	if len(context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, renderValue(context[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opspilot/opspilot/internal/application/port/output"
)

// prunerKeepKeys is the deterministic fallback allow-list: the keys that
// stay when model-assisted pruning cannot bring the context under budget.
var prunerKeepKeys = []string{
	"task_id", "status", "root_cause", "solutions",
	"script", "verification", "action_items",
}

// prunerMaxListItems bounds list values kept by the deterministic fallback.
const prunerMaxListItems = 3

const pruneSystemPrompt = `You compress operational context for a downstream summary step.
Reduce the JSON object below so it fits the token budget. Keep identifiers,
the root cause, the best solutions and anything a status email would need.
Respond with the reduced JSON object only.`

// Pruner shrinks a context map to a token budget before it is embedded in
// a prompt. It first asks the model to prune, verifying the reply is
// strictly decodable and actually smaller; if that fails it falls back to
// a deterministic allow-list cut. Prune never fails: the caller always
// gets a usable map.
type Pruner struct {
	gateway output.CompletionGateway
	budget  int
	logf    LogFunc
}

// NewPruner builds a pruner with the given token budget. A non-positive
// budget falls back to 4000.
func NewPruner(gateway output.CompletionGateway, budget int, logf LogFunc) *Pruner {
	if budget <= 0 {
		budget = 4000
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Pruner{gateway: gateway, budget: budget, logf: logf}
}

// Prune returns a context map that fits the token budget, or the closest
// deterministic reduction when even the fallback remains over budget.
func (p *Pruner) Prune(ctx context.Context, fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return fields
	}
	tokens := p.countTokens(ctx, fields)
	if tokens <= p.budget {
		return fields
	}
	p.logf("pruner: context at %d tokens over budget %d", tokens, p.budget)

	current := fields
	for attempt := 0; attempt < 2; attempt++ {
		pruned, ok := p.modelAssistedPrune(ctx, current)
		if !ok {
			break
		}
		prunedTokens := p.countTokens(ctx, pruned)
		if prunedTokens >= tokens {
			// The model failed to shrink anything; stop asking.
			break
		}
		if prunedTokens <= p.budget {
			return pruned
		}
		current, tokens = pruned, prunedTokens
	}

	fallback := deterministicPrune(fields)
	p.logf("pruner: deterministic fallback at %d tokens", p.countTokens(ctx, fallback))
	return fallback
}

func (p *Pruner) countTokens(ctx context.Context, fields map[string]any) int {
	rendered := renderJSON(fields)
	tokens, err := p.gateway.CountTokens(ctx, rendered)
	if err != nil || tokens <= 0 {
		// Rough completion-service accounting: ~4 characters per token.
		return len(rendered) / 4
	}
	return tokens
}

// modelAssistedPrune asks the model for a reduced context. The reply must
// strictly decode as a JSON object; the permissive completion parsing used
// for capability replies is too forgiving to trust here.
func (p *Pruner) modelAssistedPrune(ctx context.Context, fields map[string]any) (map[string]any, bool) {
	resp, err := p.gateway.Complete(ctx, output.CompletionRequest{
		Messages: []output.Message{
			{Role: "system", Content: pruneSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Token budget: %d\n\n%s", p.budget, renderJSON(fields))},
		},
	})
	if err != nil {
		p.logf("pruner: model-assisted pass unavailable: %v", err)
		return nil, false
	}
	var pruned map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &pruned); err != nil {
		p.logf("pruner: discarding non-strict reply: %v", err)
		return nil, false
	}
	if len(pruned) == 0 {
		return nil, false
	}
	return pruned, true
}

// deterministicPrune keeps only the allow-listed keys and truncates list
// values, preserving the first elements on the assumption that producers
// order by relevance.
func deterministicPrune(fields map[string]any) map[string]any {
	pruned := make(map[string]any, len(prunerKeepKeys))
	for _, key := range prunerKeepKeys {
		value, ok := fields[key]
		if !ok {
			continue
		}
		if list, isList := value.([]any); isList && len(list) > prunerMaxListItems {
			value = list[:prunerMaxListItems]
		}
		pruned[key] = value
	}
	return pruned
}

func renderJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

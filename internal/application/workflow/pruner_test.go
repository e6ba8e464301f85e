package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/opspilot/internal/application/port/output"
)

// countingGateway reports a fixed token count per call and replays one
// pruning reply.
type countingGateway struct {
	counts      []int
	countCalls  int
	reply       string
	replyErr    error
	pruneCalls  int
	lastRequest output.CompletionRequest
}

func (g *countingGateway) Complete(_ context.Context, req output.CompletionRequest) (*output.CompletionResponse, error) {
	g.pruneCalls++
	g.lastRequest = req
	if g.replyErr != nil {
		return nil, g.replyErr
	}
	return &output.CompletionResponse{Content: g.reply}, nil
}

func (g *countingGateway) CountTokens(_ context.Context, text string) (int, error) {
	idx := g.countCalls
	g.countCalls++
	if idx < len(g.counts) {
		return g.counts[idx], nil
	}
	return len(text) / 4, nil
}

func TestPruner_UnderBudgetIsUntouched(t *testing.T) {
	gw := &countingGateway{counts: []int{100}}
	p := NewPruner(gw, 4000, nil)

	fields := map[string]any{"task_id": "t-1", "debug_dump": "enormous"}
	got := p.Prune(context.Background(), fields)
	assert.Equal(t, fields, got)
	assert.Zero(t, gw.pruneCalls)
}

func TestPruner_ModelAssistedPass(t *testing.T) {
	gw := &countingGateway{
		counts: []int{5000, 200},
		reply:  `{"task_id": "t-1", "root_cause": "disk full"}`,
	}
	p := NewPruner(gw, 4000, nil)

	got := p.Prune(context.Background(), map[string]any{
		"task_id": "t-1", "root_cause": "disk full", "debug_dump": "enormous",
	})
	assert.Equal(t, map[string]any{"task_id": "t-1", "root_cause": "disk full"}, got)
	assert.Equal(t, 1, gw.pruneCalls)
	assert.Contains(t, gw.lastRequest.Messages[1].Content, "Token budget: 4000")
}

func TestPruner_NonStrictReplyFallsBack(t *testing.T) {
	gw := &countingGateway{
		counts: []int{5000},
		reply:  "```json\n{\"task_id\": \"t-1\"}\n```",
	}
	p := NewPruner(gw, 4000, nil)

	got := p.Prune(context.Background(), map[string]any{
		"task_id": "t-1", "debug_dump": "enormous",
	})
	// Fenced replies are rejected by the strict decode; the deterministic
	// fallback keeps allow-listed keys only.
	assert.Equal(t, map[string]any{"task_id": "t-1"}, got)
}

func TestPruner_GatewayErrorFallsBack(t *testing.T) {
	gw := &countingGateway{counts: []int{5000}, replyErr: fmt.Errorf("down")}
	p := NewPruner(gw, 4000, nil)

	got := p.Prune(context.Background(), map[string]any{
		"task_id":    "t-1",
		"status":     "in_progress",
		"debug_dump": "enormous",
	})
	assert.Equal(t, map[string]any{"task_id": "t-1", "status": "in_progress"}, got)
}

func TestDeterministicPrune_TruncatesLists(t *testing.T) {
	fields := map[string]any{
		"solutions":  []any{"a", "b", "c", "d", "e"},
		"root_cause": "x",
		"debug":      "dropped",
	}
	got := deterministicPrune(fields)
	require.Contains(t, got, "solutions")
	assert.Len(t, got["solutions"], 3)
	assert.Equal(t, []any{"a", "b", "c"}, got["solutions"])
	assert.NotContains(t, got, "debug")
}

func TestPruner_EmptyContext(t *testing.T) {
	gw := &countingGateway{}
	p := NewPruner(gw, 4000, nil)
	assert.Empty(t, p.Prune(context.Background(), nil))
	assert.Zero(t, gw.countCalls)
}

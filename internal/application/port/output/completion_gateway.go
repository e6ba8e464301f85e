package output

import "context"

// Message is one turn of a chat-style completion request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a request to the language-model completion service
type CompletionRequest struct {
	Messages    []Message // Ordered conversation, system prompt first
	Model       string    // Model identifier; empty uses the gateway default
	Temperature float64   // Sampling temperature (0.0-1.0)
	MaxTokens   int       // Completion length cap; 0 uses the gateway default
}

// CompletionResponse is the completion text plus usage accounting
type CompletionResponse struct {
	Content     string // Generated text
	TotalTokens int    // Prompt + completion tokens reported by the service
}

// CompletionGateway is the interface to the language-model completion
// service. Implementations must treat transport and quota failures as
// errors; retry policy belongs to the caller.
type CompletionGateway interface {
	// Complete issues one completion call
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens reports the token count of a text as the completion
	// service would account it. Implementations may estimate when the
	// service cannot be reached.
	CountTokens(ctx context.Context, text string) (int, error)
}

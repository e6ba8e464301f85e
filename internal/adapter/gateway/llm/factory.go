package llm

import (
	"github.com/opspilot/opspilot/internal/application/port/output"
)

// Provider selects a completion gateway implementation.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderMock   Provider = "mock"
)

// NewGateway creates a completion gateway for the provider. An unknown
// provider, or an openai provider without an API key, falls back to the
// mock so the pipeline stays runnable.
func NewGateway(provider Provider, apiKey, apiURL, model string) output.CompletionGateway {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return NewMockGateway()
		}
		return NewOpenAIGateway(apiKey, apiURL, model)
	default:
		return NewMockGateway()
	}
}

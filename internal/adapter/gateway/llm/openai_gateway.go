// Package llm provides completion gateway implementations: a chat
// completions HTTP client and a scripted mock for offline runs and tests.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opspilot/opspilot/internal/application/port/output"
)

const (
	defaultAPIURL      = "https://api.openai.com/v1/chat/completions"
	defaultModel       = "gpt-3.5-turbo"
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

// OpenAIGateway implements CompletionGateway against a chat completions
// API.
type OpenAIGateway struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
}

// NewOpenAIGateway creates a gateway for the given API key. The model and
// endpoint default to gpt-3.5-turbo on the public API; pass empty strings
// to keep the defaults.
func NewOpenAIGateway(apiKey, apiURL, model string) *OpenAIGateway {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if model == "" {
		model = defaultModel
	}
	return &OpenAIGateway{
		apiKey: apiKey,
		apiURL: apiURL,
		model:  model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete issues one completion call.
func (g *OpenAIGateway) Complete(ctx context.Context, req output.CompletionRequest) (*output.CompletionResponse, error) {
	chatReq := chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if chatReq.Model == "" {
		chatReq.Model = g.model
	}
	if chatReq.Temperature == 0 {
		chatReq.Temperature = defaultTemperature
	}
	if chatReq.MaxTokens == 0 {
		chatReq.MaxTokens = defaultMaxTokens
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	chatResp, err := g.callAPI(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("completion API returned no choices")
	}
	return &output.CompletionResponse{
		Content:     chatResp.Choices[0].Message.Content,
		TotalTokens: chatResp.Usage.TotalTokens,
	}, nil
}

// CountTokens asks the service to account a text by requesting a one-token
// completion, falling back to a word-count estimate when the call fails.
func (g *OpenAIGateway) CountTokens(ctx context.Context, text string) (int, error) {
	chatResp, err := g.callAPI(ctx, chatRequest{
		Model:     g.model,
		MaxTokens: 1,
		Messages:  []chatMessage{{Role: "user", Content: text}},
	})
	if err == nil && chatResp.Usage.PromptTokens > 0 {
		return chatResp.Usage.PromptTokens, nil
	}
	return EstimateTokens(text), nil
}

func (g *OpenAIGateway) callAPI(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer httpResp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		if chatResp.Error.Message != "" {
			return nil, fmt.Errorf("completion API error (%d): %s", httpResp.StatusCode, chatResp.Error.Message)
		}
		return nil, fmt.Errorf("completion API error: status %d", httpResp.StatusCode)
	}
	return &chatResp, nil
}

// EstimateTokens approximates completion-service accounting at roughly
// four tokens per three words.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return words * 4 / 3
}

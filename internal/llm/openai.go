package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIMaxTokens = 4096
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage contains token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openAIErrorResponse represents an error response from the OpenAI API.
type openAIErrorResponse struct {
	Error openAIErrorDetail `json:"error"`
}

// openAIErrorDetail contains error details from the OpenAI API.
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o-mini").
	Model string
	// BaseURL is the API base URL. Defaults to the public endpoint.
	BaseURL string
}

// OpenAIProvider implements Completer using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// Compile-time check that OpenAIProvider implements Completer.
var _ Completer = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAIProvider with the given configuration.
// The timeout parameter controls the HTTP client timeout for API calls.
// The maxRetries parameter controls how many times transient errors are retried.
func NewOpenAIProvider(cfg OpenAIConfig, temperature float64, timeout time.Duration, maxRetries int) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return &OpenAIProvider{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     baseURL,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  time.Second,
	}
}

// Complete sends the prompt to the Chat Completions API and returns the
// first choice's message content.
//
// Transient HTTP errors (status 429 and 5xx) are retried up to maxRetries
// times with exponential backoff. Context cancellation is respected between
// retries.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	apiReq := chatRequest{
		Model:       p.model,
		Messages:    toChatMessages(req.Messages),
		Temperature: p.temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Temperature != nil {
		apiReq.Temperature = *req.Temperature
	}

	var resp *chatResponse
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("openai: context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, lastErr = p.sendRequest(ctx, apiReq)
		if lastErr == nil {
			break
		}

		if !isTransientError(lastErr) {
			return "", lastErr
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("openai: all %d retries exhausted: %w", p.maxRetries, lastErr)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: response contains no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Provider returns the provider name.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Model returns the model identifier being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// sendRequest sends a single request to the Chat Completions API and returns
// the parsed response or an error.
func (p *OpenAIProvider) sendRequest(ctx context.Context, apiReq chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are considered transient and eligible for retry.
		return nil, &APIError{
			Provider:   "openai",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider:   "openai",
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Type:       "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseOpenAIAPIError(httpResp.StatusCode, respBody)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// toChatMessages converts request messages to the API wire shape.
func toChatMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		out[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// parseOpenAIAPIError parses an OpenAI API error from the response status code and body.
func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}

	return apiErr
}

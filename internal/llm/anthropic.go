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

const (
	// anthropicAPIVersion is the Anthropic API version header value.
	anthropicAPIVersion = "2023-06-01"

	// defaultAnthropicBaseURL is the public Anthropic API endpoint.
	defaultAnthropicBaseURL = "https://api.anthropic.com"

	// defaultAnthropicMaxTokens is the default max tokens for the Messages API response.
	defaultAnthropicMaxTokens = 4096
)

// messagesRequest is the request body for the Anthropic Messages API.
type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

// anthropicMessage represents a single message in the Anthropic Messages API.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// contentBlock represents a content block in the Anthropic Messages API response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse is the response body from the Anthropic Messages API.
type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

// anthropicUsage contains token usage information from the Anthropic API.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicAPIErrorDetail represents the nested error object in an Anthropic API error response.
type anthropicAPIErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicErrorResponse wraps the error payload from the Anthropic API.
type anthropicErrorResponse struct {
	Type  string                  `json:"type"`
	Error anthropicAPIErrorDetail `json:"error"`
}

// AnthropicConfig holds the parameters needed to create an Anthropic provider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model identifier.
	Model string
	// BaseURL is the API base URL. Defaults to the public endpoint.
	BaseURL string
}

// AnthropicProvider implements Completer using the Anthropic Messages API.
type AnthropicProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// Compile-time check that AnthropicProvider implements Completer.
var _ Completer = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates a new AnthropicProvider with the given configuration.
// The timeout parameter controls the HTTP client timeout for API calls.
// The maxRetries parameter controls how many times transient errors are retried.
func NewAnthropicProvider(cfg AnthropicConfig, temperature float64, timeout time.Duration, maxRetries int) *AnthropicProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	return &AnthropicProvider{
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

// Complete sends the prompt to the Messages API and returns the text of the
// first text content block. A leading system message is lifted into the
// request's system field, as the Messages API requires.
//
// Transient HTTP errors (status 429 and 5xx) are retried up to maxRetries
// times with exponential backoff. Context cancellation is respected between
// retries.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	apiReq := messagesRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Temperature: p.temperature,
	}
	if req.Temperature != nil {
		apiReq.Temperature = *req.Temperature
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem && apiReq.System == "" && len(apiReq.Messages) == 0 {
			apiReq.System = m.Content
			continue
		}
		apiReq.Messages = append(apiReq.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	var resp *messagesResponse
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("anthropic: context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, lastErr = p.sendRequest(ctx, apiReq)
		if lastErr == nil {
			break
		}

		// Only retry on transient errors.
		if !isTransientError(lastErr) {
			return "", lastErr
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("anthropic: all %d retries exhausted: %w", p.maxRetries, lastErr)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", fmt.Errorf("anthropic: response contains no text content blocks")
}

// Provider returns the provider name.
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Model returns the model identifier being used.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// sendRequest sends a single request to the Anthropic Messages API and returns
// the parsed response or an error.
func (p *AnthropicProvider) sendRequest(ctx context.Context, apiReq messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are considered transient and eligible for retry.
		return nil, &APIError{
			Provider:   "anthropic",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider:   "anthropic",
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Type:       "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicAPIError(httpResp.StatusCode, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// parseAnthropicAPIError parses an Anthropic API error from the response status code and body.
func parseAnthropicAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "anthropic",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}

	return apiErr
}

// Package llm provides text-completion clients for the LLM providers the
// pipeline delegates generation to. The pipeline treats completion as a
// pure, possibly non-deterministic, function from prompt to text; providers
// handle transport, retries, and provider-specific response shapes.
package llm

import "context"

// Message roles understood by both providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	// Messages is the ordered prompt. At least one message is required.
	Messages []Message

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int

	// Temperature overrides the provider's configured temperature when
	// non-nil.
	Temperature *float64

	// Operation is a short label for metrics and logging ("ranking",
	// "draft", "refine", "phrases"). Never sent to the provider.
	Operation string
}

// Completer is the text-completion contract the pipeline components depend
// on. Implementations must respect context cancellation and return the
// completion as plain text.
type Completer interface {
	// Complete sends the prompt and returns the model's text response.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Provider returns the provider name ("openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// UserPrompt builds a single-user-message request, the common case for the
// pipeline's prompt contracts.
func UserPrompt(operation, content string) CompletionRequest {
	return CompletionRequest{
		Operation: operation,
		Messages:  []Message{{Role: RoleUser, Content: content}},
	}
}

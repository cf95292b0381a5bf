package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompleter(t *testing.T) {
	tests := []struct {
		name         string
		provider     string
		wantProvider string
		wantErr      bool
	}{
		{name: "openai", provider: "openai", wantProvider: "openai"},
		{name: "anthropic", provider: "anthropic", wantProvider: "anthropic"},
		{name: "unsupported", provider: "llama", wantErr: true},
		{name: "empty", provider: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompleter(FactoryConfig{
				Provider:   tt.provider,
				Timeout:    time.Second,
				MaxRetries: 1,
				OpenAI:     OpenAIConfig{APIKey: "k", Model: "m"},
				Anthropic:  AnthropicConfig{APIKey: "k", Model: "m"},
			})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, c.Provider())
		})
	}
}

func TestAPIErrorTransience(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}

	for _, tt := range tests {
		err := &APIError{Provider: "openai", StatusCode: tt.status, Message: "x"}
		assert.Equal(t, tt.transient, err.IsTransient(), "status %d", tt.status)
		assert.Equal(t, tt.transient, isTransientError(err), "status %d via helper", tt.status)
	}

	assert.False(t, isTransientError(errors.New("plain error")))
}

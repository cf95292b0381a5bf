package llm

import (
	"context"
	"errors"
	"time"

	"github.com/scriptoria/litreview/internal/observability"
)

// instrumentedCompleter records request metrics around an inner completer.
type instrumentedCompleter struct {
	inner   Completer
	metrics *observability.Metrics
}

// Compile-time check that instrumentedCompleter implements Completer.
var _ Completer = (*instrumentedCompleter)(nil)

// Instrument wraps a completer so every completion call is counted and
// timed, labeled by the request's Operation and the completer's model.
// A nil metrics leaves the completer unwrapped.
func Instrument(inner Completer, metrics *observability.Metrics) Completer {
	if metrics == nil {
		return inner
	}
	return &instrumentedCompleter{inner: inner, metrics: metrics}
}

// Complete delegates to the inner completer and records the call on the
// LLM request metrics. Failures are additionally counted with a coarse
// error classification.
func (c *instrumentedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	operation := req.Operation
	if operation == "" {
		operation = "unknown"
	}

	start := time.Now()
	text, err := c.inner.Complete(ctx, req)
	c.metrics.RecordLLMRequest(operation, c.inner.Model(), time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordLLMRequestFailed(operation, c.inner.Model(), errorType(err))
	}
	return text, err
}

// Provider returns the inner provider name.
func (c *instrumentedCompleter) Provider() string {
	return c.inner.Provider()
}

// Model returns the inner model identifier.
func (c *instrumentedCompleter) Model() string {
	return c.inner.Model()
}

// errorType classifies a completion error for the failure counter label.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Type != "" {
			return apiErr.Type
		}
		return "api_error"
	}
	return "error"
}

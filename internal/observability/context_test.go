package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunIDFromContext(ctx))

	ctx = WithRunID(ctx, "run-1")
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
}

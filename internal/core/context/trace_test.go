package context

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTraceContext(t *testing.T) {
	tc := NewTraceContext("pump-7-retry")
	assert.Equal(t, "pump-7-retry", tc.RequestID)
	assert.Equal(t, "pump-7-retry", tc.TraceID)

	minted := NewTraceContext("")
	assert.Len(t, minted.RequestID, 36)

	long := NewTraceContext(strings.Repeat("x", maxRequestIDLen+1))
	assert.Len(t, long.RequestID, 36)
}

func TestGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithTrace(ctx, &TraceContext{TraceID: "abc", RequestID: "req"})
	assert.Equal(t, "abc", GetTraceID(ctx))
	assert.Equal(t, "req", GetRequestID(ctx))
}

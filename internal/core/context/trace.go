package context

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// maxRequestIDLen bounds a client supplied X-Request-ID before it reaches logs.
const maxRequestIDLen = 64

// TraceContext carries the ids that tie a request's log lines together.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns the request's TraceContext, or nil outside a request.
func GetTrace(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return tc
}

// GetTraceID returns the request trace id, else the active span's, else "".
// The replay worker has no request, only the engine's span.
func GetTraceID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil && tc.TraceID != "" {
		return tc.TraceID
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.RequestID
	}
	return ""
}

// NewTraceContext keeps a usable incoming request id and otherwise mints a
// time-ordered one. TraceID defaults to the request id until a span supplies one.
func NewTraceContext(requestID string) *TraceContext {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" || len(requestID) > maxRequestIDLen {
		requestID = uuid.Must(uuid.NewV7()).String()
	}
	return &TraceContext{TraceID: requestID, RequestID: requestID}
}

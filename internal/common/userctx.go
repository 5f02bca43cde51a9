package common

import (
	"context"
)

// RequestContext holds per-request identity set by the HTTP layer.
// Authentication is external; UserID is whatever the caller's gateway resolved.
type RequestContext struct {
	UserID        string
	CorrelationID string
}

type contextKey int

const requestContextKey contextKey = iota

// WithRequestContext stores a RequestContext in the request context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// RequestContextFromContext retrieves the RequestContext from context, or nil if absent.
func RequestContextFromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey).(*RequestContext)
	return rc
}

// CorrelationID returns the request correlation ID, or "" outside a request.
func CorrelationID(ctx context.Context) string {
	if rc := RequestContextFromContext(ctx); rc != nil {
		return rc.CorrelationID
	}
	return ""
}

// WithContext returns a child logger tagged with the request correlation ID
// when one is present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id := CorrelationID(ctx)
	if id == "" {
		return l
	}
	return &Logger{Logger: l.Logger.With().Str("correlation_id", id).Logger()}
}

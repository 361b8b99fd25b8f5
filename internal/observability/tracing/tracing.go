// Package tracing tags a request-scoped id onto the context logger and
// makes it retrievable for outbound messages.
package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type traceIDKey struct{}

// InjectTraceID attaches a fresh trace id to the context and to every
// log line written through the context logger.
func InjectTraceID(ctx context.Context) context.Context {
	id := uuid.NewString()
	logger := log.With().Str("traceId", id).Logger()
	return logger.WithContext(context.WithValue(ctx, traceIDKey{}, id))
}

// TraceID returns the id set by InjectTraceID, or the empty string when
// the context carries none.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

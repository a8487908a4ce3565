// Package ctxutil provides the shared correlation-id context accessor used
// throughout the consolidation pipeline so every log line and error can be
// traced back to the Consolidate call that produced it, without threading
// an extra parameter through every function signature.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const keyCorrelationID contextKey = "correlation_id"

// WithCorrelationID returns a new context carrying id.
func WithCorrelationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyCorrelationID, id)
}

// CorrelationID extracts the correlation id from ctx, or uuid.Nil if none
// was set.
func CorrelationID(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keyCorrelationID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

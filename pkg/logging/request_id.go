package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// requestIDKey is the context key for the per-request identifier.
type requestIDKey struct{}

// GenerateRequestID returns a random 16-byte hex identifier.
func GenerateRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID, or empty when unset.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

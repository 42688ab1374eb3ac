package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/tokengate/pkg/token"
)

func TestErrorCategoryMapping(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		category token.ErrorCategory
	}{
		{ErrCodeInvalidToken, token.ErrorInvalidToken},
		{ErrCodeTokenExpired, token.ErrorInvalidToken},
		{ErrCodeUnknownKeyID, token.ErrorInvalidToken},
		{ErrCodeInsufficientScope, token.ErrorInsufficientScope},
		{ErrCodeInvalidRequest, token.ErrorInvalidRequest},
		{ErrCodeRateLimited, token.ErrorRateLimitExceeded},
		{ErrCodeJWKSUnavailable, token.ErrorServerError},
		{ErrCodeIntrospectionFailed, token.ErrorServerError},
		{ErrCodeInvalidConfig, token.ErrorServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.category, New(tt.code, "boom").Category())
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrCodeJWKSUnavailable, "fetch failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "JWKS_UNAVAILABLE")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOfTraversesChains(t *testing.T) {
	inner := New(ErrCodeTokenExpired, "expired")
	wrapped := fmt.Errorf("outer: %w", inner)
	joined := stderrors.Join(stderrors.New("unrelated"), wrapped)

	assert.Equal(t, ErrCodeTokenExpired, CodeOf(wrapped))
	assert.Equal(t, ErrCodeTokenExpired, CodeOf(joined))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain")))
}

func TestCategoryOfForeignError(t *testing.T) {
	assert.Equal(t, token.ErrorServerError, CategoryOf(stderrors.New("plain")))
	assert.Equal(t, token.ErrorInvalidToken, CategoryOf(New(ErrCodeTokenMalformed, "bad")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeIssuerMismatch, "issuer mismatch").
		WithDetail("expected", "https://a").
		WithDetail("actual", "https://b")

	require.NotNil(t, err.Details)
	assert.Equal(t, "https://a", err.Details["expected"])
	assert.Equal(t, "https://b", err.Details["actual"])
}

func TestHTTPStatusOf(t *testing.T) {
	assert.Equal(t, 401, HTTPStatusOf(New(ErrCodeInvalidToken, "x")))
	assert.Equal(t, 429, HTTPStatusOf(New(ErrCodeRateLimited, "x")))
	assert.Equal(t, 500, HTTPStatusOf(stderrors.New("plain")))
}

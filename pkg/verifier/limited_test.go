package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/tokengate/pkg/ratelimit"
	"github.com/tokengate/tokengate/pkg/token"
)

// recordingVerifier counts delegate calls.
type recordingVerifier struct {
	calls  int
	result token.ValidationResult
}

func (r *recordingVerifier) Verify(_ context.Context, _ string) token.ValidationResult {
	r.calls++
	return r.result
}

func TestLimitedVerifierThrottles(t *testing.T) {
	inner := &recordingVerifier{result: token.Success(&token.Claims{Subject: "alice"})}
	limiter := ratelimit.New(3, time.Minute)
	v := NewLimited(inner, limiter, zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		result := v.Verify(ctx, "raw-token")
		require.True(t, result.Valid, "attempt %d", i+1)
	}

	result := v.Verify(ctx, "raw-token")
	require.False(t, result.Valid)
	assert.Equal(t, token.ErrorRateLimitExceeded, result.ErrorCode)
	assert.Equal(t, 429, result.HTTPStatus())
	assert.Equal(t, 3, inner.calls, "throttled attempts never reach the delegate")
}

func TestLimitedVerifierCountsFailedAttempts(t *testing.T) {
	inner := &recordingVerifier{result: token.Failure(token.ErrorInvalidToken, "nope")}
	limiter := ratelimit.New(2, time.Minute)
	v := NewLimited(inner, limiter, zerolog.Nop())

	ctx := context.Background()
	v.Verify(ctx, "raw-token")
	v.Verify(ctx, "raw-token")

	result := v.Verify(ctx, "raw-token")
	assert.Equal(t, token.ErrorRateLimitExceeded, result.ErrorCode)
}

func TestLimitedVerifierIsolatesTokens(t *testing.T) {
	inner := &recordingVerifier{result: token.Success(&token.Claims{Subject: "alice"})}
	limiter := ratelimit.New(1, time.Minute)
	v := NewLimited(inner, limiter, zerolog.Nop())

	ctx := context.Background()
	require.True(t, v.Verify(ctx, "token-a").Valid)
	require.False(t, v.Verify(ctx, "token-a").Valid)
	assert.True(t, v.Verify(ctx, "token-b").Valid, "other tokens are unaffected")
}

func TestLimitedVerifierNilLimiterUsesDefaults(t *testing.T) {
	inner := &recordingVerifier{result: token.Success(&token.Claims{Subject: "alice"})}
	v := NewLimited(inner, nil, zerolog.Nop())

	for i := 0; i < ratelimit.DefaultMaxAttempts; i++ {
		require.True(t, v.Verify(context.Background(), "raw-token").Valid)
	}
	assert.False(t, v.Verify(context.Background(), "raw-token").Valid)
}

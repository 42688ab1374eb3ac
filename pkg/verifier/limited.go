package verifier

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tokengate/tokengate/pkg/ratelimit"
	"github.com/tokengate/tokengate/pkg/token"
)

// LimitedVerifier wraps another verifier with per-token rate limiting. The
// limiter keys on the token fingerprint, so a flood of attempts with one
// stolen token is throttled without affecting holders of other tokens.
type LimitedVerifier struct {
	inner   TokenVerifier
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

// NewLimited wraps v with the given limiter. A nil limiter gets the package
// defaults.
func NewLimited(v TokenVerifier, limiter *ratelimit.Limiter, logger zerolog.Logger) *LimitedVerifier {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultMaxAttempts, ratelimit.DefaultWindow)
	}
	return &LimitedVerifier{inner: v, limiter: limiter, logger: logger}
}

// Verify implements TokenVerifier. The limiter runs before the delegate so
// that a throttled token costs no signature checks or upstream calls.
func (v *LimitedVerifier) Verify(ctx context.Context, raw string) token.ValidationResult {
	if raw == "" {
		return v.inner.Verify(ctx, raw)
	}

	fingerprint := token.Fingerprint(raw)
	if !v.limiter.Allow(fingerprint) {
		v.logger.Warn().
			Str("token_hash", fingerprint).
			Msg("token verification rate limit exceeded")
		return token.Failure(token.ErrorRateLimitExceeded,
			"Too many verification attempts; try again later")
	}
	return v.inner.Verify(ctx, raw)
}

var _ TokenVerifier = (*LimitedVerifier)(nil)

package verifier

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tokengate/tokengate/pkg/token"
)

// StaticVerifier matches tokens against a fixed in-memory table. It exists
// for local development and tests only; construction fails outright when the
// environment looks like production.
type StaticVerifier struct {
	tokens map[string]*token.Claims
	logger zerolog.Logger
}

// StaticOption configures a StaticVerifier.
type StaticOption func(*StaticVerifier)

// WithStaticLogger sets the logger for verification diagnostics.
func WithStaticLogger(logger zerolog.Logger) StaticOption {
	return func(v *StaticVerifier) { v.logger = logger }
}

// NewStaticVerifier validates the configuration, including the production
// guard, and copies the token table so later mutation of the config cannot
// change verification behavior.
func NewStaticVerifier(cfg StaticConfig, opts ...StaticOption) (*StaticVerifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &StaticVerifier{
		tokens: make(map[string]*token.Claims, len(cfg.Tokens)),
		logger: zerolog.Nop(),
	}
	for raw, claims := range cfg.Tokens {
		v.tokens[raw] = claims
	}
	for _, opt := range opts {
		opt(v)
	}

	v.logger.Warn().
		Int("token_count", len(v.tokens)).
		Msg("static token verification enabled; never use this outside local development")
	return v, nil
}

// Verify implements TokenVerifier. Claims are returned as a copy so callers
// cannot mutate the shared table.
func (v *StaticVerifier) Verify(ctx context.Context, raw string) token.ValidationResult {
	if raw == "" {
		return token.Failure(token.ErrorInvalidRequest, "No access token was provided")
	}

	claims, ok := v.tokens[raw]
	if !ok {
		v.logger.Warn().
			Str("token_hash", token.Fingerprint(raw)).
			Msg("static token lookup failed")
		return token.Failure(token.ErrorInvalidToken, descInvalidToken)
	}
	return token.Success(cloneClaims(claims))
}

func cloneClaims(in *token.Claims) *token.Claims {
	out := *in
	out.Audience = append([]string(nil), in.Audience...)
	out.Scopes = append([]string(nil), in.Scopes...)
	if in.Extra != nil {
		out.Extra = make(map[string]interface{}, len(in.Extra))
		for k, val := range in.Extra {
			out.Extra[k] = val
		}
	}
	return &out
}

// VerifyScopes reports whether every required scope is present.
func (v *StaticVerifier) VerifyScopes(claims *token.Claims, required []string) bool {
	return VerifyScopes(claims, required)
}

var _ TokenVerifier = (*StaticVerifier)(nil)

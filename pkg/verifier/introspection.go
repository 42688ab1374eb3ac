package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tokengate/tokengate/pkg/errors"
	"github.com/tokengate/tokengate/pkg/token"
)

// IntrospectionVerifier validates opaque tokens against an RFC 7662
// introspection endpoint. Every upstream problem, including a malformed
// response body, is reported to the caller as server_error; only an explicit
// active=false becomes invalid_token.
type IntrospectionVerifier struct {
	cfg    IntrospectionConfig
	client *http.Client
	logger zerolog.Logger
}

// IntrospectionOption configures an IntrospectionVerifier.
type IntrospectionOption func(*IntrospectionVerifier)

// WithIntrospectionLogger sets the logger for verification diagnostics.
func WithIntrospectionLogger(logger zerolog.Logger) IntrospectionOption {
	return func(v *IntrospectionVerifier) { v.logger = logger }
}

// WithIntrospectionHTTPClient overrides the HTTP client. The configured
// timeout still bounds each call through the request context.
func WithIntrospectionHTTPClient(client *http.Client) IntrospectionOption {
	return func(v *IntrospectionVerifier) { v.client = client }
}

// NewIntrospectionVerifier validates the configuration and builds the
// verifier.
func NewIntrospectionVerifier(cfg IntrospectionConfig, opts ...IntrospectionOption) (*IntrospectionVerifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &IntrospectionVerifier{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client == nil {
		v.client = &http.Client{Timeout: cfg.Timeout}
	}
	return v, nil
}

// introspectionResponse is the RFC 7662 response shape. Only active is
// required; everything else is best effort.
type introspectionResponse struct {
	Active    bool        `json:"active"`
	Scope     string      `json:"scope"`
	ClientID  string      `json:"client_id"`
	Username  string      `json:"username"`
	TokenType string      `json:"token_type"`
	Exp       int64       `json:"exp"`
	Iat       int64       `json:"iat"`
	Nbf       int64       `json:"nbf"`
	Sub       string      `json:"sub"`
	Aud       interface{} `json:"aud"`
	Iss       string      `json:"iss"`
}

// Verify implements TokenVerifier.
func (v *IntrospectionVerifier) Verify(ctx context.Context, raw string) token.ValidationResult {
	if raw == "" {
		return token.Failure(token.ErrorInvalidRequest, "No access token was provided")
	}
	fingerprint := token.Fingerprint(raw)

	resp, err := v.introspect(ctx, raw)
	if err != nil {
		v.logger.Error().
			Str("token_hash", fingerprint).
			Str("endpoint", v.cfg.Endpoint).
			Err(err).
			Msg("introspection request failed")
		return token.Failure(token.ErrorServerError, descServerError)
	}

	if !resp.Active {
		v.logger.Warn().
			Str("token_hash", fingerprint).
			Msg("introspection reported token inactive")
		return token.Failure(token.ErrorInvalidToken, descInvalidToken)
	}

	claims := v.buildClaims(resp)
	if claims.Identity() == "" {
		v.logger.Warn().
			Str("token_hash", fingerprint).
			Msg("introspection response carries no identity")
		return token.Failure(token.ErrorInvalidToken, descInvalidToken)
	}

	if !VerifyScopes(claims, v.cfg.RequiredScopes) {
		v.logger.Warn().
			Str("token_hash", fingerprint).
			Strs("required_scopes", v.cfg.RequiredScopes).
			Strs("granted_scopes", claims.Scopes).
			Msg("introspected token missing required scopes")
		return token.Failure(token.ErrorInsufficientScope, descInsufficientScope)
	}

	return token.Success(claims)
}

// introspect performs the RFC 7662 call. The token travels in the form body
// and client credentials in the Basic authorization header, never in the URL.
func (v *IntrospectionVerifier) introspect(ctx context.Context, raw string) (*introspectionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("token", raw)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIntrospectionFailed,
			"failed to build introspection request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(v.cfg.ClientID, v.cfg.ClientSecret.Reveal())

	start := time.Now()
	httpResp, err := v.client.Do(req)
	if err != nil {
		code := errors.ErrCodeIntrospectionFailed
		if ctx.Err() == context.DeadlineExceeded {
			code = errors.ErrCodeProviderTimeout
		}
		return nil, errors.Wrap(err, code, "introspection endpoint unreachable")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeIntrospectionFailed,
			"introspection endpoint returned status %d", httpResp.StatusCode).
			WithDetail("status", httpResp.StatusCode).
			WithDetail("duration_ms", time.Since(start).Milliseconds())
	}

	var resp introspectionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIntrospectionFailed,
			"introspection response is not valid JSON")
	}
	return &resp, nil
}

// buildClaims maps the introspection response into the shared data model.
func (v *IntrospectionVerifier) buildClaims(resp *introspectionResponse) *token.Claims {
	claims := &token.Claims{
		Subject:  resp.Sub,
		ClientID: resp.ClientID,
		Username: resp.Username,
		Issuer:   resp.Iss,
		Audience: parseAudience(resp.Aud),
		Scopes:   parseScopes(resp.Scope),
		Extra:    make(map[string]interface{}),
	}
	if resp.Exp > 0 {
		t := time.Unix(resp.Exp, 0)
		claims.ExpiresAt = &t
	}
	if resp.Iat > 0 {
		t := time.Unix(resp.Iat, 0)
		claims.IssuedAt = &t
	}
	if resp.Nbf > 0 {
		t := time.Unix(resp.Nbf, 0)
		claims.NotBefore = &t
	}
	return claims
}

// VerifyScopes reports whether every required scope is present.
func (v *IntrospectionVerifier) VerifyScopes(claims *token.Claims, required []string) bool {
	return VerifyScopes(claims, required)
}

var _ TokenVerifier = (*IntrospectionVerifier)(nil)

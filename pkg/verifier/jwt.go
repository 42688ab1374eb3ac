package verifier

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/tokengate/tokengate/pkg/errors"
	"github.com/tokengate/tokengate/pkg/token"
)

// Generic descriptions returned to clients. Anything more specific stays in
// the server-side log.
const (
	descInvalidToken      = "The access token is invalid or expired"
	descInsufficientScope = "The access token is missing a required scope"
	descServerError       = "Token verification is temporarily unavailable"
)

// JWTVerifier validates self-contained signed tokens against a JWKS
// endpoint, a static public key, or an HMAC pre-shared secret.
type JWTVerifier struct {
	cfg       JWTConfig
	jwks      *keySetCache
	staticKey interface{}
	hmacKey   []byte
	logger    zerolog.Logger
}

// JWTOption configures a JWTVerifier.
type JWTOption func(*JWTVerifier)

// WithJWTLogger sets the logger for verification diagnostics.
func WithJWTLogger(logger zerolog.Logger) JWTOption {
	return func(v *JWTVerifier) { v.logger = logger }
}

// NewJWTVerifier validates the configuration and builds the verifier. Key
// material for the static mode is parsed eagerly so that a bad key is a
// startup failure, not a runtime one.
func NewJWTVerifier(cfg JWTConfig, opts ...JWTOption) (*JWTVerifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &JWTVerifier{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}

	switch {
	case cfg.JWKSURL != "":
		v.jwks = newKeySetCache(cfg.JWKSURL, cfg.JWKSCacheTTL, v.logger)
	case len(cfg.StaticKeyPEM) > 0:
		key, err := parsePublicKeyPEM(cfg.StaticKeyPEM, cfg.Algorithm)
		if err != nil {
			return nil, err
		}
		v.staticKey = key
	default:
		v.hmacKey = []byte(cfg.HMACSecret.Reveal())
	}
	return v, nil
}

// Verify implements TokenVerifier. Each validation step aborts to a generic
// invalid_token result; the specific cause is logged with the token
// fingerprint only.
func (v *JWTVerifier) Verify(ctx context.Context, raw string) token.ValidationResult {
	if raw == "" {
		return token.Failure(token.ErrorInvalidRequest, "No access token was provided")
	}
	fingerprint := token.Fingerprint(raw)

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.cfg.Algorithm}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	)

	mapClaims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(raw, mapClaims, v.resolveKey(ctx))
	if err != nil {
		category := errors.CategoryOf(err)
		// Anything that is not an upstream availability problem is a bad
		// token from the caller's point of view.
		if category == token.ErrorServerError && errors.CodeOf(err) != errors.ErrCodeJWKSUnavailable {
			category = token.ErrorInvalidToken
		}
		v.logger.Warn().
			Str("token_hash", fingerprint).
			Str("issuer", v.cfg.Issuer).
			Str("audience", v.cfg.Audience).
			Str("algorithm", v.cfg.Algorithm).
			Err(err).
			Msg("JWT validation failed")
		if category == token.ErrorServerError {
			return token.Failure(category, descServerError)
		}
		return token.Failure(token.ErrorInvalidToken, descInvalidToken)
	}
	if !parsed.Valid {
		v.logger.Warn().Str("token_hash", fingerprint).Msg("JWT parsed but not valid")
		return token.Failure(token.ErrorInvalidToken, descInvalidToken)
	}

	claims, err := v.buildClaims(mapClaims)
	if err != nil {
		v.logger.Warn().Str("token_hash", fingerprint).Err(err).
			Msg("JWT claims rejected")
		return token.Failure(token.ErrorInvalidToken, descInvalidToken)
	}

	if !VerifyScopes(claims, v.cfg.RequiredScopes) {
		v.logger.Warn().
			Str("token_hash", fingerprint).
			Strs("required_scopes", v.cfg.RequiredScopes).
			Strs("granted_scopes", claims.Scopes).
			Msg("JWT missing required scopes")
		return token.Failure(token.ErrorInsufficientScope, descInsufficientScope)
	}

	return token.Success(claims)
}

// VerifyScopes reports whether every required scope is present.
func (v *JWTVerifier) VerifyScopes(claims *token.Claims, required []string) bool {
	return VerifyScopes(claims, required)
}

// resolveKey returns the key-resolution callback handed to the parser. The
// algorithm check here is deliberate defense in depth on top of
// WithValidMethods: key material is only ever handed to the exact configured
// algorithm, which closes the asymmetric-to-HMAC confusion rewrite.
func (v *JWTVerifier) resolveKey(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if alg := t.Method.Alg(); alg != v.cfg.Algorithm {
			return nil, errors.Newf(errors.ErrCodeUnsafeAlgorithm,
				"token algorithm %q does not match configured %q", alg, v.cfg.Algorithm)
		}
		switch {
		case v.jwks != nil:
			kid, ok := t.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New(errors.ErrCodeInvalidToken, "token header has no key ID")
			}
			return v.jwks.key(ctx, kid)
		case v.staticKey != nil:
			return v.staticKey, nil
		default:
			return v.hmacKey, nil
		}
	}
}

// buildClaims maps verified JWT claims into the shared data model.
func (v *JWTVerifier) buildClaims(mapClaims jwt.MapClaims) (*token.Claims, error) {
	claims := &token.Claims{
		Extra: make(map[string]interface{}),
	}

	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if clientID, ok := mapClaims["client_id"].(string); ok {
		claims.ClientID = clientID
	} else if azp, ok := mapClaims["azp"].(string); ok {
		claims.ClientID = azp
	}
	if claims.Subject == "" && claims.ClientID == "" {
		return nil, errors.New(errors.ErrCodeInvalidToken,
			"token carries neither a subject nor a client ID")
	}

	if username, ok := mapClaims["preferred_username"].(string); ok {
		claims.Username = username
	} else if username, ok := mapClaims["username"].(string); ok {
		claims.Username = username
	}
	if iss, ok := mapClaims["iss"].(string); ok {
		claims.Issuer = iss
	}
	claims.Audience = parseAudience(mapClaims["aud"])

	if t, err := mapClaims.GetExpirationTime(); err == nil && t != nil {
		claims.ExpiresAt = &t.Time
	}
	if t, err := mapClaims.GetIssuedAt(); err == nil && t != nil {
		claims.IssuedAt = &t.Time
	}
	if t, err := mapClaims.GetNotBefore(); err == nil && t != nil {
		claims.NotBefore = &t.Time
	}

	if scopes := parseScopes(mapClaims["scope"]); scopes != nil {
		claims.Scopes = scopes
	} else if scopes := parseScopes(mapClaims["scp"]); scopes != nil {
		claims.Scopes = scopes
	}

	for name, value := range mapClaims {
		switch name {
		case "sub", "client_id", "azp", "preferred_username", "username",
			"iss", "aud", "exp", "iat", "nbf", "scope", "scp":
		default:
			claims.Extra[name] = value
		}
	}
	return claims, nil
}

// parsePublicKeyPEM parses PEM key material and checks that the key type
// matches the configured algorithm family.
func parsePublicKeyPEM(data []byte, alg string) (interface{}, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "static key is not valid PEM")
	}

	var key interface{}
	var err error
	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err = x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		key, err = x509.ParsePKIXPublicKey(block.Bytes)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "failed to parse static public key")
	}

	switch key.(type) {
	case *rsa.PublicKey:
		if alg[0] != 'R' && alg[0] != 'P' {
			return nil, errors.Newf(errors.ErrCodeInvalidConfig,
				"static key is RSA but algorithm is %s", alg)
		}
	case *ecdsa.PublicKey:
		if alg[0] != 'E' {
			return nil, errors.Newf(errors.ErrCodeInvalidConfig,
				"static key is ECDSA but algorithm is %s", alg)
		}
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"unsupported static key type %T", key)
	}
	return key, nil
}

var _ TokenVerifier = (*JWTVerifier)(nil)

// String identifies the verifier strategy in logs.
func (v *JWTVerifier) String() string {
	switch {
	case v.jwks != nil:
		return fmt.Sprintf("jwt(jwks=%s alg=%s)", v.cfg.JWKSURL, v.cfg.Algorithm)
	case v.staticKey != nil:
		return fmt.Sprintf("jwt(static-key alg=%s)", v.cfg.Algorithm)
	default:
		return fmt.Sprintf("jwt(hmac alg=%s)", v.cfg.Algorithm)
	}
}

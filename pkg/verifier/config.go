package verifier

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tokengate/tokengate/pkg/envsignal"
	"github.com/tokengate/tokengate/pkg/errors"
	"github.com/tokengate/tokengate/pkg/secrets"
	"github.com/tokengate/tokengate/pkg/token"
)

const (
	// DefaultClockSkew is the leeway applied to exp/nbf checks.
	DefaultClockSkew = 60 * time.Second

	// MaxClockSkew bounds the configurable leeway.
	MaxClockSkew = 120 * time.Second

	// DefaultJWKSCacheTTL is how long fetched key material stays fresh.
	DefaultJWKSCacheTTL = time.Hour

	// DefaultIntrospectionTimeout bounds the introspection round trip.
	DefaultIntrospectionTimeout = 10 * time.Second

	// MaxIntrospectionTimeout is the upper bound for the configurable timeout.
	MaxIntrospectionTimeout = 60 * time.Second
)

// JWTConfig configures the JWT verifier. Exactly one key source must be set:
// a JWKS endpoint (asymmetric algorithms only), a static PEM public key, or
// an HMAC pre-shared secret. Constructed once at startup and validated
// eagerly; an invalid configuration must prevent the process from serving.
type JWTConfig struct {
	// JWKSURL is the key-set endpoint. HTTPS is required outside localhost.
	JWKSURL string

	// StaticKeyPEM is a PEM-encoded public key for asymmetric algorithms.
	StaticKeyPEM []byte

	// HMACSecret is the pre-shared key for HS256/HS384/HS512.
	HMACSecret secrets.Secret

	// Issuer is the exact expected "iss" claim.
	Issuer string

	// Audience is the expected "aud" claim; tokens carrying a list match if
	// the list contains it.
	Audience string

	// Algorithm is the single permitted signature algorithm. No negotiation
	// happens at verification time: the token's header must match exactly.
	Algorithm string

	// RequiredScopes, when non-empty, must all be present in the token.
	RequiredScopes []string

	// ClockSkew is the exp/nbf leeway, bounded to [0, MaxClockSkew].
	ClockSkew time.Duration

	// JWKSCacheTTL is how long a fetched key set is considered fresh.
	JWKSCacheTTL time.Duration
}

// Validate checks the configuration eagerly. The JWKS+HMAC pairing is
// rejected outright: allowing it would let an attacker re-sign an asymmetric
// token with the provider's public key used as the HMAC secret.
func (c *JWTConfig) Validate() error {
	if c.Issuer == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "issuer is required")
	}
	if c.Audience == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "audience is required")
	}
	if !IsAsymmetricAlgorithm(c.Algorithm) && !IsHMACAlgorithm(c.Algorithm) {
		return errors.Newf(errors.ErrCodeUnsafeAlgorithm,
			"algorithm %q is not in the whitelist %v", c.Algorithm, SupportedAlgorithms())
	}

	sources := 0
	if c.JWKSURL != "" {
		sources++
	}
	if len(c.StaticKeyPEM) > 0 {
		sources++
	}
	if !c.HMACSecret.IsZero() {
		sources++
	}
	if sources != 1 {
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"exactly one key source required (JWKS URL, static key, or HMAC secret), got %d", sources)
	}

	if c.JWKSURL != "" {
		if IsHMACAlgorithm(c.Algorithm) {
			return errors.Newf(errors.ErrCodeUnsafeAlgorithm,
				"HMAC algorithm %q cannot be combined with a JWKS endpoint", c.Algorithm)
		}
		if err := requireHTTPS(c.JWKSURL); err != nil {
			return err
		}
	}
	if len(c.StaticKeyPEM) > 0 && IsHMACAlgorithm(c.Algorithm) {
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"HMAC algorithm %q requires an HMAC secret, not static PEM key material", c.Algorithm)
	}
	if !c.HMACSecret.IsZero() {
		if !IsHMACAlgorithm(c.Algorithm) {
			return errors.Newf(errors.ErrCodeInvalidConfig,
				"asymmetric algorithm %q cannot use an HMAC secret", c.Algorithm)
		}
		if err := ValidateHMACKey(c.Algorithm, []byte(c.HMACSecret.Reveal())); err != nil {
			return err
		}
	}

	if c.ClockSkew < 0 || c.ClockSkew > MaxClockSkew {
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"clock skew must be within [0s, %s], got %s", MaxClockSkew, c.ClockSkew)
	}
	if c.JWKSCacheTTL < 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"JWKS cache TTL must not be negative, got %s", c.JWKSCacheTTL)
	}
	return nil
}

// IntrospectionConfig configures the opaque-token verifier.
type IntrospectionConfig struct {
	// Endpoint is the RFC 7662 introspection URL. HTTPS is required outside
	// localhost.
	Endpoint string

	// ClientID authenticates this resource server to the endpoint.
	ClientID string

	// ClientSecret is the matching credential, carried as a protected value.
	ClientSecret secrets.Secret

	// RequiredScopes, when non-empty, must all be granted to the token.
	RequiredScopes []string

	// Timeout bounds the whole introspection round trip, within
	// [1s, MaxIntrospectionTimeout].
	Timeout time.Duration
}

// Validate checks the configuration eagerly.
func (c *IntrospectionConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "introspection endpoint is required")
	}
	if err := requireHTTPS(c.Endpoint); err != nil {
		return err
	}
	if c.ClientID == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "introspection client ID is required")
	}
	if c.ClientSecret.IsZero() {
		return errors.New(errors.ErrCodeInvalidConfig, "introspection client secret is required")
	}
	if c.Timeout < time.Second || c.Timeout > MaxIntrospectionTimeout {
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"introspection timeout must be within [1s, %s], got %s", MaxIntrospectionTimeout, c.Timeout)
	}
	return nil
}

// StaticConfig configures the development-only static verifier.
type StaticConfig struct {
	// Tokens maps literal token strings to the claims they represent.
	Tokens map[string]*token.Claims

	// Guard detects production runtimes. Construction fails when it trips;
	// a nil guard defaults to environment detection rather than allowing a
	// bypass by omission.
	Guard envsignal.Detector
}

// Validate checks the configuration eagerly.
func (c *StaticConfig) Validate() error {
	guard := c.Guard
	if guard == nil {
		guard = envsignal.NewEnvDetector()
	}
	if guard.IsProduction() {
		return errors.New(errors.ErrCodeProductionGuard,
			"static token verification is disabled in production runtimes")
	}
	if len(c.Tokens) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "static verifier requires at least one token")
	}
	for raw, claims := range c.Tokens {
		if raw == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "static verifier token strings must not be empty")
		}
		if claims == nil || claims.Identity() == "" {
			return errors.New(errors.ErrCodeInvalidConfig,
				"static verifier claims require a subject or client ID")
		}
	}
	return nil
}

// requireHTTPS enforces TLS on an endpoint URL, with an exception for
// explicit localhost during development.
func requireHTTPS(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeInvalidConfig, "invalid endpoint URL %q", rawURL)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isLocalhost(u.Hostname()) {
			return nil
		}
		return errors.Newf(errors.ErrCodeInsecureEndpoint,
			"endpoint %q must use HTTPS outside localhost", rawURL)
	default:
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"endpoint %q must use the http or https scheme", rawURL)
	}
}

func isLocalhost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

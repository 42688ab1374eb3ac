// Package token defines the immutable data model shared by every verifier
// strategy: the claims extracted from a validated bearer token and the
// outcome of a single verification attempt.
//
// Claim names follow RFC 7519 (core JWT), RFC 8693 (client_id), and
// RFC 7662 (introspection responses). Validation logic lives in the
// verifier package; the types here are pure value carriers with
// side-effect-free helpers.
package token

import "time"

// Claims holds the identity and permission facts extracted from a validated
// token. Instances are built once by a verifier and treated as read-only
// afterwards.
type Claims struct {
	// Subject is the "sub" claim, usually the end-user identifier.
	Subject string `json:"sub,omitempty"`

	// ClientID is the OAuth client the token was issued to ("client_id" or
	// "azp"). For client-credentials tokens this may be the only identity.
	ClientID string `json:"client_id,omitempty"`

	// Username is an optional human-readable name ("preferred_username" or
	// the introspection "username" field).
	Username string `json:"username,omitempty"`

	// Issuer is the "iss" claim.
	Issuer string `json:"iss,omitempty"`

	// Audience is the "aud" claim, normalized to a list whether the token
	// carried a single string or an array.
	Audience []string `json:"aud,omitempty"`

	IssuedAt  *time.Time `json:"iat,omitempty"`
	ExpiresAt *time.Time `json:"exp,omitempty"`
	NotBefore *time.Time `json:"nbf,omitempty"`

	// Scopes is the ordered set of permission strings granted to the token.
	Scopes []string `json:"scope,omitempty"`

	// Extra carries non-standard claims that downstream handlers may need.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Identity returns the principal the token represents: the subject when
// present, otherwise the client identifier. Successful validation guarantees
// at least one of the two is set.
func (c *Claims) Identity() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.ClientID
}

// HasScope reports whether the given scope was granted.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether at least one of the given scopes was granted.
func (c *Claims) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if c.HasScope(s) {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether every one of the given scopes was granted.
// An empty requirement is trivially satisfied.
func (c *Claims) HasAllScopes(scopes ...string) bool {
	for _, s := range scopes {
		if !c.HasScope(s) {
			return false
		}
	}
	return true
}

// IsExpired reports whether the token is expired at the given instant,
// allowing the given clock-skew leeway. Tokens without an "exp" claim are
// never considered expired here; verifiers that require expiry enforce that
// separately.
func (c *Claims) IsExpired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return now.After(c.ExpiresAt.Add(leeway))
}

// IsNotYetValid reports whether the token's "nbf" claim places it in the
// future at the given instant, allowing the given clock-skew leeway.
func (c *Claims) IsNotYetValid(now time.Time, leeway time.Duration) bool {
	if c.NotBefore == nil {
		return false
	}
	return now.Before(c.NotBefore.Add(-leeway))
}

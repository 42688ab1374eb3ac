// Package verifier implements the token verification strategies: signed JWTs
// resolved against a JWKS endpoint, a static key, or an HMAC secret; opaque
// tokens checked via RFC 7662 introspection; and a development-only static
// lookup. All strategies share one contract and one disclosure policy:
// callers receive a ValidationResult with a generic error category, while
// full diagnostic detail goes to the server-side log only.
package verifier

import (
	"context"
	"strings"

	"github.com/tokengate/tokengate/pkg/token"
)

// TokenVerifier is the contract every strategy implements. Verify must be
// safe for concurrent use and must never return both claims and an error
// category in the same result.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) token.ValidationResult
}

// ExtractBearerToken parses an Authorization header value strictly: exactly
// two whitespace-separated parts with a case-insensitive "Bearer" scheme.
// Any other shape yields no token and the caller must treat the request as
// invalid_request.
func ExtractBearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// VerifyScopes reports whether every required scope is present in the
// claims. An empty requirement always passes.
func VerifyScopes(claims *token.Claims, required []string) bool {
	if claims == nil {
		return len(required) == 0
	}
	return claims.HasAllScopes(required...)
}

// parseScopes accepts both representations a provider may use for granted
// scopes: a space-delimited string ("read write") or an array of strings.
func parseScopes(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		scopes := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}

// parseAudience normalizes an "aud" claim that may be a single string or a
// list into an ordered slice.
func parseAudience(value interface{}) []string {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		auds := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				auds = append(auds, s)
			}
		}
		return auds
	default:
		return nil
	}
}

// Package middleware adapts token verification to net/http. It owns the
// transport concerns: extracting the bearer token, mapping verification
// results to status codes and WWW-Authenticate challenges, and exposing the
// verified claims to downstream handlers through the request context.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tokengate/tokengate/pkg/logging"
	"github.com/tokengate/tokengate/pkg/token"
	"github.com/tokengate/tokengate/pkg/verifier"
)

// ContextKey is the key type used to store values in the request context
type ContextKey string

const (
	// ClaimsContextKey is the key used to store the verified claims in the context
	ClaimsContextKey ContextKey = "token_claims"
)

// Options contains options for the authentication middleware
type Options struct {
	// Verifier validates extracted tokens. Required.
	Verifier verifier.TokenVerifier
	// Realm is reported in WWW-Authenticate challenges
	Realm string
	// Logger for authentication diagnostics
	Logger zerolog.Logger
}

// errorBody is the JSON error response shape, after RFC 6750.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Authenticate creates middleware that verifies the bearer token on every
// request and stores the claims in the request context. Requests carrying
// more than one Authorization header are rejected before any verification.
func Authenticate(opts Options) func(http.Handler) http.Handler {
	if opts.Verifier == nil {
		panic("middleware: Options.Verifier is required")
	}
	if opts.Realm == "" {
		opts.Realm = "api"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := opts.Logger
			if reqID := logging.RequestIDFromContext(r.Context()); reqID != "" {
				logger = logger.With().Str("request_id", reqID).Logger()
			}

			headers := r.Header.Values("Authorization")
			if len(headers) > 1 {
				logger.Warn().Int("header_count", len(headers)).
					Msg("request carries multiple Authorization headers")
				writeError(w, opts.Realm,
					token.Failure(token.ErrorInvalidRequest, "Multiple Authorization headers are not allowed"))
				return
			}
			if len(headers) == 0 {
				writeError(w, opts.Realm,
					token.Failure(token.ErrorInvalidRequest, "Authorization header is required"))
				return
			}

			raw, ok := verifier.ExtractBearerToken(headers[0])
			if !ok {
				writeError(w, opts.Realm,
					token.Failure(token.ErrorInvalidRequest, "Authorization header must use the Bearer scheme"))
				return
			}

			result := opts.Verifier.Verify(r.Context(), raw)
			if !result.Valid {
				writeError(w, opts.Realm, result)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, result.Claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeError sends the public error response. Invalid-token and scope
// failures additionally carry the RFC 6750 challenge header.
func writeError(w http.ResponseWriter, realm string, result token.ValidationResult) {
	status := result.HTTPStatus()

	switch result.ErrorCode {
	case token.ErrorInvalidToken, token.ErrorInvalidRequest, token.ErrorInsufficientScope:
		w.Header().Set("WWW-Authenticate",
			fmt.Sprintf("Bearer realm=%q, error=%q, error_description=%q",
				realm, result.ErrorCode, result.ErrorDescription))
	case token.ErrorRateLimitExceeded:
		w.Header().Set("Retry-After", "60")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:            string(result.ErrorCode),
		ErrorDescription: result.ErrorDescription,
	})
}

// GetClaimsFromContext retrieves the verified claims from the request context
func GetClaimsFromContext(ctx context.Context) (*token.Claims, error) {
	claims, ok := ctx.Value(ClaimsContextKey).(*token.Claims)
	if !ok {
		return nil, errors.New("claims not found in context")
	}
	return claims, nil
}

// RequireScope creates a middleware that checks if the token has the required scope
func RequireScope(requiredScope string) func(http.Handler) http.Handler {
	return RequireScopes([]string{requiredScope})
}

// RequireScopes creates a middleware that checks if the token has all the required scopes
func RequireScopes(requiredScopes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := GetClaimsFromContext(r.Context())
			if err != nil {
				writeError(w, "api",
					token.Failure(token.ErrorInvalidToken, "The access token is invalid or expired"))
				return
			}

			if !claims.HasAllScopes(requiredScopes...) {
				writeError(w, "api",
					token.Failure(token.ErrorInsufficientScope,
						fmt.Sprintf("Required scope: %s", strings.Join(requiredScopes, " "))))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity creates middleware that checks the verified token belongs
// to one of the listed principals, matched against sub then client_id.
func RequireIdentity(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := GetClaimsFromContext(r.Context())
			if err != nil {
				writeError(w, "api",
					token.Failure(token.ErrorInvalidToken, "The access token is invalid or expired"))
				return
			}
			if _, ok := set[claims.Identity()]; !ok {
				writeError(w, "api",
					token.Failure(token.ErrorInsufficientScope, "Token identity is not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID assigns each request an identifier and stores it in the context
// so authentication logs can be correlated with handler logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), reqID)))
	})
}

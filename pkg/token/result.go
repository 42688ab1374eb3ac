package token

import "net/http"

// ErrorCategory is the fixed enumeration of failure categories a caller may
// see. Anything more specific stays in server-side logs; echoing verifier
// configuration back to clients materially aids forgery attempts.
type ErrorCategory string

const (
	ErrorInvalidToken      ErrorCategory = "invalid_token"
	ErrorInsufficientScope ErrorCategory = "insufficient_scope"
	ErrorInvalidRequest    ErrorCategory = "invalid_request"
	ErrorRateLimitExceeded ErrorCategory = "rate_limit_exceeded"
	ErrorServerError       ErrorCategory = "server_error"
)

// HTTPStatus returns the protocol status class for the category.
func (c ErrorCategory) HTTPStatus() int {
	switch c {
	case ErrorInvalidToken, ErrorInvalidRequest:
		return http.StatusUnauthorized
	case ErrorInsufficientScope:
		return http.StatusForbidden
	case ErrorRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ValidationResult is the outcome of one verification attempt. Exactly one
// of Claims (on success) or ErrorCode (on failure) is set.
type ValidationResult struct {
	Valid            bool          `json:"valid"`
	Claims           *Claims       `json:"claims,omitempty"`
	ErrorCode        ErrorCategory `json:"error,omitempty"`
	ErrorDescription string        `json:"error_description,omitempty"`
}

// Success builds a successful result carrying the validated claims.
func Success(claims *Claims) ValidationResult {
	return ValidationResult{Valid: true, Claims: claims}
}

// Failure builds a failed result. The description must stay generic; detail
// belongs in server-side logs only.
func Failure(code ErrorCategory, description string) ValidationResult {
	return ValidationResult{Valid: false, ErrorCode: code, ErrorDescription: description}
}

// HTTPStatus returns the status code the adapter should respond with.
func (r ValidationResult) HTTPStatus() int {
	if r.Valid {
		return http.StatusOK
	}
	return r.ErrorCode.HTTPStatus()
}

// Package errors provides the server-side half of the two-tier disclosure
// policy: typed errors that carry full diagnostic detail for logs, plus a
// mapping down to the small public error category a client is allowed to see.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/tokengate/tokengate/pkg/token"
)

// ErrorCode identifies a failure precisely enough for operators. Codes never
// reach clients directly; they collapse to a token.ErrorCategory first.
type ErrorCode string

const (
	// Token validation failures.
	ErrCodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired     ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenMalformed   ErrorCode = "TOKEN_MALFORMED"
	ErrCodeTokenNotYetValid ErrorCode = "TOKEN_NOT_YET_VALID"
	ErrCodeIssuerMismatch   ErrorCode = "ISSUER_MISMATCH"
	ErrCodeAudienceMismatch ErrorCode = "AUDIENCE_MISMATCH"
	ErrCodeUnknownKeyID     ErrorCode = "UNKNOWN_KEY_ID"

	// Authorization failures.
	ErrCodeInsufficientScope ErrorCode = "INSUFFICIENT_SCOPE"

	// Request shape failures.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// Throttling.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// Upstream and infrastructure failures.
	ErrCodeJWKSUnavailable     ErrorCode = "JWKS_UNAVAILABLE"
	ErrCodeIntrospectionFailed ErrorCode = "INTROSPECTION_FAILED"
	ErrCodeProviderTimeout     ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeSecretUnavailable   ErrorCode = "SECRET_UNAVAILABLE"

	// Configuration failures, fatal at startup.
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeWeakKey          ErrorCode = "WEAK_KEY"
	ErrCodeUnsafeAlgorithm  ErrorCode = "UNSAFE_ALGORITHM"
	ErrCodeInsecureEndpoint ErrorCode = "INSECURE_ENDPOINT"
	ErrCodeProductionGuard  ErrorCode = "PRODUCTION_GUARD"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a typed error with operator-facing context. The Details map may
// hold expected-vs-actual values, upstream status codes, and token
// fingerprints; it must never hold a raw token or an unwrapped secret.
type Error struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches an operator-facing key/value pair.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Category collapses the code to the public error category.
func (e *Error) Category() token.ErrorCategory {
	switch e.Code {
	case ErrCodeInvalidToken, ErrCodeTokenExpired, ErrCodeTokenMalformed,
		ErrCodeTokenNotYetValid, ErrCodeIssuerMismatch, ErrCodeAudienceMismatch,
		ErrCodeUnknownKeyID:
		return token.ErrorInvalidToken
	case ErrCodeInsufficientScope:
		return token.ErrorInsufficientScope
	case ErrCodeInvalidRequest:
		return token.ErrorInvalidRequest
	case ErrCodeRateLimited:
		return token.ErrorRateLimitExceeded
	default:
		return token.ErrorServerError
	}
}

// HTTPStatus returns the protocol status for the error.
func (e *Error) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with a code and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// CodeOf extracts the code from an error chain, or ErrCodeInternal for
// foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// CategoryOf extracts the public category from an error chain. Foreign errors
// map to server_error so that unexpected failures never leak detail or
// register as client mistakes.
func CategoryOf(err error) token.ErrorCategory {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Category()
	}
	return token.ErrorServerError
}

// HTTPStatusOf extracts the protocol status from an error chain.
func HTTPStatusOf(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

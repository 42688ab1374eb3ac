package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClaimsIdentity(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{
			name:   "subject wins over client ID",
			claims: Claims{Subject: "alice", ClientID: "svc-1"},
			want:   "alice",
		},
		{
			name:   "client ID when no subject",
			claims: Claims{ClientID: "svc-1"},
			want:   "svc-1",
		},
		{
			name:   "empty when neither",
			claims: Claims{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.claims.Identity())
		})
	}
}

func TestClaimsScopes(t *testing.T) {
	claims := &Claims{Scopes: []string{"read", "write"}}

	assert.True(t, claims.HasScope("read"))
	assert.False(t, claims.HasScope("admin"))
	assert.True(t, claims.HasAnyScope("admin", "write"))
	assert.False(t, claims.HasAnyScope("admin", "delete"))
	assert.True(t, claims.HasAllScopes("read", "write"))
	assert.False(t, claims.HasAllScopes("read", "admin"))
	assert.True(t, claims.HasAllScopes())
}

func TestClaimsExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	leeway := 60 * time.Second

	past := now.Add(-2 * time.Minute)
	recent := now.Add(-30 * time.Second)
	future := now.Add(2 * time.Minute)

	assert.True(t, (&Claims{ExpiresAt: &past}).IsExpired(now, leeway))
	assert.False(t, (&Claims{ExpiresAt: &recent}).IsExpired(now, leeway), "inside leeway")
	assert.False(t, (&Claims{ExpiresAt: &future}).IsExpired(now, leeway))
	assert.False(t, (&Claims{}).IsExpired(now, leeway), "no exp claim")

	assert.True(t, (&Claims{NotBefore: &future}).IsNotYetValid(now, leeway))
	soon := now.Add(30 * time.Second)
	assert.False(t, (&Claims{NotBefore: &soon}).IsNotYetValid(now, leeway), "inside leeway")
	assert.False(t, (&Claims{}).IsNotYetValid(now, leeway))
}

func TestErrorCategoryHTTPStatus(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		status   int
	}{
		{ErrorInvalidToken, 401},
		{ErrorInvalidRequest, 401},
		{ErrorInsufficientScope, 403},
		{ErrorRateLimitExceeded, 429},
		{ErrorServerError, 500},
		{ErrorCategory("unknown"), 500},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.category.HTTPStatus(), string(tt.category))
	}
}

func TestValidationResult(t *testing.T) {
	ok := Success(&Claims{Subject: "alice"})
	assert.True(t, ok.Valid)
	assert.Equal(t, "alice", ok.Claims.Subject)
	assert.Equal(t, 200, ok.HTTPStatus())

	bad := Failure(ErrorInvalidToken, "The access token is invalid or expired")
	assert.False(t, bad.Valid)
	assert.Nil(t, bad.Claims)
	assert.Equal(t, 401, bad.HTTPStatus())
}

func TestFingerprint(t *testing.T) {
	raw := "eyJhbGciOiJSUzI1NiJ9.payload.sig"

	fp := Fingerprint(raw)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint(raw), "stable for the same input")
	assert.NotEqual(t, fp, Fingerprint(raw+"x"))
	assert.NotContains(t, fp, raw)
}

package keys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/tokengate/pkg/envsignal"
	"github.com/tokengate/tokengate/pkg/errors"
)

func TestGenerateRSA(t *testing.T) {
	pair, err := GenerateRSA(envsignal.Static(false))
	require.NoError(t, err)

	assert.Equal(t, "RS256", pair.Algorithm())
	assert.NotEmpty(t, pair.KeyID())

	pem, err := pair.PublicKeyPEM()
	require.NoError(t, err)
	assert.Contains(t, string(pem), "BEGIN PUBLIC KEY")
}

func TestGenerateEC(t *testing.T) {
	pair, err := GenerateEC(envsignal.Static(false))
	require.NoError(t, err)
	assert.Equal(t, "ES256", pair.Algorithm())
}

func TestProductionGuardBlocksPrivateExport(t *testing.T) {
	pair, err := GenerateRSA(envsignal.Static(true))
	require.NoError(t, err)

	_, err = pair.PrivateKeyPEM()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProductionGuard, errors.CodeOf(err))

	err = pair.SavePrivateKey(filepath.Join(t.TempDir(), "private.pem"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProductionGuard, errors.CodeOf(err))

	// The public half is still exportable.
	_, err = pair.PublicKeyPEM()
	assert.NoError(t, err)
}

func TestSaveAndLoadKeyPair(t *testing.T) {
	pair, err := GenerateRSA(envsignal.Static(false))
	require.NoError(t, err)

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "private.pem")
	require.NoError(t, pair.SavePrivateKey(keyPath))
	require.NoError(t, pair.SavePublicKey(filepath.Join(dir, "public.pem")))

	loaded, err := LoadPrivateKey(keyPath, envsignal.Static(false))
	require.NoError(t, err)
	assert.Equal(t, "RS256", loaded.Algorithm())

	// A token minted by the loaded pair verifies with the original public key.
	signed, err := loaded.MintToken(MintClaims{Subject: "alice", TTL: time.Minute})
	require.NoError(t, err)
	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (interface{}, error) {
		return pair.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
}

func TestLoadPrivateKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0600))
	_, err := LoadPrivateKey(path, envsignal.Static(false))
	assert.Error(t, err)
}

func TestJWKSDocument(t *testing.T) {
	pair, err := GenerateRSA(envsignal.Static(false))
	require.NoError(t, err)

	doc, err := pair.JWKS()
	require.NoError(t, err)

	var parsed struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(doc, &parsed))
	require.Len(t, parsed.Keys, 1)

	key := parsed.Keys[0]
	assert.Equal(t, pair.KeyID(), key["kid"])
	assert.Equal(t, "RSA", key["kty"])
	assert.Equal(t, "RS256", key["alg"])
	assert.NotEmpty(t, key["n"])
	assert.NotEmpty(t, key["e"])
}

func TestJWKSDocumentEC(t *testing.T) {
	pair, err := GenerateEC(envsignal.Static(false))
	require.NoError(t, err)

	doc, err := pair.JWKS()
	require.NoError(t, err)

	var parsed struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(doc, &parsed))
	require.Len(t, parsed.Keys, 1)

	key := parsed.Keys[0]
	assert.Equal(t, "EC", key["kty"])
	assert.Equal(t, "P-256", key["crv"])
	assert.NotEmpty(t, key["x"])
	assert.NotEmpty(t, key["y"])
}

func TestMintToken(t *testing.T) {
	pair, err := GenerateRSA(envsignal.Static(false))
	require.NoError(t, err)

	signed, err := pair.MintToken(MintClaims{
		Subject:  "alice",
		Issuer:   "https://issuer.test",
		Audience: []string{"api"},
		Scopes:   []string{"read", "write"},
		TTL:      time.Minute,
		Extra:    map[string]interface{}{"org": "acme"},
	})
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (interface{}, error) {
		return pair.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, pair.KeyID(), parsed.Header["kid"])

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "https://issuer.test", claims["iss"])
	assert.Equal(t, "api", claims["aud"])
	assert.Equal(t, "read write", claims["scope"])
	assert.Equal(t, "acme", claims["org"])
	assert.NotEmpty(t, claims["jti"])
}

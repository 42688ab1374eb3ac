// Package keys generates asymmetric test key pairs and mints short-lived
// signed tokens for exercising the JWT verification path. Exporting raw
// private key material is blocked when a production runtime is detected.
package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tokengate/tokengate/pkg/envsignal"
	"github.com/tokengate/tokengate/pkg/errors"
)

// RSA keys below 2048 bits are not acceptable even for tests; a weak test
// key has a way of ending up in a staging deployment.
const minRSAKeySize = 2048

// TestKeyPair is an asymmetric key pair for tests and local development.
type TestKeyPair struct {
	guard      envsignal.Detector
	privateKey interface{}
	publicKey  interface{}
	keyID      string
	algorithm  string
}

// GenerateRSA generates a 2048-bit RSA pair signing RS256 tokens.
func GenerateRSA(guard envsignal.Detector) (*TestKeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, minRSAKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key pair: %w", err)
	}
	return &TestKeyPair{
		guard:      guard,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		keyID:      uuid.NewString(),
		algorithm:  "RS256",
	}, nil
}

// GenerateEC generates a P-256 ECDSA pair signing ES256 tokens.
func GenerateEC(guard envsignal.Detector) (*TestKeyPair, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key pair: %w", err)
	}
	return &TestKeyPair{
		guard:      guard,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		keyID:      uuid.NewString(),
		algorithm:  "ES256",
	}, nil
}

// LoadPrivateKey reads a PKCS#8 PEM private key from disk into a key pair,
// so a pair generated by keygen can be reused across runs. The key ID is
// regenerated; callers needing a stable kid should keep the pair in memory.
func LoadPrivateKey(path string, guard envsignal.Detector) (*TestKeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("file %s does not contain PEM data", path)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	pair := &TestKeyPair{guard: guard, privateKey: parsed, keyID: uuid.NewString()}
	switch key := parsed.(type) {
	case *rsa.PrivateKey:
		pair.publicKey = &key.PublicKey
		pair.algorithm = "RS256"
	case *ecdsa.PrivateKey:
		pair.publicKey = &key.PublicKey
		pair.algorithm = "ES256"
	default:
		return nil, fmt.Errorf("unsupported private key type %T", parsed)
	}
	return pair, nil
}

// KeyID returns the generated key identifier used as the JWKS "kid".
func (k *TestKeyPair) KeyID() string { return k.keyID }

// Algorithm returns the signing algorithm for tokens minted by this pair.
func (k *TestKeyPair) Algorithm() string { return k.algorithm }

// PublicKey returns the public half in the form golang-jwt expects.
func (k *TestKeyPair) PublicKey() interface{} { return k.publicKey }

// PublicKeyPEM returns the public key PKIX-encoded in PEM.
func (k *TestKeyPair) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(k.publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// PrivateKeyPEM returns the private key PKCS#8-encoded in PEM. Refused under
// the production guard.
func (k *TestKeyPair) PrivateKeyPEM() ([]byte, error) {
	if err := k.checkGuard(); err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(k.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// SavePrivateKey writes the private key PEM to disk with 0600 permissions.
// Refused under the production guard.
func (k *TestKeyPair) SavePrivateKey(path string) error {
	data, err := k.PrivateKeyPEM()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write private key file: %w", err)
	}
	return nil
}

// SavePublicKey writes the public key PEM to disk.
func (k *TestKeyPair) SavePublicKey(path string) error {
	data, err := k.PublicKeyPEM()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write public key file: %w", err)
	}
	return nil
}

func (k *TestKeyPair) checkGuard() error {
	if k.guard != nil && k.guard.IsProduction() {
		return errors.New(errors.ErrCodeProductionGuard,
			"private test key material cannot be exported in a production runtime")
	}
	return nil
}

// JWKS returns a JSON Web Key Set document containing the public key, ready
// to be served by a test HTTP server.
func (k *TestKeyPair) JWKS() ([]byte, error) {
	key := map[string]string{
		"kid": k.keyID,
		"use": "sig",
		"alg": k.algorithm,
	}
	switch pub := k.publicKey.(type) {
	case *rsa.PublicKey:
		key["kty"] = "RSA"
		key["n"] = base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
		key["e"] = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	case *ecdsa.PublicKey:
		size := (pub.Curve.Params().BitSize + 7) / 8
		key["kty"] = "EC"
		key["crv"] = pub.Curve.Params().Name
		key["x"] = base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, size)))
		key["y"] = base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, size)))
	default:
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}
	return json.Marshal(map[string]interface{}{"keys": []interface{}{key}})
}

// MintClaims describes a token to mint.
type MintClaims struct {
	Subject  string
	ClientID string
	Issuer   string
	Audience []string
	Scopes   []string
	TTL      time.Duration
	Extra    map[string]interface{}
}

// MintToken signs a short-lived token carrying the given claims, suitable
// for exercising a matching JWT verifier. TTL defaults to five minutes.
func (k *TestKeyPair) MintToken(claims MintClaims) (string, error) {
	ttl := claims.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()

	mapClaims := jwt.MapClaims{
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if claims.Subject != "" {
		mapClaims["sub"] = claims.Subject
	}
	if claims.ClientID != "" {
		mapClaims["client_id"] = claims.ClientID
	}
	if claims.Issuer != "" {
		mapClaims["iss"] = claims.Issuer
	}
	switch len(claims.Audience) {
	case 0:
	case 1:
		mapClaims["aud"] = claims.Audience[0]
	default:
		mapClaims["aud"] = claims.Audience
	}
	if len(claims.Scopes) > 0 {
		mapClaims["scope"] = strings.Join(claims.Scopes, " ")
	}
	for name, value := range claims.Extra {
		mapClaims[name] = value
	}

	method := jwt.GetSigningMethod(k.algorithm)
	if method == nil {
		return "", fmt.Errorf("unsupported signing algorithm %q", k.algorithm)
	}
	tok := jwt.NewWithClaims(method, mapClaims)
	tok.Header["kid"] = k.keyID

	signed, err := tok.SignedString(k.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

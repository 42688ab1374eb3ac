package verifier

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/tokengate/tokengate/pkg/errors"
)

// asymmetricAlgorithms is the whitelist of signature algorithms allowed when
// keys are resolved from a JWKS endpoint or a static public key.
var asymmetricAlgorithms = map[string]bool{
	"RS256": true, "RS384": true, "RS512": true, // RSASSA-PKCS1-v1_5
	"PS256": true, "PS384": true, "PS512": true, // RSASSA-PSS
	"ES256": true, "ES384": true, "ES512": true, // ECDSA
}

// hmacMinKeyBytes maps each permitted HMAC algorithm to its minimum secret
// length in bytes, matching the digest size of the underlying hash.
var hmacMinKeyBytes = map[string]int{
	"HS256": 32,
	"HS384": 48,
	"HS512": 64,
}

// weakKeySubstrings are placeholder values that show up in configs copied
// from documentation. A real pre-shared key never contains them.
var weakKeySubstrings = []string{
	"secret",
	"password",
	"changeme",
	"change-me",
	"default",
	"example",
	"test-key",
	"your-256-bit",
	"0123456789",
}

// IsAsymmetricAlgorithm reports whether alg is a whitelisted asymmetric
// signature algorithm.
func IsAsymmetricAlgorithm(alg string) bool {
	return asymmetricAlgorithms[alg]
}

// IsHMACAlgorithm reports whether alg is a permitted HMAC algorithm.
func IsHMACAlgorithm(alg string) bool {
	_, ok := hmacMinKeyBytes[alg]
	return ok
}

// SupportedAlgorithms lists every algorithm a JWT verifier may be configured
// with, asymmetric first.
func SupportedAlgorithms() []string {
	return []string{
		"RS256", "RS384", "RS512",
		"PS256", "PS384", "PS512",
		"ES256", "ES384", "ES512",
		"HS256", "HS384", "HS512",
	}
}

// ValidateHMACKey rejects pre-shared keys that are too short for the chosen
// algorithm, match obvious placeholder patterns, or decode from base64 to a
// value below the minimum length.
func ValidateHMACKey(alg string, key []byte) error {
	minLen, ok := hmacMinKeyBytes[alg]
	if !ok {
		return errors.Newf(errors.ErrCodeUnsafeAlgorithm, "%q is not an HMAC algorithm", alg)
	}
	if len(key) < minLen {
		return errors.Newf(errors.ErrCodeWeakKey,
			"HMAC key for %s must be at least %d bytes, got %d", alg, minLen, len(key))
	}
	if isRepeatedRun(key) {
		return errors.Newf(errors.ErrCodeWeakKey, "HMAC key for %s is a repeated byte run", alg)
	}
	lowered := strings.ToLower(string(key))
	for _, weak := range weakKeySubstrings {
		if strings.Contains(lowered, weak) {
			return errors.Newf(errors.ErrCodeWeakKey,
				"HMAC key for %s matches a known placeholder pattern", alg)
		}
	}
	// A base64-encoded key may satisfy the length check while the material
	// it actually decodes to does not.
	if decoded, ok := decodeBase64(key); ok && len(decoded) < minLen {
		return errors.Newf(errors.ErrCodeWeakKey,
			"HMAC key for %s decodes from base64 to %d bytes, below the %d byte minimum",
			alg, len(decoded), minLen)
	}
	return nil
}

// isRepeatedRun reports whether the key repeats a block of at most four
// bytes, e.g. "aaaa..." or "abababab...".
func isRepeatedRun(key []byte) bool {
	for period := 1; period <= 4 && period < len(key); period++ {
		repeated := true
		for i := period; i < len(key); i++ {
			if key[i] != key[i%period] {
				repeated = false
				break
			}
		}
		if repeated {
			return true
		}
	}
	return false
}

func decodeBase64(key []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(key)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := enc.DecodeString(string(trimmed)); err == nil {
			return decoded, true
		}
	}
	return nil, false
}

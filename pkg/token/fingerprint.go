package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 hex digest of a raw token. It is the only
// form in which a token may appear in log lines, error details, or rate-limit
// bucket keys; the raw string never leaves the verification path.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

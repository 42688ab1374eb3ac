// Package secrets resolves configuration secrets (signing keys, client
// credentials) from an external store through a TTL cache, and wraps every
// value in a type that cannot leak through logging or serialization.
package secrets

// Redacted is what a Secret renders as anywhere except an explicit Reveal.
const Redacted = "[REDACTED]"

// Secret carries a sensitive value. Its default string conversion and JSON
// encoding are redacted; callers unwrap with Reveal at the point of use.
type Secret struct {
	value string
}

// New wraps a plaintext value.
func New(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the plaintext. Call sites should pass the result directly
// into the consuming API rather than storing it.
func (s Secret) Reveal() string {
	return s.value
}

// IsZero reports whether the secret holds no value.
func (s Secret) IsZero() bool {
	return s.value == ""
}

// String implements fmt.Stringer with a redacted placeholder.
func (s Secret) String() string {
	return Redacted
}

// GoString keeps %#v output redacted as well.
func (s Secret) GoString() string {
	return "secrets.Secret{" + Redacted + "}"
}

// MarshalJSON encodes the redacted placeholder, never the plaintext.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

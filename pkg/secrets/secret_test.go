package secrets

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	s := New("super-sensitive!")

	assert.Equal(t, Redacted, s.String())
	assert.Equal(t, Redacted, fmt.Sprintf("%s", s))
	assert.Equal(t, Redacted, fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "super-sensitive")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-sensitive")

	assert.Equal(t, "super-sensitive!", s.Reveal())
}

func TestSecretIsZero(t *testing.T) {
	assert.True(t, Secret{}.IsZero())
	assert.True(t, New("").IsZero())
	assert.False(t, New("x").IsZero())
}

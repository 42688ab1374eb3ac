package secrets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/tokengate/pkg/errors"
)

// countingStore records lookups and can be told to fail.
type countingStore struct {
	values map[string]string
	calls  int
	fail   bool
}

func (s *countingStore) GetSecret(_ context.Context, name, version string) (string, error) {
	s.calls++
	if s.fail {
		return "", fmt.Errorf("store unavailable")
	}
	v, ok := s.values[name+"@"+version]
	if !ok {
		return "", fmt.Errorf("secret %s not found", name)
	}
	return v, nil
}

func TestResolverCachesWithinTTL(t *testing.T) {
	store := &countingStore{values: map[string]string{"api-key@latest": "s3cr3t-value!"}}
	r := NewResolver(store, WithTTL(time.Hour))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		secret, err := r.GetSecret(ctx, "api-key")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t-value!", secret.Reveal())
	}
	assert.Equal(t, 1, store.calls, "one fetch serves repeated lookups")
}

func TestResolverRefetchesAfterTTL(t *testing.T) {
	store := &countingStore{values: map[string]string{"api-key@latest": "first!"}}
	r := NewResolver(store, WithTTL(50*time.Millisecond))

	ctx := context.Background()
	_, err := r.GetSecret(ctx, "api-key")
	require.NoError(t, err)

	store.values["api-key@latest"] = "rotated!"
	time.Sleep(80 * time.Millisecond)

	secret, err := r.GetSecret(ctx, "api-key")
	require.NoError(t, err)
	assert.Equal(t, "rotated!", secret.Reveal())
	assert.Equal(t, 2, store.calls)
}

func TestResolverFailsLoudNeverStale(t *testing.T) {
	store := &countingStore{values: map[string]string{"api-key@latest": "first!"}}
	r := NewResolver(store, WithTTL(50*time.Millisecond))

	ctx := context.Background()
	_, err := r.GetSecret(ctx, "api-key")
	require.NoError(t, err)

	store.fail = true
	time.Sleep(80 * time.Millisecond)

	_, err = r.GetSecret(ctx, "api-key")
	require.Error(t, err, "expired entry is never served on fetch failure")
	assert.Equal(t, errors.ErrCodeSecretUnavailable, errors.CodeOf(err))
}

func TestResolverFallback(t *testing.T) {
	primary := &countingStore{fail: true}
	fallback := &countingStore{values: map[string]string{"api-key@latest": "from-fallback!"}}
	r := NewResolver(primary, WithFallback(fallback))

	secret, err := r.GetSecret(context.Background(), "api-key")
	require.NoError(t, err)
	assert.Equal(t, "from-fallback!", secret.Reveal())
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestResolverInvalidate(t *testing.T) {
	store := &countingStore{values: map[string]string{"api-key@latest": "v1!"}}
	r := NewResolver(store, WithTTL(time.Hour))

	ctx := context.Background()
	_, err := r.GetSecret(ctx, "api-key")
	require.NoError(t, err)

	store.values["api-key@latest"] = "v2!"
	r.Invalidate("api-key", "")

	secret, err := r.GetSecret(ctx, "api-key")
	require.NoError(t, err)
	assert.Equal(t, "v2!", secret.Reveal())
}

func TestResolverRequiresName(t *testing.T) {
	r := NewResolver(&countingStore{})
	_, err := r.GetSecret(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
}

func TestEnvStore(t *testing.T) {
	t.Setenv("TG_OAUTH_CLIENT_SECRET", "env-value!")
	store := EnvStore{Prefix: "TG_"}

	value, err := store.GetSecret(context.Background(), "oauth-client-secret", LatestVersion)
	require.NoError(t, err)
	assert.Equal(t, "env-value!", value)

	_, err = store.GetSecret(context.Background(), "oauth-client-secret", "3")
	assert.Error(t, err, "pinned versions are not resolvable from the environment")

	_, err = store.GetSecret(context.Background(), "missing-secret", LatestVersion)
	assert.Error(t, err)
}

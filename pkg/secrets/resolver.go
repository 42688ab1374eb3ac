package secrets

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/tokengate/tokengate/pkg/errors"
)

const (
	// LatestVersion is the version selector used when the caller does not
	// pin a specific secret version.
	LatestVersion = "latest"

	// DefaultTTL caps how long a resolved secret is reused without
	// consulting the backing store again.
	DefaultTTL = 300 * time.Second

	// cacheSize bounds the number of distinct (name, version) entries kept.
	cacheSize = 128
)

// Store is the external secret-storage collaborator. Implementations perform
// the actual lookup (cloud secret manager, vault, environment) and are free
// to be slow; the Resolver caches in front of them.
type Store interface {
	GetSecret(ctx context.Context, name, version string) (string, error)
}

// EnvStore resolves secrets from the process environment. A name like
// "oauth-client-secret" maps to the variable OAUTH_CLIENT_SECRET, with the
// optional Prefix prepended. Versions other than "latest" are not supported
// since the environment holds a single value.
type EnvStore struct {
	Prefix string
}

// GetSecret implements Store.
func (s EnvStore) GetSecret(_ context.Context, name, version string) (string, error) {
	if version != "" && version != LatestVersion {
		return "", errors.Newf(errors.ErrCodeSecretUnavailable,
			"environment store cannot resolve pinned version %q of %q", version, name)
	}
	key := s.Prefix + envKey(name)
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", errors.Newf(errors.ErrCodeSecretUnavailable,
			"environment variable %s is not set", key)
	}
	return value, nil
}

func envKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, ".", "_")
	return key
}

// Resolver layers a TTL cache in front of a Store. Expired entries are
// evicted by the cache itself, so a fetch failure can never silently serve a
// stale value: unlike JWKS key material, a stale secret could mask a
// completed rotation and reintroduce a retired credential.
type Resolver struct {
	store    Store
	fallback Store
	ttl      time.Duration
	cache    *expirable.LRU[string, Secret]
	logger   zerolog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTTL overrides the cache TTL.
func WithTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithFallback sets a secondary store consulted only when the primary fetch
// fails. Typical use is EnvStore behind a managed secret store.
func WithFallback(store Store) ResolverOption {
	return func(r *Resolver) { r.fallback = store }
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		ttl:    DefaultTTL,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = expirable.NewLRU[string, Secret](cacheSize, nil, r.ttl)
	return r
}

// GetSecret resolves the latest version of a named secret.
func (r *Resolver) GetSecret(ctx context.Context, name string) (Secret, error) {
	return r.GetSecretVersion(ctx, name, LatestVersion)
}

// GetSecretVersion resolves a specific version of a named secret. A cache
// hit within the TTL returns without any external call; on miss or expiry
// the backing store is consulted, then the fallback if one is configured,
// and otherwise the failure is returned loudly.
func (r *Resolver) GetSecretVersion(ctx context.Context, name, version string) (Secret, error) {
	if name == "" {
		return Secret{}, errors.New(errors.ErrCodeInvalidConfig, "secret name is required")
	}
	if version == "" {
		version = LatestVersion
	}
	key := name + "@" + version

	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	value, err := r.store.GetSecret(ctx, name, version)
	if err != nil {
		if r.fallback == nil {
			return Secret{}, errors.Wrapf(err, errors.ErrCodeSecretUnavailable,
				"failed to resolve secret %q version %q", name, version)
		}
		r.logger.Warn().
			Str("secret", name).
			Str("version", version).
			Err(err).
			Msg("primary secret store failed, trying fallback")
		value, err = r.fallback.GetSecret(ctx, name, version)
		if err != nil {
			return Secret{}, errors.Wrapf(err, errors.ErrCodeSecretUnavailable,
				"failed to resolve secret %q version %q from fallback", name, version)
		}
	}

	secret := New(value)
	r.cache.Add(key, secret)
	return secret, nil
}

// Invalidate drops a cached entry, forcing the next lookup to fetch.
func (r *Resolver) Invalidate(name, version string) {
	if version == "" {
		version = LatestVersion
	}
	r.cache.Remove(name + "@" + version)
}

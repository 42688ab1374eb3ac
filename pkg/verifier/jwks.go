package verifier

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/rs/zerolog"

	"github.com/tokengate/tokengate/pkg/errors"
)

// minRefreshInterval throttles forced refreshes triggered by unknown key
// IDs, so a flood of garbage kids cannot turn into a flood of upstream
// fetches.
const minRefreshInterval = 10 * time.Second

// keySetCache is a time-based cache of JWKS key material keyed by key ID.
//
// Freshness rules: within the TTL, lookups are served from memory. On expiry
// or an unrecognized kid, one fresh fetch happens (graceful rotation). If the
// fetch fails and a previously cached set exists, the stale set keeps serving
// so a transient provider outage does not reject all traffic; if no set has
// ever been cached, the failure surfaces as JWKS_UNAVAILABLE — fail closed,
// never open.
//
// No lock is held across the network fetch: eligibility, I/O, and the cache
// update are separate critical sections.
type keySetCache struct {
	url    string
	ttl    time.Duration
	client *http.Client
	logger zerolog.Logger

	// refreshMu serializes fetches so concurrent misses collapse into one
	// upstream request.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	keys      map[string]interface{}
	fetchedAt time.Time
}

func newKeySetCache(url string, ttl time.Duration, logger zerolog.Logger) *keySetCache {
	if ttl <= 0 {
		ttl = DefaultJWKSCacheTTL
	}
	return &keySetCache{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// key resolves a key ID to verification key material under the freshness
// rules above.
func (c *keySetCache) key(ctx context.Context, kid string) (interface{}, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := c.keys != nil && time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	// Stale cache or unknown kid: refresh once, then decide.
	if err := c.refresh(ctx); err != nil {
		c.mu.RLock()
		key, ok = c.keys[kid]
		havePrevious := c.keys != nil
		c.mu.RUnlock()

		if !havePrevious {
			return nil, errors.Wrap(err, errors.ErrCodeJWKSUnavailable,
				"JWKS fetch failed with no cached key set")
		}
		c.logger.Warn().Err(err).Str("jwks_url", c.url).
			Msg("JWKS refresh failed, serving last known good key set")
		if ok {
			return key, nil
		}
		return nil, errors.Newf(errors.ErrCodeUnknownKeyID,
			"key ID %q not present in last known good key set", kid)
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownKeyID,
			"key ID %q not present in freshly fetched key set", kid)
	}
	return key, nil
}

// refresh fetches the key set once. Callers racing here share a single
// upstream request; a refresh completed moments ago by another goroutine (or
// forced by a burst of unknown kids) is reused instead of repeated.
func (c *keySetCache) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	recentlyFetched := c.keys != nil && time.Since(c.fetchedAt) < minRefreshInterval
	c.mu.RUnlock()
	if recentlyFetched {
		return nil
	}

	jwks, err := keyfunc.Get(c.url, keyfunc.Options{
		Ctx:    ctx,
		Client: c.client,
	})
	if err != nil {
		return err
	}

	fetched := make(map[string]interface{})
	for kid, key := range jwks.ReadOnlyKeys() {
		if key == nil {
			continue
		}
		fetched[kid] = key
	}

	c.mu.Lock()
	c.keys = fetched
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.logger.Debug().Str("jwks_url", c.url).Int("keys", len(fetched)).
		Msg("JWKS key set refreshed")
	return nil
}

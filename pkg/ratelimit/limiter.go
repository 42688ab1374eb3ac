// Package ratelimit bounds the cost an attacker can impose on the token
// verification path. Attempts are counted per token fingerprint inside a
// rolling window, before any cryptographic or network work happens.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts is the number of verification attempts permitted
	// per token fingerprint within the window.
	DefaultMaxAttempts = 10

	// DefaultWindow is the rolling window length.
	DefaultWindow = 60 * time.Second

	// shardCount spreads buckets over independent locks so unrelated
	// requests never serialize on a single mutex.
	shardCount = 64

	// sweepInterval is the number of accesses per shard between lazy
	// sweeps of aged-out buckets.
	sweepInterval = 256
)

// bucket records the recent attempt timestamps for one token fingerprint.
// evicted marks a bucket that a sweep removed from its shard map; attempts
// must never be recorded on an evicted bucket.
type bucket struct {
	mu       sync.Mutex
	attempts []time.Time
	evicted  bool
}

// shard owns a slice of the fingerprint space.
type shard struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	accesses int
}

// Limiter is an in-process sliding-window limiter keyed by token
// fingerprint. It is safe for concurrent use; each bucket has its own lock
// and cleanup happens lazily on access, so memory stays proportional to
// active traffic.
type Limiter struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	shards      [shardCount]*shard
}

// New creates a Limiter. Non-positive arguments fall back to the defaults.
func New(maxAttempts int, window time.Duration) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return l
}

// Allow records a verification attempt for the given token fingerprint and
// reports whether it may proceed. Every attempt counts, allowed or not, since
// both successful and failed validations consume resources downstream.
func (l *Limiter) Allow(fingerprint string) bool {
	now := l.now()
	s := l.shards[shardIndex(fingerprint)]

	for {
		s.mu.Lock()
		s.accesses++
		if s.accesses%sweepInterval == 0 {
			l.sweepLocked(s, now)
		}
		b, ok := s.buckets[fingerprint]
		if !ok {
			b = &bucket{}
			s.buckets[fingerprint] = b
		}
		s.mu.Unlock()

		b.mu.Lock()
		if b.evicted {
			// A sweep on another goroutine removed this bucket between
			// the shard and bucket locks. Recording here would lose the
			// attempt, so look the bucket up again.
			b.mu.Unlock()
			continue
		}
		b.attempts = prune(b.attempts, now.Add(-l.window))
		allowed := len(b.attempts) < l.maxAttempts
		if allowed {
			b.attempts = append(b.attempts, now)
		}
		b.mu.Unlock()
		return allowed
	}
}

// sweepLocked drops buckets whose every attempt has aged out. Caller holds
// the shard lock; bucket locks are taken underneath it, which matches the
// shard-then-bucket ordering used everywhere.
func (l *Limiter) sweepLocked(s *shard, now time.Time) {
	cutoff := now.Add(-l.window)
	for fp, b := range s.buckets {
		b.mu.Lock()
		b.attempts = prune(b.attempts, cutoff)
		if len(b.attempts) == 0 {
			b.evicted = true
			delete(s.buckets, fp)
		}
		b.mu.Unlock()
	}
}

// prune discards timestamps at or before the cutoff. Attempts are appended
// in order, so a single scan from the front suffices.
func prune(attempts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return attempts
	}
	remaining := len(attempts) - i
	copy(attempts, attempts[i:])
	return attempts[:remaining]
}

func shardIndex(fingerprint string) int {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	return int(h.Sum32() % shardCount)
}

package jose

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxRateLimiterKeys bounds the per-key limiter map.
const maxRateLimiterKeys = 10000

// RateLimiter bounds token issuance per key to keep a misbehaving caller
// from minting tokens in bulk. Each key gets its own token bucket; the
// limiter is safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	closed  bool
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows maxRate requests per window for each key. Invalid
// arguments fall back to 100 per minute.
func NewRateLimiter(maxRate int, window time.Duration) *RateLimiter {
	if maxRate <= 0 {
		maxRate = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(float64(maxRate) / window.Seconds()),
		burst:   maxRate,
	}
}

// Allow reports whether one request is allowed for the key. An empty key is
// always denied.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.AllowN(key, 1)
}

// AllowN reports whether n requests are allowed for the key at once.
// n <= 0 is always allowed, an empty key never.
func (rl *RateLimiter) AllowN(key string, n int) bool {
	if n <= 0 {
		return true
	}
	if key == "" {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.closed {
		return false
	}

	entry, exists := rl.entries[key]
	if !exists {
		if len(rl.entries) >= maxRateLimiterKeys {
			rl.evictOldestUnsafe()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.AllowN(time.Now(), n)
}

// Reset forgets the key's bucket, restoring its full burst.
func (rl *RateLimiter) Reset(key string) {
	if key == "" {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

// Close releases all buckets. Subsequent Allow calls return false. Safe to
// call more than once.
func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.closed {
		return
	}

	rl.closed = true
	clear(rl.entries)
	rl.entries = nil
}

func (rl *RateLimiter) evictOldestUnsafe() {
	if len(rl.entries) == 0 {
		return
	}

	oldestKey := ""
	var oldestSeen time.Time
	first := true

	for key, entry := range rl.entries {
		if first || entry.lastSeen.Before(oldestSeen) {
			oldestKey = key
			oldestSeen = entry.lastSeen
			first = false
		}
	}

	delete(rl.entries, oldestKey)
}

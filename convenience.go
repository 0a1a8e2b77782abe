package jose

import (
	"sync"
	"sync/atomic"
	"time"
)

type cacheEntry struct {
	processor  *Processor
	lastAccess atomic.Int64
	refCount   atomic.Int32
}

type processorCache struct {
	entries     map[string]*cacheEntry
	mu          sync.RWMutex
	lastCleanup atomic.Int64
}

var procCache = &processorCache{
	entries: make(map[string]*cacheEntry, 16),
}

// CreateToken issues an access token using a cached default Processor for
// the key. Convenience for simple setups; long-lived services should hold
// their own Processor. The secret key must be at least 32 bytes.
func CreateToken(secretKey string, claims *SessionToken) (string, error) {
	if len(secretKey) < 32 {
		return "", ErrInvalidSecretKey
	}

	processor, release, err := getProcessor(secretKey)
	if err != nil {
		return "", err
	}
	defer release()

	return processor.CreateToken(claims)
}

// ValidateToken validates a token using a cached default Processor for the
// key. The secret key must be at least 32 bytes.
func ValidateToken(secretKey, tokenString string) (*SessionToken, bool, error) {
	if len(secretKey) < 32 {
		return nil, false, ErrInvalidSecretKey
	}

	processor, release, err := getProcessor(secretKey)
	if err != nil {
		return nil, false, err
	}
	defer release()

	return processor.ValidateToken(tokenString)
}

// RevokeToken revokes a token using a cached default Processor for the key.
// The secret key must be at least 32 bytes.
func RevokeToken(secretKey, tokenString string) error {
	if len(secretKey) < 32 {
		return ErrInvalidSecretKey
	}

	processor, release, err := getProcessor(secretKey)
	if err != nil {
		return err
	}
	defer release()

	return processor.RevokeToken(tokenString)
}

func getProcessor(secretKey string) (*Processor, func(), error) {
	now := time.Now().Unix()

	procCache.mu.RLock()
	entry, exists := procCache.entries[secretKey]
	procCache.mu.RUnlock()

	if exists {
		entry.lastAccess.Store(now)
		entry.refCount.Add(1)
		return entry.processor, func() { entry.refCount.Add(-1) }, nil
	}

	processor, err := New(secretKey)
	if err != nil {
		return nil, func() {}, err
	}

	procCache.mu.Lock()
	defer procCache.mu.Unlock()

	// Another goroutine may have won the race while we built ours.
	if entry, exists := procCache.entries[secretKey]; exists {
		processor.Close()
		entry.lastAccess.Store(now)
		entry.refCount.Add(1)
		return entry.processor, func() { entry.refCount.Add(-1) }, nil
	}

	const maxCacheSize = 100
	if len(procCache.entries) >= maxCacheSize {
		evictOldestUnsafe()
	}

	entry = &cacheEntry{processor: processor}
	entry.lastAccess.Store(now)
	entry.refCount.Store(1)
	procCache.entries[secretKey] = entry

	cleanupCacheIfNeeded(now)

	return processor, func() { entry.refCount.Add(-1) }, nil
}

func evictOldestUnsafe() {
	if len(procCache.entries) == 0 {
		return
	}

	oldestKey := ""
	oldestTime := int64(1<<63 - 1)

	for k, entry := range procCache.entries {
		if entry.refCount.Load() > 0 {
			continue
		}
		lastAccess := entry.lastAccess.Load()
		if lastAccess < oldestTime {
			oldestKey = k
			oldestTime = lastAccess
		}
	}

	if oldestKey != "" {
		if entry, exists := procCache.entries[oldestKey]; exists {
			if entry.processor != nil {
				entry.processor.Close()
			}
			delete(procCache.entries, oldestKey)
		}
	}
}

const (
	cacheCleanupInterval = 300  // 5 minutes in seconds
	cacheMaxIdleTime     = 3600 // 1 hour in seconds
)

func cleanupCacheIfNeeded(now int64) {
	lastCleanup := procCache.lastCleanup.Load()
	if now-lastCleanup < cacheCleanupInterval {
		return
	}

	if !procCache.lastCleanup.CompareAndSwap(lastCleanup, now) {
		return
	}

	for key, entry := range procCache.entries {
		if entry.refCount.Load() > 0 {
			continue
		}
		if now-entry.lastAccess.Load() > cacheMaxIdleTime {
			if entry.processor != nil {
				entry.processor.Close()
			}
			delete(procCache.entries, key)
		}
	}
}

// ClearCache closes and forgets all cached processors. Mainly for tests and
// graceful shutdown.
func ClearCache() {
	procCache.mu.Lock()
	defer procCache.mu.Unlock()

	for key, entry := range procCache.entries {
		if entry.processor != nil {
			entry.processor.Close()
		}
		delete(procCache.entries, key)
	}
}

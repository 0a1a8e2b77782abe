package blacklist

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// errStoreClosed indicates that the store has been closed
var errStoreClosed = errors.New("blacklist store is closed")

// memoryStore keeps revocations in an in-process TTL cache. The cache
// expires entries itself; the explicit Cleanup pass exists to reclaim the
// memory of expired-but-unswept items and to keep eviction bounded.
type memoryStore struct {
	entries *cache.Cache
	maxSize int

	mu     sync.RWMutex
	closed bool
}

// NewMemoryStore creates an in-memory store bounded to maxSize entries.
// When full it sheds the entries closest to expiry.
func NewMemoryStore(maxSize int) Store {
	if maxSize <= 0 {
		maxSize = 100000
	}
	return &memoryStore{
		// Per-entry TTLs are set on Add; the background janitor stays off
		// because the manager drives cleanup on its own ticker.
		entries: cache.New(cache.NoExpiration, 0),
		maxSize: maxSize,
	}
}

func (m *memoryStore) Add(tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errStoreClosed
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// The token is already expired, nothing to track.
		return nil
	}

	if m.entries.ItemCount() >= m.maxSize {
		m.entries.DeleteExpired()
		if m.entries.ItemCount() >= m.maxSize {
			m.evictSoonestExpiring(m.maxSize / 10)
		}
	}

	m.entries.Set(tokenID, struct{}{}, ttl)
	return nil
}

func (m *memoryStore) Contains(tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, errStoreClosed
	}

	_, found := m.entries.Get(tokenID)
	return found, nil
}

func (m *memoryStore) Remove(tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errStoreClosed
	}

	m.entries.Delete(tokenID)
	return nil
}

func (m *memoryStore) Cleanup() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errStoreClosed
	}

	before := m.entries.ItemCount()
	m.entries.DeleteExpired()
	return before - m.entries.ItemCount(), nil
}

func (m *memoryStore) Size() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, errStoreClosed
	}

	return m.entries.ItemCount(), nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.entries.Flush()
	return nil
}

// evictSoonestExpiring sheds count entries, preferring those that would
// expire first anyway. Must be called with the write lock held.
func (m *memoryStore) evictSoonestExpiring(count int) {
	if count < 1 {
		count = 1
	}

	type aging struct {
		tokenID    string
		expiration int64
	}

	items := m.entries.Items()
	candidates := make([]aging, 0, len(items))
	for tokenID, item := range items {
		candidates = append(candidates, aging{tokenID, item.Expiration})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].expiration < candidates[j].expiration
	})

	for i := 0; i < len(candidates) && i < count; i++ {
		m.entries.Delete(candidates[i].tokenID)
	}
}

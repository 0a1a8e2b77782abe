package blacklist

import (
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
)

// DefaultRedisKeyPrefix namespaces revocation keys in Redis.
const DefaultRedisKeyPrefix = "jose:revoked:"

// redisStore keeps revocations in Redis with per-key TTLs, so expiry is
// handled server-side and revocations are visible to every node sharing the
// instance.
type redisStore struct {
	pool      *redis.Pool
	keyPrefix string

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore connects a revocation store to the Redis instance at addr.
// password and keyPrefix may be empty.
func NewRedisStore(addr, password, keyPrefix string) Store {
	pool := &redis.Pool{
		MaxIdle:     3,
		MaxActive:   64,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{
				redis.DialConnectTimeout(5 * time.Second),
				redis.DialReadTimeout(3 * time.Second),
				redis.DialWriteTimeout(3 * time.Second),
			}
			if password != "" {
				opts = append(opts, redis.DialPassword(password))
			}
			return redis.Dial("tcp", addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return NewRedisStoreFromPool(pool, keyPrefix)
}

// NewRedisStoreFromPool wraps an existing connection pool. The pool's
// lifecycle passes to the store; Close closes it.
func NewRedisStoreFromPool(pool *redis.Pool, keyPrefix string) Store {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &redisStore{
		pool:      pool,
		keyPrefix: keyPrefix,
	}
}

func (r *redisStore) key(tokenID string) string {
	return r.keyPrefix + tokenID
}

func (r *redisStore) Add(tokenID string, expiresAt time.Time) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return errStoreClosed
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	conn := r.pool.Get()
	defer conn.Close()

	// Round the TTL up so the revocation never dies before the token.
	seconds := int64(ttl/time.Second) + 1
	_, err := conn.Do("SETEX", r.key(tokenID), seconds, 1)
	return err
}

func (r *redisStore) Contains(tokenID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, errStoreClosed
	}

	conn := r.pool.Get()
	defer conn.Close()

	n, err := redis.Int(conn.Do("EXISTS", r.key(tokenID)))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *redisStore) Remove(tokenID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return errStoreClosed
	}

	conn := r.pool.Get()
	defer conn.Close()

	_, err := conn.Do("DEL", r.key(tokenID))
	return err
}

// Cleanup is a no-op: Redis expires keys itself.
func (r *redisStore) Cleanup() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, errStoreClosed
	}
	return 0, nil
}

func (r *redisStore) Size() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, errStoreClosed
	}

	conn := r.pool.Get()
	defer conn.Close()

	total := 0
	cursor := 0
	for {
		values, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", r.keyPrefix+"*", "COUNT", 512))
		if err != nil {
			return 0, err
		}
		cursor, err = redis.Int(values[0], nil)
		if err != nil {
			return 0, err
		}
		keys, err := redis.Strings(values[1], nil)
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if cursor == 0 {
			return total, nil
		}
	}
}

func (r *redisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	return r.pool.Close()
}

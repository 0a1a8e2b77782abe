// Package blacklist tracks revoked token IDs until their natural expiry.
// Storage is pluggable: an in-process cache for single-node deployments and
// a Redis store for fleets that must share revocations.
package blacklist

import (
	"time"
)

// Store backend types.
const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)

// Store is the storage side of revocation. Entries carry the token's expiry
// so a store never has to remember a revocation longer than the token could
// have lived.
type Store interface {
	// Add records a revoked token ID until expiresAt.
	Add(tokenID string, expiresAt time.Time) error

	// Contains reports whether a token ID is currently revoked.
	Contains(tokenID string) (bool, error)

	// Remove drops a token ID before its expiry.
	Remove(tokenID string) error

	// Cleanup removes entries whose tokens have expired, returning how many
	// were dropped.
	Cleanup() (int, error)

	// Size returns the number of tracked entries.
	Size() (int, error)

	// Close releases the store's resources.
	Close() error
}

// Manager wraps a Store with lifecycle management and token-string
// handling.
type Manager interface {
	// BlacklistToken revokes a token ID until expiresAt.
	BlacklistToken(tokenID string, expiresAt time.Time) error

	// IsBlacklisted reports whether a token ID is revoked.
	IsBlacklisted(tokenID string) (bool, error)

	// BlacklistTokenString pulls the ID and expiry out of a serialized token
	// and revokes it.
	BlacklistTokenString(tokenString string) error

	// Close stops background cleanup and closes the store.
	Close() error
}

// Config selects and sizes the revocation backend.
type Config struct {
	// CleanupInterval is how often expired entries are purged.
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// MaxSize bounds the memory store's entry count.
	MaxSize int `json:"max_size"`

	// EnableAutoCleanup runs the purge on a background ticker.
	EnableAutoCleanup bool `json:"enable_auto_cleanup"`

	// StoreType picks the backend, StoreTypeMemory by default.
	StoreType string `json:"store_type"`

	// RedisAddr is the host:port of the Redis backend.
	RedisAddr string `json:"redis_addr"`

	// RedisPassword authenticates against the Redis backend.
	RedisPassword string `json:"-"`

	// RedisKeyPrefix namespaces revocation keys, "jose:revoked:" by default.
	RedisKeyPrefix string `json:"redis_key_prefix"`
}

// NewStore builds the backend the config names.
func NewStore(config Config) Store {
	if config.StoreType == StoreTypeRedis {
		return NewRedisStore(config.RedisAddr, config.RedisPassword, config.RedisKeyPrefix)
	}
	return NewMemoryStore(config.MaxSize)
}

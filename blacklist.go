package jose

import (
	"time"

	"github.com/cybergodev/jose/internal/blacklist"
)

// Blacklist store backends.
const (
	BlacklistStoreMemory = blacklist.StoreTypeMemory
	BlacklistStoreRedis  = blacklist.StoreTypeRedis
)

// BlacklistConfig shapes the revocation store a Processor keeps.
type BlacklistConfig struct {
	// CleanupInterval specifies how often expired entries are purged.
	CleanupInterval time.Duration

	// MaxSize caps the in-memory store's entry count.
	MaxSize int

	// EnableAutoCleanup purges expired entries on a background ticker.
	EnableAutoCleanup bool

	// StoreType selects the backend, BlacklistStoreMemory by default.
	StoreType string

	// RedisAddr is the host:port of the Redis backend, required when
	// StoreType is BlacklistStoreRedis.
	RedisAddr string

	// RedisPassword authenticates against the Redis backend.
	RedisPassword string

	// RedisKeyPrefix namespaces revocation keys in Redis.
	RedisKeyPrefix string
}

// DefaultBlacklistConfig returns the in-memory revocation setup suitable for
// a single node.
func DefaultBlacklistConfig() BlacklistConfig {
	return BlacklistConfig{
		CleanupInterval:   5 * time.Minute,
		MaxSize:           100000,
		EnableAutoCleanup: true,
		StoreType:         BlacklistStoreMemory,
	}
}

// RedisBlacklistConfig returns a revocation setup backed by Redis, for
// fleets whose nodes must all see a revocation at once.
func RedisBlacklistConfig(addr, password string) BlacklistConfig {
	cfg := DefaultBlacklistConfig()
	cfg.StoreType = BlacklistStoreRedis
	cfg.RedisAddr = addr
	cfg.RedisPassword = password
	// Redis expires keys itself, no sweeper needed.
	cfg.EnableAutoCleanup = false
	return cfg
}

func (c BlacklistConfig) internal() blacklist.Config {
	return blacklist.Config{
		CleanupInterval:   c.CleanupInterval,
		MaxSize:           c.MaxSize,
		EnableAutoCleanup: c.EnableAutoCleanup,
		StoreType:         c.StoreType,
		RedisAddr:         c.RedisAddr,
		RedisPassword:     c.RedisPassword,
		RedisKeyPrefix:    c.RedisKeyPrefix,
	}
}

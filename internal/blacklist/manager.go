package blacklist

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// manager implements the Manager interface
type manager struct {
	store  Store
	config Config
	logger *zap.Logger
	mu     sync.RWMutex

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupWg     sync.WaitGroup

	closed bool
}

// NewManager wraps a store with background cleanup and token-string
// handling. A nil logger silences the manager.
func NewManager(store Store, config Config, logger *zap.Logger) Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &manager{
		store:       store,
		config:      config,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	if config.EnableAutoCleanup && config.CleanupInterval > 0 {
		m.startAutoCleanup()
	}
	return m
}

func (m *manager) BlacklistToken(tokenID string, expiresAt time.Time) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("blacklist manager is closed")
	}
	if tokenID == "" {
		return errors.New("token ID cannot be empty")
	}

	return m.store.Add(tokenID, expiresAt)
}

func (m *manager) IsBlacklisted(tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, errors.New("blacklist manager is closed")
	}
	if tokenID == "" {
		return false, nil
	}

	return m.store.Contains(tokenID)
}

// BlacklistTokenString revokes a serialized token by its "jti" claim,
// keeping the entry until the token's own "exp". The token's signature is
// irrelevant here: revoking a forgery is harmless, failing to revoke a
// genuine token is not.
func (m *manager) BlacklistTokenString(tokenString string) error {
	if tokenString == "" {
		return errors.New("token string cannot be empty")
	}

	tokenID, expiresAt, err := peekClaims(tokenString)
	if err != nil {
		return err
	}
	if tokenID == "" {
		return errors.New("token carries no ID (jti)")
	}
	if expiresAt.IsZero() {
		// No expiry to inherit; hold the revocation for a day.
		expiresAt = time.Now().Add(24 * time.Hour)
	}

	return m.BlacklistToken(tokenID, expiresAt)
}

func (m *manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
		close(m.stopCleanup)
		m.cleanupWg.Wait()
	}

	return m.store.Close()
}

func (m *manager) startAutoCleanup() {
	m.cleanupTicker = time.NewTicker(m.config.CleanupInterval)
	m.cleanupWg.Add(1)

	go func() {
		defer m.cleanupWg.Done()

		for {
			select {
			case <-m.cleanupTicker.C:
				m.performCleanup()
			case <-m.stopCleanup:
				return
			}
		}
	}()
}

func (m *manager) performCleanup() {
	removed, err := m.store.Cleanup()
	if err != nil {
		m.logger.Warn("revocation cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		m.logger.Debug("revocation cleanup", zap.Int("removed", removed))
	}
}

// peekClaims reads the "jti" and "exp" claims straight out of the payload
// segment without a full decode.
func peekClaims(tokenString string) (tokenID string, expiresAt time.Time, err error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return "", time.Time{}, errors.New("token must have 3 segments")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("decoding claims segment: %w", err)
	}
	v, err := fastjson.ParseBytes(payload)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parsing claims: %w", err)
	}
	tokenID = string(v.GetStringBytes("jti"))
	if exp := v.GetInt64("exp"); exp > 0 {
		expiresAt = time.Unix(exp, 0)
	}
	return tokenID, expiresAt, nil
}

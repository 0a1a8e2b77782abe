package jose

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cybergodev/jose/internal/blacklist"
	"github.com/cybergodev/jose/internal/security"
)

// maxSecureTokenSize caps tokens the processor will even look at.
const maxSecureTokenSize = 8192

// Processor is the managed session-token layer: it signs SessionToken
// claims with a configured HMAC key, validates them with a strict clock and
// issuer policy, and tracks revocations until the tokens would have expired
// anyway.
type Processor struct {
	key              *HMACKey
	accessTokenTTL   time.Duration
	refreshTokenTTL  time.Duration
	issuer           string
	signingMethod    SigningMethod
	blacklistManager blacklist.Manager
	rateLimiter      *RateLimiter
	logger           *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a Processor with the default in-memory revocation store.
// The secret key must be at least 32 bytes of real entropy.
func New(secretKey string, config ...Config) (*Processor, error) {
	if len(secretKey) < 32 {
		return nil, ErrInvalidSecretKey
	}
	return NewWithBlacklist(secretKey, DefaultBlacklistConfig(), config...)
}

// NewWithBlacklist creates a Processor with a custom revocation setup.
func NewWithBlacklist(secretKey string, blacklistConfig BlacklistConfig, config ...Config) (*Processor, error) {
	if len(secretKey) < 32 {
		return nil, ErrInvalidSecretKey
	}

	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	} else {
		cfg = DefaultConfig()
	}

	cfg.SecretKey = secretKey

	if cfg.SigningMethod == "" {
		cfg.SigningMethod = SigningMethodHS256
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "jose-service"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	key, err := signingKeyFor(cfg.SigningMethod, []byte(cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := blacklist.NewStore(blacklistConfig.internal())
	blacklistMgr := blacklist.NewManager(store, blacklistConfig.internal(), logger)

	var rateLimiter *RateLimiter
	if cfg.EnableRateLimit {
		rateLimiter = NewRateLimiter(cfg.RateLimitRate, cfg.RateLimitWindow)
	}

	processor := &Processor{
		key:              key,
		accessTokenTTL:   cfg.AccessTokenTTL,
		refreshTokenTTL:  cfg.RefreshTokenTTL,
		issuer:           cfg.Issuer,
		signingMethod:    cfg.SigningMethod,
		blacklistManager: blacklistMgr,
		rateLimiter:      rateLimiter,
		logger:           logger,
	}

	runtime.SetFinalizer(processor, (*Processor).finalize)
	return processor, nil
}

func signingKeyFor(method SigningMethod, secret []byte) (*HMACKey, error) {
	switch method {
	case SigningMethodHS256:
		return NewHS256Key(secret)
	case SigningMethodHS384:
		return NewHS384Key(secret)
	case SigningMethodHS512:
		return NewHS512Key(secret)
	}
	return nil, ErrInvalidSigningMethod
}

// CreateToken issues an access token for the claims.
func (p *Processor) CreateToken(claims *SessionToken) (string, error) {
	return p.CreateTokenWithContext(context.Background(), claims)
}

// CreateTokenWithContext issues an access token, honoring ctx cancellation.
func (p *Processor) CreateTokenWithContext(ctx context.Context, claims *SessionToken) (string, error) {
	if claims == nil {
		return "", ErrInvalidClaims
	}
	if err := validateSessionClaims(claims); err != nil {
		return "", fmt.Errorf("claims security validation failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkClosed(); err != nil {
		return "", err
	}

	return p.issueToken(claims, p.accessTokenTTL)
}

// CreateRefreshToken issues a token with the longer refresh TTL.
func (p *Processor) CreateRefreshToken(claims *SessionToken) (string, error) {
	if claims == nil {
		return "", ErrInvalidClaims
	}
	if err := validateSessionClaims(claims); err != nil {
		return "", fmt.Errorf("claims security validation failed: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkClosed(); err != nil {
		return "", err
	}

	return p.issueToken(claims, p.refreshTokenTTL)
}

// ValidateToken checks a token's signature, claims and revocation status.
// It returns the claims and true for a live token; false with a nil error
// for an authentic token that is expired, not yet valid or mis-issued; and
// a generic error for anything that failed structurally or
// cryptographically.
func (p *Processor) ValidateToken(tokenString string) (*SessionToken, bool, error) {
	return p.ValidateTokenWithContext(context.Background(), tokenString)
}

// ValidateTokenWithContext validates a token, honoring ctx cancellation.
func (p *Processor) ValidateTokenWithContext(ctx context.Context, tokenString string) (*SessionToken, bool, error) {
	if err := validateTokenSize(tokenString); err != nil {
		return nil, false, fmt.Errorf("token security validation failed: %w", err)
	}
	if containsMaliciousPatterns(tokenString) {
		return nil, false, ErrInvalidToken
	}

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkClosed(); err != nil {
		return nil, false, err
	}

	claims, valid, err := p.verifySession(tokenString)
	if err != nil {
		// One generic answer for every hostile input, after a jittered
		// delay, so failures are indistinguishable from outside.
		security.SecureRandomDelay()
		return nil, false, ErrInvalidToken
	}
	if claims != nil && claims.ID != "" {
		revoked, err := p.blacklistManager.IsBlacklisted(claims.ID)
		if err != nil {
			return nil, false, fmt.Errorf("blacklist check failed: %w", err)
		}
		if revoked {
			return nil, false, ErrTokenRevoked
		}
	}

	return claims, valid, nil
}

// RefreshToken validates a refresh token and issues a fresh access token
// carrying the same session claims.
func (p *Processor) RefreshToken(refreshTokenString string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkClosed(); err != nil {
		return "", err
	}

	claims, valid, err := p.verifySession(refreshTokenString)
	if err != nil {
		return "", fmt.Errorf("invalid refresh token: %w", err)
	}
	if !valid {
		return "", fmt.Errorf("%w: refresh token no longer valid", ErrInvalidToken)
	}
	if claims.ID != "" {
		revoked, err := p.blacklistManager.IsBlacklisted(claims.ID)
		if err != nil {
			return "", fmt.Errorf("blacklist check failed: %w", err)
		}
		if revoked {
			return "", ErrTokenRevoked
		}
	}

	next := *claims
	next.IssuedAt = nil
	next.NotBefore = nil
	next.ExpiresAt = nil
	next.ID = ""

	return p.issueToken(&next, p.accessTokenTTL)
}

// RevokeToken revokes a serialized token by its "jti" claim.
func (p *Processor) RevokeToken(tokenString string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkClosed(); err != nil {
		return err
	}

	if err := p.blacklistManager.BlacklistTokenString(tokenString); err != nil {
		return err
	}
	p.logger.Debug("token revoked")
	return nil
}

// RevokeTokenByID revokes a token ID directly, keeping the entry until
// expiresAt.
func (p *Processor) RevokeTokenByID(tokenID string, expiresAt time.Time) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkClosed(); err != nil {
		return err
	}

	return p.blacklistManager.BlacklistToken(tokenID, expiresAt)
}

// IsTokenRevoked reports whether a serialized token has been revoked. The
// signature is not checked; only the "jti" claim is read.
func (p *Processor) IsTokenRevoked(tokenString string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkClosed(); err != nil {
		return false, err
	}

	_, encClaims, _, err := split3(tokenString)
	if err != nil {
		return false, err
	}
	raw, err := decodeSegment(encClaims)
	if err != nil {
		return false, err
	}
	var claims SessionToken
	if err := json.Unmarshal(raw, &claims); err != nil {
		return false, fmt.Errorf("%w: decoding claims: %v", ErrSerialization, err)
	}
	if claims.ID == "" {
		return false, ErrTokenMissingID
	}

	return p.blacklistManager.IsBlacklisted(claims.ID)
}

// Close shuts the processor down and zeroes the signing key.
func (p *Processor) Close() error {
	return p.CloseWithContext(context.Background())
}

// CloseWithContext shuts down, abandoning the revocation store's close when
// ctx expires first.
func (p *Processor) CloseWithContext(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrProcessorClosed
	}

	var closeErr error

	if p.blacklistManager != nil {
		done := make(chan error, 1)
		go func() {
			done <- p.blacklistManager.Close()
		}()

		select {
		case err := <-done:
			if err != nil {
				closeErr = fmt.Errorf("blacklist manager close failed: %w", err)
			}
		case <-ctx.Done():
			closeErr = fmt.Errorf("blacklist manager close timeout: %w", ctx.Err())
		}
	}

	if p.key != nil {
		p.key.Destroy()
		p.key = nil
	}

	if p.rateLimiter != nil {
		p.rateLimiter.Close()
		p.rateLimiter = nil
	}

	p.closed = true
	p.logger.Debug("processor closed")
	runtime.SetFinalizer(p, nil)
	return closeErr
}

func (p *Processor) finalize() {
	if !p.closed {
		p.Close()
	}
}

func (p *Processor) checkClosed() error {
	if p.closed {
		return ErrProcessorClosed
	}
	return nil
}

// IsClosed reports whether the processor has been closed.
func (p *Processor) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// issueToken stamps missing registered claims and signs. The caller's
// claims are never mutated.
func (p *Processor) issueToken(claims *SessionToken, ttl time.Duration) (string, error) {
	if p.rateLimiter != nil && !p.rateLimiter.Allow("token_creation:"+claims.Custom.UserID) {
		return "", ErrRateLimitExceeded
	}

	c := *claims
	now := time.Now()
	if c.IssuedAt == nil {
		c.IssuedAt = NewNumericDate(now)
	}
	if c.ExpiresAt == nil {
		c.ExpiresAt = NewNumericDate(now.Add(ttl))
	}
	if c.Issuer == "" {
		c.Issuer = p.issuer
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	token, err := Sign(p.key, &c)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	p.logger.Debug("token issued",
		zap.String("jti", c.ID),
		zap.Time("expires_at", c.ExpiresAt.Time))
	return token, nil
}

// verifySession authenticates a token under the processor's policy.
// Authentic tokens that merely fail the claim checks come back invalid with
// no error; everything else is an error.
func (p *Processor) verifySession(tokenString string) (*SessionToken, bool, error) {
	claims, err := Verify[SessionClaims](p.key, tokenString, p.verifyOptions())
	if err == nil {
		return claims, true, nil
	}
	if isClaimPolicyError(err) {
		return nil, false, nil
	}
	return nil, false, err
}

// verifyOptions is the processor's acceptance policy: its own issuer only,
// no clock tolerance, and a hard size cap.
func (p *Processor) verifyOptions() *VerificationOptions {
	return &VerificationOptions{
		AllowedIssuers: []string{p.issuer},
		TimeTolerance:  Ptr(time.Duration(0)),
		MaxTokenLength: maxSecureTokenSize,
	}
}

func isClaimPolicyError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenNotYetValid) ||
		errors.Is(err, ErrIssuedInFuture) ||
		errors.Is(err, ErrIssuerNotAllowed)
}

// validateTokenSize rejects tokens outside structural bounds before any
// parsing.
func validateTokenSize(tokenString string) error {
	if len(tokenString) == 0 {
		return ErrEmptyToken
	}
	if len(tokenString) > maxSecureTokenSize {
		return fmt.Errorf("%w: %d bytes", ErrTokenTooLarge, len(tokenString))
	}
	if strings.Count(tokenString, ".") != 2 {
		return ErrInvalidToken
	}
	return nil
}

var suspiciousTokenPatterns = []string{
	"<script", "javascript:", "vbscript:", "eval(",
	"../", "..\\", "file://",
}

// containsMaliciousPatterns flags token strings that cannot be genuine:
// embedded control bytes or script fragments.
func containsMaliciousPatterns(token string) bool {
	for _, char := range token {
		if char < 32 && char != '\t' && char != '\n' && char != '\r' {
			return true
		}
	}

	lower := strings.ToLower(token)
	for _, pattern := range suspiciousTokenPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

package jose

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cybergodev/jose/internal/security"
)

// Config tunes a Processor.
type Config struct {
	// SecretKey signs session tokens (minimum 32 bytes required).
	SecretKey string `yaml:"secret_key" json:"secret_key"`

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" json:"access_token_ttl"`

	// RefreshTokenTTL defines the lifetime of refresh tokens (must be greater than AccessTokenTTL).
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" json:"refresh_token_ttl"`

	// Issuer is stamped into every issued token and enforced on validation.
	Issuer string `yaml:"issuer" json:"issuer"`

	// SigningMethod specifies the algorithm used to sign tokens.
	SigningMethod SigningMethod `yaml:"signing_method" json:"signing_method"`

	// EnableRateLimit bounds token creation per user.
	EnableRateLimit bool `yaml:"enable_rate_limit" json:"enable_rate_limit"`

	// RateLimitRate specifies the maximum number of tokens per window.
	RateLimitRate int `yaml:"rate_limit_rate" json:"rate_limit_rate"`

	// RateLimitWindow defines the time window for rate limiting.
	RateLimitWindow time.Duration `yaml:"rate_limit_window" json:"rate_limit_window"`

	// Logger receives the processor's operational logging. Nil keeps it
	// silent.
	Logger *zap.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns a secure default configuration for production use.
func DefaultConfig() Config {
	return Config{
		SecretKey:       "",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "jose-service",
		SigningMethod:   SigningMethodHS256,
		EnableRateLimit: false,
		RateLimitRate:   100,
		RateLimitWindow: time.Minute,
	}
}

// fileConfig is the YAML shape of Config. Durations are strings in
// time.ParseDuration syntax ("15m", "168h").
type fileConfig struct {
	SecretKey       string `yaml:"secret_key"`
	AccessTokenTTL  string `yaml:"access_token_ttl"`
	RefreshTokenTTL string `yaml:"refresh_token_ttl"`
	Issuer          string `yaml:"issuer"`
	SigningMethod   string `yaml:"signing_method"`
	EnableRateLimit bool   `yaml:"enable_rate_limit"`
	RateLimitRate   int    `yaml:"rate_limit_rate"`
	RateLimitWindow string `yaml:"rate_limit_window"`
}

// LoadConfig reads a YAML config file over the defaults. Fields absent from
// the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: reading %s: %v", ErrInvalidConfig, path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}

	if file.SecretKey != "" {
		cfg.SecretKey = file.SecretKey
	}
	if file.Issuer != "" {
		cfg.Issuer = file.Issuer
	}
	if file.SigningMethod != "" {
		cfg.SigningMethod = SigningMethod(file.SigningMethod)
	}
	cfg.EnableRateLimit = file.EnableRateLimit
	if file.RateLimitRate > 0 {
		cfg.RateLimitRate = file.RateLimitRate
	}

	if cfg.AccessTokenTTL, err = overrideDuration(cfg.AccessTokenTTL, file.AccessTokenTTL); err != nil {
		return cfg, fmt.Errorf("%w: access_token_ttl: %v", ErrInvalidConfig, err)
	}
	if cfg.RefreshTokenTTL, err = overrideDuration(cfg.RefreshTokenTTL, file.RefreshTokenTTL); err != nil {
		return cfg, fmt.Errorf("%w: refresh_token_ttl: %v", ErrInvalidConfig, err)
	}
	if cfg.RateLimitWindow, err = overrideDuration(cfg.RateLimitWindow, file.RateLimitWindow); err != nil {
		return cfg, fmt.Errorf("%w: rate_limit_window: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

func overrideDuration(current time.Duration, raw string) (time.Duration, error) {
	if raw == "" {
		return current, nil
	}
	return time.ParseDuration(raw)
}

// Validate reports whether the configuration can back a Processor.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}

	keyLen := len(c.SecretKey)
	if keyLen < 32 {
		return fmt.Errorf("%w: minimum 32 bytes required, got %d", ErrInvalidSecretKey, keyLen)
	}

	if security.IsWeakKey([]byte(c.SecretKey)) {
		return fmt.Errorf("%w: key must have sufficient entropy and complexity", ErrInvalidSecretKey)
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: TTL must be positive", ErrInvalidConfig)
	}

	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("%w: access token TTL must be less than refresh token TTL", ErrInvalidConfig)
	}

	switch c.SigningMethod {
	case SigningMethodHS256, SigningMethodHS384, SigningMethodHS512, "":
		return nil
	default:
		return ErrInvalidSigningMethod
	}
}

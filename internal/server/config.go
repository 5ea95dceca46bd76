package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains the server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string

	// InactivityTimeout is the idle window before a session is treated
	// as abandoned. WarningLead is how far ahead of that deadline the
	// operator is warned; it must be shorter than the timeout.
	InactivityTimeout time.Duration
	WarningLead       time.Duration

	// RememberTimeout is the idle window for remember-me sessions.
	RememberTimeout time.Duration

	// TokenSecret signs access tokens. Empty means the binary generates
	// an ephemeral secret at startup, which invalidates sessions on
	// restart.
	TokenSecret  string
	TokenIssuer  string
	TokenTTL     time.Duration
	RotateWithin time.Duration

	// LoginPath and CookieName shape the gate.
	LoginPath       string
	CookieName      string
	CookieSecure    bool
	ValidateTimeout time.Duration

	// AllowedOrigins feeds the CORS layer for dashboard windows served
	// from another host.
	AllowedOrigins []string

	// RedisAddr enables the shared registry and cross-tab signals.
	// Empty runs single-node with in-memory state.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CleanupInterval time.Duration
	MetricsInterval time.Duration

	LogLevel string
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		InactivityTimeout: 30 * time.Minute,
		WarningLead:       5 * time.Minute,
		RememberTimeout:   12 * time.Hour,
		TokenIssuer:       "gym-manager",
		TokenTTL:          15 * time.Minute,
		RotateWithin:      5 * time.Minute,
		LoginPath:         "/login",
		CookieName:        "gym_session",
		ValidateTimeout:   5 * time.Second,
		AllowedOrigins:    []string{"*"},
		CleanupInterval:   5 * time.Minute,
		MetricsInterval:   15 * time.Second,
		LogLevel:          "info",
	}
}

// FromEnv builds a configuration from GYM_* environment variables on
// top of the defaults.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.Addr = envString("GYM_ADDR", cfg.Addr)
	cfg.TokenSecret = envString("GYM_TOKEN_SECRET", cfg.TokenSecret)
	cfg.TokenIssuer = envString("GYM_TOKEN_ISSUER", cfg.TokenIssuer)
	cfg.LoginPath = envString("GYM_LOGIN_PATH", cfg.LoginPath)
	cfg.CookieName = envString("GYM_COOKIE_NAME", cfg.CookieName)
	cfg.RedisAddr = envString("GYM_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envString("GYM_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.LogLevel = envString("GYM_LOG_LEVEL", cfg.LogLevel)
	if v := envString("GYM_ALLOWED_ORIGINS", ""); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	var err error
	if cfg.InactivityTimeout, err = envDuration("GYM_INACTIVITY_TIMEOUT", cfg.InactivityTimeout); err != nil {
		return cfg, err
	}
	if cfg.WarningLead, err = envDuration("GYM_WARNING_LEAD", cfg.WarningLead); err != nil {
		return cfg, err
	}
	if cfg.RememberTimeout, err = envDuration("GYM_REMEMBER_TIMEOUT", cfg.RememberTimeout); err != nil {
		return cfg, err
	}
	if cfg.TokenTTL, err = envDuration("GYM_TOKEN_TTL", cfg.TokenTTL); err != nil {
		return cfg, err
	}
	if cfg.RotateWithin, err = envDuration("GYM_ROTATE_WITHIN", cfg.RotateWithin); err != nil {
		return cfg, err
	}
	if cfg.ValidateTimeout, err = envDuration("GYM_VALIDATE_TIMEOUT", cfg.ValidateTimeout); err != nil {
		return cfg, err
	}
	if cfg.CleanupInterval, err = envDuration("GYM_CLEANUP_INTERVAL", cfg.CleanupInterval); err != nil {
		return cfg, err
	}
	if cfg.MetricsInterval, err = envDuration("GYM_METRICS_INTERVAL", cfg.MetricsInterval); err != nil {
		return cfg, err
	}
	if cfg.CookieSecure, err = envBool("GYM_COOKIE_SECURE", cfg.CookieSecure); err != nil {
		return cfg, err
	}
	if cfg.RedisDB, err = envInt("GYM_REDIS_DB", cfg.RedisDB); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot run with. An
// invalid idle window fails here rather than being clamped at runtime.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity timeout must be positive, got %v", c.InactivityTimeout)
	}
	if c.WarningLead < 0 || c.WarningLead >= c.InactivityTimeout {
		return fmt.Errorf("warning lead %v must be non-negative and shorter than the inactivity timeout %v", c.WarningLead, c.InactivityTimeout)
	}
	if c.RememberTimeout < c.InactivityTimeout {
		return fmt.Errorf("remember timeout %v must not be shorter than the inactivity timeout %v", c.RememberTimeout, c.InactivityTimeout)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %v", c.TokenTTL)
	}
	if c.RotateWithin < 0 || c.RotateWithin >= c.TokenTTL {
		return fmt.Errorf("rotate-within %v must be shorter than the token ttl %v", c.RotateWithin, c.TokenTTL)
	}
	if c.ValidateTimeout <= 0 {
		return fmt.Errorf("validate timeout must be positive, got %v", c.ValidateTimeout)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive, got %v", c.CleanupInterval)
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics interval must be positive, got %v", c.MetricsInterval)
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed origins must not be empty")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

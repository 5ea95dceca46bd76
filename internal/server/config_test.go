package server

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.InactivityTimeout != 30*time.Minute {
		t.Errorf("Expected InactivityTimeout to be 30 minutes, got %v", cfg.InactivityTimeout)
	}
	if cfg.WarningLead != 5*time.Minute {
		t.Errorf("Expected WarningLead to be 5 minutes, got %v", cfg.WarningLead)
	}
	if cfg.RememberTimeout != 12*time.Hour {
		t.Errorf("Expected RememberTimeout to be 12 hours, got %v", cfg.RememberTimeout)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Errorf("Expected TokenTTL to be 15 minutes, got %v", cfg.TokenTTL)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("Expected CleanupInterval to be 5 minutes, got %v", cfg.CleanupInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel to be 'info', got %s", cfg.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*Config)
	}{
		{"zero inactivity timeout", func(c *Config) { c.InactivityTimeout = 0 }},
		{"negative warning lead", func(c *Config) { c.WarningLead = -time.Minute }},
		{"warning lead equals timeout", func(c *Config) { c.WarningLead = c.InactivityTimeout }},
		{"warning lead exceeds timeout", func(c *Config) { c.WarningLead = c.InactivityTimeout + time.Minute }},
		{"remember shorter than inactivity", func(c *Config) { c.RememberTimeout = time.Minute }},
		{"zero token ttl", func(c *Config) { c.TokenTTL = 0 }},
		{"rotate-within exceeds token ttl", func(c *Config) { c.RotateWithin = c.TokenTTL }},
		{"zero validate timeout", func(c *Config) { c.ValidateTimeout = 0 }},
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"no allowed origins", func(c *Config) { c.AllowedOrigins = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.tweak(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GYM_ADDR", ":9090")
	t.Setenv("GYM_INACTIVITY_TIMEOUT", "45m")
	t.Setenv("GYM_WARNING_LEAD", "10m")
	t.Setenv("GYM_COOKIE_SECURE", "true")
	t.Setenv("GYM_REDIS_DB", "3")
	t.Setenv("GYM_ALLOWED_ORIGINS", "https://desk.example.com, https://admin.example.com")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Expected addr :9090, got %s", cfg.Addr)
	}
	if cfg.InactivityTimeout != 45*time.Minute {
		t.Errorf("Expected 45 minute inactivity timeout, got %v", cfg.InactivityTimeout)
	}
	if cfg.WarningLead != 10*time.Minute {
		t.Errorf("Expected 10 minute warning lead, got %v", cfg.WarningLead)
	}
	if !cfg.CookieSecure {
		t.Error("Expected secure cookies")
	}
	if cfg.RedisDB != 3 {
		t.Errorf("Expected redis db 3, got %d", cfg.RedisDB)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://desk.example.com" {
		t.Errorf("Expected two trimmed origins, got %v", cfg.AllowedOrigins)
	}
}

func TestFromEnv_RejectsMalformedValues(t *testing.T) {
	t.Setenv("GYM_INACTIVITY_TIMEOUT", "half an hour")

	if _, err := FromEnv(); err == nil {
		t.Error("Expected error for a malformed duration")
	}
}

func TestFromEnv_RejectsInvalidCombination(t *testing.T) {
	t.Setenv("GYM_INACTIVITY_TIMEOUT", "10m")
	t.Setenv("GYM_WARNING_LEAD", "10m")

	if _, err := FromEnv(); err == nil {
		t.Error("Expected error when the warning lead swallows the whole window")
	}
}

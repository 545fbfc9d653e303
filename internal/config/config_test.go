package config

import (
	"bytes"
	"testing"
	"time"
)

func validConfig(env string) Config {
	return Config{
		App:    AppConfig{Env: env, Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "relay"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret", JWTIssuer: "relay", JWTAudience: "relay-app"},
		Crypto: CryptoConfig{SettingsKey: bytes.Repeat([]byte{1}, 32)},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig("production")
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validConfig("local")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Dispatch.Workers != 2 || c.Dispatch.RatePerSec != 5 {
		t.Fatalf("unexpected dispatch defaults: %+v", c.Dispatch)
	}
	if c.Dispatch.ClaimTTL != 24*time.Hour {
		t.Fatalf("unexpected claim ttl: %s", c.Dispatch.ClaimTTL)
	}
	if c.Maintenance.RetentionCron == "" {
		t.Fatalf("expected retention cron default")
	}
}

func TestValidate_RequiresEncryptionKey(t *testing.T) {
	c := validConfig("local")
	c.Crypto.SettingsKey = []byte("short")
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for short encryption key")
	}
}

func TestValidate_SignatureNeedsPublicURL(t *testing.T) {
	c := validConfig("local")
	c.Twilio.ValidateSignature = true
	c.Twilio.AuthToken = "tok"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error without PUBLIC_BASE_URL")
	}
	c.Twilio.PublicBaseURL = "https://relay.example.com"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "relay")
	t.Setenv("DB_NAME", "relay")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SETTINGS_ENCRYPTION_KEY", "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE=")
	t.Setenv("TWILIO_FROM_NUMBER", " +15550001111 ")
	t.Setenv("DISPATCH_WORKERS", "4")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Twilio.FromNumber != "+15550001111" {
		t.Fatalf("unexpected from number %q", c.Twilio.FromNumber)
	}
	if c.Dispatch.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", c.Dispatch.Workers)
	}
	if c.TwilioConfigured() {
		t.Fatalf("expected twilio not configured without credentials")
	}
}

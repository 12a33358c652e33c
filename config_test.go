package authcore

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidatesWithKeys(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero access ttl", func(c *Config) { c.Token.AccessTTL = 0 }, "AccessTTL"},
		{"unknown signing method", func(c *Config) { c.Token.SigningMethod = "none" }, "signing method"},
		{"hs256 without key", func(c *Config) { c.Token.PrivateKey = nil }, "hs256"},
		{"excessive leeway", func(c *Config) { c.Token.Leeway = 10 * time.Minute }, "Leeway"},
		{"zero idle timeout", func(c *Config) { c.Session.IdleTimeout = 0 }, "IdleTimeout"},
		{"absolute below idle", func(c *Config) {
			c.Session.IdleTimeout = time.Hour
			c.Session.AbsoluteLifetime = time.Minute
		}, "AbsoluteLifetime"},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }, "SaltLength"},
		{"reset ttl too long", func(c *Config) { c.PasswordReset.ResetTTL = time.Hour }, "ResetTTL"},
		{"reset throttles off", func(c *Config) { c.PasswordReset.EnableIPThrottle = false }, "throttles"},
		{"otp too short", func(c *Config) { c.Verification.OTPDigits = 4 }, "OTPDigits"},
		{"require verify without verify", func(c *Config) {
			c.Verification.Enabled = false
			c.Verification.RequireForLogin = true
		}, "RequireForLogin"},
		{"totp digits out of range", func(c *Config) { c.SecondFactor.Digits = 12 }, "Digits"},
		{"totp period out of range", func(c *Config) { c.SecondFactor.Period = 5 }, "Period"},
		{"low threshold above batch", func(c *Config) {
			c.SecondFactor.BackupCodeCount = 4
			c.SecondFactor.LowCodeThreshold = 4
		}, "LowCodeThreshold"},
		{"zero lockout attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }, "Lockout"},
		{"zero lock duration", func(c *Config) { c.Lockout.LockDuration = 0 }, "LockDuration"},
		{"short csrf secret", func(c *Config) { c.CSRF.Secret = []byte("short") }, "CSRF"},
		{"federated exchange ttl too long", func(c *Config) {
			c.Federated.Enabled = true
			c.Federated.ExchangeTTL = time.Hour
		}, "ExchangeTTL"},
	}

	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.wantSub) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.wantSub)
		}
	}
}

func TestValidateProductionModeFloors(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ProductionMode = true

	// hs256 is a dev-only convenience.
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "ed25519") {
		t.Fatalf("expected ed25519 requirement, got %v", err)
	}
}

func TestConfigCloneIsolatesSecrets(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)

	cfg.Token.PrivateKey[0] ^= 0xff
	cfg.CSRF.Secret[0] ^= 0xff

	if clone.Token.PrivateKey[0] == cfg.Token.PrivateKey[0] {
		t.Fatal("clone shares the token key slice")
	}
	if clone.CSRF.Secret[0] == cfg.CSRF.Secret[0] {
		t.Fatal("clone shares the CSRF secret slice")
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without redis")
	}

	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without account provider")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).WithAccountProvider(newMemoryProvider()).Build(); err == nil {
		t.Fatal("expected error without notifier while verification is enabled")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithAccountProvider(newMemoryProvider()).
		WithNotifier(newMemoryNotifier())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error reusing a builder")
	}
}

func TestBuilderFederatedRequiresResolver(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	cfg.Federated.Enabled = true

	_, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(newMemoryProvider()).
		WithNotifier(newMemoryNotifier()).
		Build()
	if err == nil {
		t.Fatal("expected error without federated providers")
	}
}

package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token         TokenConfig
	Session       SessionConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Verification  VerificationConfig
	SecondFactor  SecondFactorConfig
	Lockout       LockoutConfig
	CSRF          CSRFConfig
	Federated     FederatedConfig
	Breach        BreachConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Security      SecurityConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authcore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix      string
	IdleTimeout      time.Duration
	AbsoluteLifetime time.Duration
}

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	HistoryDepth   int
	UpgradeOnLogin bool
}

// PasswordResetConfig defines a public type used by authcore APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	Enabled                  bool
	ResetTTL                 time.Duration
	MaxAttempts              int
	OTPDigits                int
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
}

// VerificationConfig defines a public type used by authcore APIs.
//
// VerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerificationConfig struct {
	Enabled                  bool
	VerificationTTL          time.Duration
	MaxAttempts              int
	OTPDigits                int
	RequireForLogin          bool
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
}

// SecondFactorConfig defines a public type used by authcore APIs.
//
// SecondFactorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecondFactorConfig struct {
	Enabled              bool
	Issuer               string
	Digits               int
	Period               int
	Skew                 int
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	BackupCodeCount      int
	LowCodeThreshold     int
}

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	MaxAttempts int
	// Window is how long failed attempts accumulate toward the
	// threshold.
	Window time.Duration
	// LockDuration is how long a tripped lock holds, counted from the
	// failure that crossed the threshold.
	LockDuration time.Duration
}

// CSRFConfig defines a public type used by authcore APIs.
//
// CSRFConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CSRFConfig struct {
	Enabled bool
	Secret  []byte
}

// FederatedConfig defines a public type used by authcore APIs.
//
// FederatedConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FederatedConfig struct {
	Enabled       bool
	ExchangeTTL   time.Duration
	StateTTL      time.Duration
	SweepInterval time.Duration
}

// BreachConfig defines a public type used by authcore APIs.
//
// BreachConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BreachConfig struct {
	Enabled bool
	Timeout time.Duration
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

// SecurityConfig defines a public type used by authcore APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     5 * time.Minute,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:      "ac",
			IdleTimeout:      2 * time.Minute,
			AbsoluteLifetime: 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			HistoryDepth:   5,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:                  true,
			ResetTTL:                 15 * time.Minute,
			MaxAttempts:              5,
			OTPDigits:                6,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
		},
		Verification: VerificationConfig{
			Enabled:                  true,
			VerificationTTL:          15 * time.Minute,
			MaxAttempts:              5,
			OTPDigits:                6,
			RequireForLogin:          true,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
		},
		SecondFactor: SecondFactorConfig{
			Enabled:              true,
			Issuer:               "",
			Digits:               6,
			Period:               30,
			Skew:                 3,
			ChallengeTTL:         3 * time.Minute,
			ChallengeMaxAttempts: 5,
			BackupCodeCount:      10,
			LowCodeThreshold:     2,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  5,
			Window:       5 * time.Minute,
			LockDuration: 5 * time.Minute,
		},
		CSRF: CSRFConfig{
			Enabled: true,
		},
		Federated: FederatedConfig{
			Enabled:       false,
			ExchangeTTL:   60 * time.Second,
			StateTTL:      5 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		Breach: BreachConfig{
			Enabled: false,
			Timeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.CSRF.Secret = cloneBytes(cfg.CSRF.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported token signing method")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.Token.SigningMethod == "hs256" && len(c.Token.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.IdleTimeout <= 0 {
		return errors.New("Session IdleTimeout must be > 0")
	}
	if c.Session.AbsoluteLifetime <= 0 {
		return errors.New("Session AbsoluteLifetime must be > 0")
	}
	if c.Session.AbsoluteLifetime < c.Session.IdleTimeout {
		return errors.New("Session AbsoluteLifetime must be >= IdleTimeout")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.HistoryDepth < 0 {
		return errors.New("Password HistoryDepth must be >= 0")
	}

	// Password Reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.ResetTTL <= 0 {
			return errors.New("PasswordReset ResetTTL must be > 0")
		}
		if c.PasswordReset.MaxAttempts <= 0 {
			return errors.New("PasswordReset MaxAttempts must be > 0")
		}
		if c.PasswordReset.OTPDigits < 6 || c.PasswordReset.OTPDigits > 10 {
			return errors.New("PasswordReset OTPDigits must be between 6 and 10")
		}
		if c.PasswordReset.ResetTTL > 15*time.Minute {
			return errors.New("PasswordReset ResetTTL must be <= 15m")
		}
		if !c.PasswordReset.EnableIPThrottle || !c.PasswordReset.EnableIdentifierThrottle {
			return errors.New("PasswordReset throttles must be enabled")
		}
	}

	// Verification
	if c.Verification.Enabled {
		if c.Verification.VerificationTTL <= 0 {
			return errors.New("Verification VerificationTTL must be > 0")
		}
		if c.Verification.MaxAttempts <= 0 {
			return errors.New("Verification MaxAttempts must be > 0")
		}
		if c.Verification.OTPDigits < 6 || c.Verification.OTPDigits > 10 {
			return errors.New("Verification OTPDigits must be between 6 and 10")
		}
		if !c.Verification.EnableIPThrottle || !c.Verification.EnableIdentifierThrottle {
			return errors.New("Verification throttles must be enabled")
		}
	}
	if c.Verification.RequireForLogin && !c.Verification.Enabled {
		return errors.New("Verification RequireForLogin requires Verification Enabled")
	}

	// Second factor
	if c.SecondFactor.Enabled {
		if c.SecondFactor.Digits < 6 || c.SecondFactor.Digits > 8 {
			return errors.New("SecondFactor Digits must be between 6 and 8")
		}
		if c.SecondFactor.Period < 15 || c.SecondFactor.Period > 120 {
			return errors.New("SecondFactor Period must be between 15 and 120 seconds")
		}
		if c.SecondFactor.Skew < 0 || c.SecondFactor.Skew > 10 {
			return errors.New("SecondFactor Skew must be between 0 and 10 steps")
		}
		if c.SecondFactor.ChallengeTTL <= 0 {
			return errors.New("SecondFactor ChallengeTTL must be > 0")
		}
		if c.SecondFactor.ChallengeMaxAttempts <= 0 {
			return errors.New("SecondFactor ChallengeMaxAttempts must be > 0")
		}
		if c.SecondFactor.BackupCodeCount < 1 || c.SecondFactor.BackupCodeCount > 64 {
			return errors.New("SecondFactor BackupCodeCount must be between 1 and 64")
		}
		if c.SecondFactor.LowCodeThreshold < 0 || c.SecondFactor.LowCodeThreshold >= c.SecondFactor.BackupCodeCount {
			return errors.New("SecondFactor LowCodeThreshold must be >= 0 and < BackupCodeCount")
		}
	}

	// Lockout
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("Lockout LockDuration must be > 0")
	}

	// CSRF
	if c.CSRF.Enabled && len(c.CSRF.Secret) < 32 {
		return errors.New("CSRF Secret must be >= 32 bytes when CSRF is enabled")
	}

	// Federated
	if c.Federated.Enabled {
		if c.Federated.ExchangeTTL <= 0 {
			return errors.New("Federated ExchangeTTL must be > 0")
		}
		if c.Federated.ExchangeTTL > 5*time.Minute {
			return errors.New("Federated ExchangeTTL must be <= 5m")
		}
		if c.Federated.StateTTL <= 0 {
			return errors.New("Federated StateTTL must be > 0")
		}
		if c.Federated.SweepInterval <= 0 {
			return errors.New("Federated SweepInterval must be > 0")
		}
	}

	// Breach
	if c.Breach.Enabled && c.Breach.Timeout <= 0 {
		return errors.New("Breach Timeout must be > 0 when breach screening is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Production hardening floors.
	if c.Security.ProductionMode {
		if c.Token.SigningMethod != "ed25519" {
			return errors.New("ProductionMode requires ed25519 signing")
		}
		if c.Token.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires Token AccessTTL <= 15m")
		}
		if !c.CSRF.Enabled {
			return errors.New("ProductionMode requires CSRF protection")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Session.AbsoluteLifetime > 7*24*time.Hour {
			return errors.New("ProductionMode requires Session AbsoluteLifetime <= 168h")
		}
	}

	return nil
}

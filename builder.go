package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	internalmetrics "github.com/cartstack/authcore/internal/metrics"
	"github.com/cartstack/authcore/password"
	"github.com/cartstack/authcore/session"
	"github.com/cartstack/authcore/token"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider  AccountProvider
	notifier  Notifier
	breach    BreachChecker
	auditSink AuditSink

	federatedProviders map[string]*oauth2.Config
	federatedResolver  FederatedIdentityResolver

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountProvider describes the withaccountprovider operation and its observable behavior.
//
// WithAccountProvider may return an error when input validation, dependency calls, or security checks fail.
// WithAccountProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.provider = p
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
//
// WithNotifier may return an error when input validation, dependency calls, or security checks fail.
// WithNotifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithBreachChecker installs a password breach checker. When omitted and
// breach screening is enabled, the public range API is used.
func (b *Builder) WithBreachChecker(c BreachChecker) *Builder {
	b.breach = c
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithFederatedProvider registers an OAuth2 provider for federated
// login under the given name.
func (b *Builder) WithFederatedProvider(name string, cfg *oauth2.Config) *Builder {
	if b.federatedProviders == nil {
		b.federatedProviders = make(map[string]*oauth2.Config)
	}
	b.federatedProviders[name] = cfg
	return b
}

// WithFederatedIdentityResolver installs the callback that turns a
// provider token into an asserted identity.
func (b *Builder) WithFederatedIdentityResolver(r FederatedIdentityResolver) *Builder {
	b.federatedResolver = r
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, errors.New("account provider required")
	}
	if b.notifier == nil && (cfg.Verification.Enabled || cfg.PasswordReset.Enabled) {
		return nil, errors.New("notifier required when verification or password reset is enabled")
	}
	if cfg.Federated.Enabled {
		if len(b.federatedProviders) == 0 {
			return nil, errors.New("federated login requires at least one provider")
		}
		if b.federatedResolver == nil {
			return nil, errors.New("federated login requires an identity resolver")
		}
	}

	engine := &Engine{
		config:   cfg,
		provider: b.provider,
		notifier: b.notifier,
	}

	engine.sessionStore = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	engine.lockout = newLockoutLimiter(b.redis, cfg.Lockout)
	engine.challengeStore = newLoginChallengeStore(b.redis)
	engine.verificationStore = newCodeChallengeStore(b.redis, verificationKeyPrefix)
	engine.resetStore = newCodeChallengeStore(b.redis, resetKeyPrefix)
	engine.verificationLimiter = newFlowLimiter(
		b.redis, "apvl",
		cfg.Verification.MaxAttempts, cfg.Verification.VerificationTTL,
		cfg.Verification.EnableIdentifierThrottle, cfg.Verification.EnableIPThrottle,
	)
	engine.resetLimiter = newFlowLimiter(
		b.redis, "aprl",
		cfg.PasswordReset.MaxAttempts, cfg.PasswordReset.ResetTTL,
		cfg.PasswordReset.EnableIdentifierThrottle, cfg.PasswordReset.EnableIPThrottle,
	)
	if cfg.Metrics.Enabled {
		engine.metrics = internalmetrics.NewRegistry()
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, engine.metrics)
	engine.totp = newTOTPManager(cfg.SecondFactor)

	if cfg.Breach.Enabled {
		engine.breach = b.breach
		if engine.breach == nil {
			engine.breach = NewRangeBreachChecker("", cfg.Breach.Timeout)
		}
	}

	if cfg.Federated.Enabled {
		engine.federatedProviders = b.federatedProviders
		engine.federatedResolver = b.federatedResolver
		engine.stateStore = newEphemeralStore[federatedState](
			cfg.Federated.StateTTL, cfg.Federated.SweepInterval, func(n int) {
				engine.metrics.Add(MetricEphemeralSwept, uint64(n))
			})
		engine.exchangeStore = newEphemeralStore[federatedExchange](
			cfg.Federated.ExchangeTTL, cfg.Federated.SweepInterval, func(n int) {
				engine.metrics.Add(MetricEphemeralSwept, uint64(n))
			})
	}

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	tm, err := token.NewManager(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokenManager = tm

	b.built = true

	return engine, nil
}

package goSecure

import (
	"crypto/rand"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSecure/account"
	"github.com/MrEthical07/goSecure/backupcode"
	"github.com/MrEthical07/goSecure/internal/audit"
	"github.com/MrEthical07/goSecure/internal/keylock"
	"github.com/MrEthical07/goSecure/internal/limiters"
	"github.com/MrEthical07/goSecure/internal/rate"
	"github.com/MrEthical07/goSecure/jwt"
	"github.com/MrEthical07/goSecure/otp"
	"github.com/MrEthical07/goSecure/password"
	"github.com/MrEthical07/goSecure/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine.
//
// Builder instances are intended to be configured during initialization and
// then used once; Build fails on a second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  account.Store
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The Builder keeps a copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for sessions and failure limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the profile store. See accountstore/ for the
// bundled Redis and PostgreSQL implementations.
func (b *Builder) WithAccountStore(store account.Store) *Builder {
	b.accounts = store
	return b
}

// WithAuditSink sets the audit destination. Audit must also be enabled in
// Config for events to be written.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for best-effort failures. The default is
// slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock for every time-dependent decision:
// OTP steps, session expiry, password age and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authentication latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
//
// Build may return an error when a dependency is missing or the
// configuration is rejected by Config.Validate.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- SESSIONS --------
	store := session.NewStore(b.redis, cfg.Session.RedisPrefix)
	registry := session.NewRegistry(store, session.RegistryConfig{
		TTL: cfg.Session.TTL,
		Now: clock,
	})

	engine := &Engine{
		config:       cloneConfig(cfg),
		accounts:     b.accounts,
		sessionStore: store,
		registry:     registry,
		locks:        keylock.New(cfg.Session.LockStripes),
		logger:       logger.With("component", "gosecure"),
		clock:        clock,
	}

	// -------- LIMITERS --------
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
	})
	if cfg.Security.MaxOTPAttempts > 0 {
		engine.otpLimiter = limiters.NewFailureLimiter(b.redis, limiters.ScopeOTP, limiters.Config{
			MaxAttempts: cfg.Security.MaxOTPAttempts,
			Cooldown:    cfg.Security.OTPCooldown,
		})
	}
	if cfg.Security.MaxBackupCodeAttempts > 0 {
		engine.backupLimiter = limiters.NewFailureLimiter(b.redis, limiters.ScopeBackupCode, limiters.Config{
			MaxAttempts: cfg.Security.MaxBackupCodeAttempts,
			Cooldown:    cfg.Security.BackupCodeCooldown,
		})
	}
	if cfg.Security.MaxPasswordAttempts > 0 {
		engine.passwordLimiter = limiters.NewFailureLimiter(b.redis, limiters.ScopePassword, limiters.Config{
			MaxAttempts: cfg.Security.MaxPasswordAttempts,
			Cooldown:    cfg.Security.PasswordCooldown,
		})
	}

	// -------- CREDENTIALS --------
	engine.otp = otp.Engine{
		Period: cfg.TOTP.Period,
		Skew:   otpSkew(cfg.TOTP.Skew),
		Now:    clock,
	}
	engine.codes = backupcode.Manager{Cost: cfg.BackupCodes.Cost}

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	decoy, err := ph.Hash(rand.Text())
	if err != nil {
		return nil, err
	}
	engine.decoyHash = decoy

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Bearer.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Bearer.PrivateKey),
		PublicKey:     cloneBytes(cfg.Bearer.PublicKey),
		Issuer:        cfg.Bearer.Issuer,
		Audience:      cfg.Bearer.Audience,
		Leeway:        cfg.Bearer.Leeway,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// -------- OBSERVABILITY --------
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     engine.logger,
	}, b.auditSink)

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

// otpSkew maps the config value onto otp.Engine, where zero means default
// and a negative value means the current step only.
func otpSkew(skew int) int {
	if skew == 0 {
		return -1
	}
	return skew
}

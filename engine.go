package goSecure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSecure/account"
	"github.com/MrEthical07/goSecure/backupcode"
	"github.com/MrEthical07/goSecure/internal/audit"
	"github.com/MrEthical07/goSecure/internal/flows"
	"github.com/MrEthical07/goSecure/internal/keylock"
	"github.com/MrEthical07/goSecure/internal/limiters"
	"github.com/MrEthical07/goSecure/internal/rate"
	"github.com/MrEthical07/goSecure/jwt"
	"github.com/MrEthical07/goSecure/otp"
	"github.com/MrEthical07/goSecure/password"
	"github.com/MrEthical07/goSecure/session"
)

// Engine is the account-security core: two-factor enrollment and
// verification, backup codes, the session registry and password rotation.
//
// Engine instances are intended to be configured during initialization and
// then treated as immutable. All methods are safe for concurrent use.
type Engine struct {
	config   Config
	accounts account.Store

	sessionStore *session.Store
	registry     *session.Registry
	locks        *keylock.Locker

	rateLimiter     *rate.Limiter
	otpLimiter      *limiters.FailureLimiter
	backupLimiter   *limiters.FailureLimiter
	passwordLimiter *limiters.FailureLimiter

	otp          otp.Engine
	codes        backupcode.Manager
	passwordHash *password.Argon2
	decoyHash    string
	jwtManager   *jwt.Manager

	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	clock   func() time.Time

	flows flows.Deps
}

// Close flushes the audit dispatcher. The Engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of every counter.
//
// MetricsSnapshot does not mutate shared global state and can be used
// concurrently with every other Engine method.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// NewSessionReaper returns a reaper over the engine's session store using
// the configured interval and retention. The caller owns its goroutine.
func (e *Engine) NewSessionReaper() *session.Reaper {
	return session.NewReaper(e.sessionStore, session.ReaperConfig{
		Interval:  e.config.Session.ReaperInterval,
		Retention: e.config.Session.Retention,
		Now:       e.clock,
	}, e.logger)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) lockAccount(accountID string) func() {
	return e.locks.Lock(accountID)
}

/*
====================================
PROFILE ACCESS
====================================
*/

func (e *Engine) loadProfile(ctx context.Context, accountID string) (account.Profile, error) {
	p, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Profile{}, ErrAccountNotFound
		}
		return account.Profile{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return p, nil
}

func (e *Engine) saveProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	saved, err := e.accounts.Save(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrVersionConflict):
			e.metricInc(MetricConcurrentUpdate)
			e.logger.Warn("profile write lost to a concurrent writer", "account_id", p.AccountID)
			return account.Profile{}, ErrConcurrentUpdate
		case errors.Is(err, account.ErrNotFound):
			return account.Profile{}, ErrAccountNotFound
		}
		return account.Profile{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return saved, nil
}

func (e *Engine) profileAccess() flows.ProfileAccess {
	return flows.ProfileAccess{
		Now:         e.now,
		LockAccount: e.lockAccount,
		LoadProfile: e.loadProfile,
		SaveProfile: e.saveProfile,
		Warn:        e.warn,
	}
}

func (e *Engine) warn(ctx context.Context, msg string, args ...any) {
	e.logger.WarnContext(ctx, msg, args...)
}

/*
====================================
FLOW WIRING
====================================
*/

func isRateLimited(err error) bool {
	return errors.Is(err, limiters.ErrRateLimited) || errors.Is(err, rate.ErrRateLimited)
}

// failureLimiter keeps a disabled limiter a nil interface.
func failureLimiter(l *limiters.FailureLimiter) flows.Limiter {
	if l == nil {
		return nil
	}
	return l
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		TwoFactor: e.twoFactorDeps(),
		Password:  e.passwordDeps(),
		Login:     e.loginDeps(),
	}
}

func (e *Engine) twoFactorDeps() flows.TwoFactorDeps {
	cfg := e.config
	return flows.TwoFactorDeps{
		ProfileAccess: e.profileAccess(),

		NewSecret: otp.NewSecret,
		ProvisionURI: func(label, secret string) string {
			return otp.ProvisioningURI(cfg.TOTP.Issuer, label, secret)
		},
		RenderQR: e.renderQR,
		IssueBackupCodes: func() ([]string, []string, error) {
			return e.codes.Issue(cfg.BackupCodes.Count)
		},
		ConsumeBackupCode: e.codes.Consume,
		VerifyOTP:         e.otp.Verify,
		ValidCodeFormat:   otp.ValidFormat,
		VerifyPassword:    e.passwordHash.Verify,

		OTPLimiter:      failureLimiter(e.otpLimiter),
		BackupLimiter:   failureLimiter(e.backupLimiter),
		PasswordLimiter: failureLimiter(e.passwordLimiter),
		IsRateLimited:   isRateLimited,

		MetricInc: e.flowMetricInc,
		EmitAudit: e.flowAudit,

		Metrics: flows.TwoFactorMetrics{
			Setup:             int(MetricTwoFactorSetup),
			Enabled:           int(MetricTwoFactorEnabled),
			Disabled:          int(MetricTwoFactorDisabled),
			VerifySuccess:     int(MetricTwoFactorVerifySuccess),
			VerifyFailure:     int(MetricTwoFactorVerifyFailure),
			BackupUsed:        int(MetricBackupCodeUsed),
			BackupFailed:      int(MetricBackupCodeFailed),
			BackupRegenerated: int(MetricBackupCodeRegenerated),
			RateLimited:       int(MetricRateLimitHit),
		},
		Events: flows.TwoFactorEvents{
			SetupRequested:     auditEventTwoFactorSetup,
			Enabled:            auditEventTwoFactorEnabled,
			EnableFailed:       auditEventTwoFactorEnableFailed,
			Disabled:           auditEventTwoFactorDisabled,
			DisableFailed:      auditEventTwoFactorDisableFailed,
			VerifySuccess:      auditEventTwoFactorSuccess,
			VerifyFailure:      auditEventTwoFactorFailure,
			BackupCodeUsed:     auditEventBackupCodeUsed,
			BackupCodeFailed:   auditEventBackupCodeFailed,
			BackupRegenerated:  auditEventBackupCodesGenerated,
			RegenerateRejected: auditEventBackupCodesRejected,
		},
		Errors: flows.TwoFactorErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidRequest:     ErrInvalidRequest,
			AlreadyEnabled:     ErrTwoFactorAlreadyEnabled,
			NotStaged:          ErrTwoFactorNotStaged,
			NotEnabled:         ErrTwoFactorNotEnabled,
			InvalidTokenFormat: ErrInvalidTokenFormat,
			InvalidCode:        ErrInvalidCode,
			PasswordIncorrect:  ErrPasswordIncorrect,
			RateLimited:        ErrRateLimited,
			Unavailable:        ErrUnavailable,
		},
	}
}

// renderQR returns an empty string when QR rendering is disabled.
func (e *Engine) renderQR(uri string) (string, error) {
	if e.config.TOTP.QRCodeSize == 0 {
		return "", nil
	}
	return otp.QRCodeDataURI(uri, e.config.TOTP.QRCodeSize)
}

func (e *Engine) passwordDeps() flows.PasswordDeps {
	cfg := e.config
	return flows.PasswordDeps{
		ProfileAccess: e.profileAccess(),

		MinLength:           cfg.Password.MinLength,
		MaxBytes:            cfg.Password.MaxBytes,
		RevokeOtherSessions: cfg.Password.RevokeOtherSessionsOnChange,

		VerifyPassword:  e.passwordHash.Verify,
		HashPassword:    e.passwordHash.Hash,
		RevokeAllExcept: e.registry.RevokeAllExcept,

		Limiter:       failureLimiter(e.passwordLimiter),
		IsRateLimited: isRateLimited,

		MetricInc: e.flowMetricInc,
		EmitAudit: e.flowAudit,

		Metrics: flows.PasswordMetrics{
			Success:        int(MetricPasswordChangeSuccess),
			InvalidCurrent: int(MetricPasswordChangeInvalidCurrent),
			Rejected:       int(MetricPasswordChangeRejected),
			RateLimited:    int(MetricRateLimitHit),
		},
		Events: flows.PasswordEvents{
			Changed:      auditEventPasswordChangeSuccess,
			ChangeFailed: auditEventPasswordChangeFailure,
		},
		Errors: flows.PasswordErrors{
			EngineNotReady:   ErrEngineNotReady,
			InvalidRequest:   ErrInvalidRequest,
			FieldsRequired:   ErrFieldsRequired,
			Mismatch:         ErrPasswordMismatch,
			TooShort:         ErrPasswordTooShort,
			TooLong:          ErrPasswordTooLong,
			Unchanged:        ErrPasswordUnchanged,
			CurrentIncorrect: ErrCurrentPasswordIncorrect,
			RateLimited:      ErrRateLimited,
			Unavailable:      ErrUnavailable,
		},
	}
}

func (e *Engine) loginDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		ProfileAccess: e.profileAccess(),

		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		IsRateLimited:          isRateLimited,

		VerifyPassword:       e.passwordHash.Verify,
		PasswordNeedsUpgrade: e.passwordHash.NeedsUpgrade,
		HashPassword:         e.passwordHash.Hash,
		DecoyHash:            e.decoyHash,

		NewSessionID:  session.NewID,
		IssueBearer:   e.issueBearer,
		CreateSession: e.createSession,

		MetricInc: e.flowMetricInc,
		EmitAudit: e.flowAudit,

		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			SessionCreated:   int(MetricSessionCreated),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			AccountNotFound:    ErrAccountNotFound,
			RateLimited:        ErrRateLimited,
			Unavailable:        ErrUnavailable,
		},
	}
	if e.config.Security.MaxLoginAttempts > 0 {
		deps.CheckLoginRate = e.rateLimiter.CheckLogin
		deps.IncrementLoginRate = e.rateLimiter.IncrementLogin
		deps.ResetLoginRate = e.rateLimiter.ResetLogin
	}
	return deps
}

func (e *Engine) issueBearer(accountID, sessionID string) (string, time.Time, error) {
	token, claims, err := e.jwtManager.Issue(accountID, sessionID)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

func (e *Engine) createSession(ctx context.Context, sessionID, accountID, token string, meta flows.LoginMeta) error {
	_, err := e.registry.CreateWithID(ctx, sessionID, accountID, token, session.Metadata{
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		Location:  meta.Location,
	})
	return mapSessionErr(err)
}

// mapSessionErr converts session package errors to engine errors.
func mapSessionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

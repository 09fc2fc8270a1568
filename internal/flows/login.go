package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LoginMeta is the request context recorded on the new session.
type LoginMeta struct {
	UserAgent string
	IPAddress string
	Location  string
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	AccountID         string
	SessionID         string
	BearerToken       string
	ExpiresAt         time.Time
	TwoFactorRequired bool
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	SessionCreated   int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountNotFound    error
	RateLimited        error
	Unavailable        error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	ProfileAccess

	PasswordUpgradeOnLogin bool

	CheckLoginRate     func(ctx context.Context, accountID, ip string) error
	IncrementLoginRate func(ctx context.Context, accountID, ip string) error
	ResetLoginRate     func(ctx context.Context, accountID, ip string) error
	IsRateLimited      func(error) bool

	VerifyPassword       func(candidate, encodedHash string) (bool, error)
	PasswordNeedsUpgrade func(encodedHash string) (bool, error)
	HashPassword         func(string) (string, error)

	// DecoyHash is verified against when the account does not exist, so an
	// unknown id costs the same as a wrong password.
	DecoyHash string

	NewSessionID  func() string
	IssueBearer   func(accountID, sessionID string) (token string, expiresAt time.Time, err error)
	CreateSession func(ctx context.Context, sessionID, accountID, token string, meta LoginMeta) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin verifies the password, issues a bearer and registers the session
// as the account's current one. Unknown accounts and wrong passwords yield
// the same error. When two-factor is on the result says so; the caller must
// complete RunVerifyTwoFactor before trusting the session for sensitive
// operations.
func RunLogin(ctx context.Context, accountID, password string, meta LoginMeta, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)

	if deps.LoadProfile == nil || deps.VerifyPassword == nil || deps.NewSessionID == nil ||
		deps.IssueBearer == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if accountID == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	}

	if err := deps.CheckLoginRate(ctx, accountID, meta.IPAddress); err != nil {
		return nil, deps.mapRateErr(ctx, accountID, err)
	}

	p, err := deps.LoadProfile(ctx, accountID)
	if err != nil {
		if !errors.Is(err, deps.Errors.AccountNotFound) {
			return nil, err
		}
		if deps.DecoyHash != "" {
			_, _ = deps.VerifyPassword(password, deps.DecoyHash)
		}
		return nil, deps.rejectLogin(ctx, accountID, meta.IPAddress)
	}

	ok, verr := deps.VerifyPassword(password, p.PasswordHash)
	if verr != nil || !ok {
		return nil, deps.rejectLogin(ctx, accountID, meta.IPAddress)
	}
	if err := deps.ResetLoginRate(ctx, accountID, meta.IPAddress); err != nil {
		deps.Warn(ctx, "login rate reset failed", "account_id", accountID, "error", err)
	}

	if deps.PasswordUpgradeOnLogin {
		deps.upgradeHash(ctx, accountID, password)
	}

	sessionID := deps.NewSessionID()
	token, expiresAt, err := deps.IssueBearer(accountID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	if err := deps.CreateSession(ctx, sessionID, accountID, token, meta); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, accountID, nil, func() map[string]string {
		return map[string]string{"session_id": sessionID}
	})

	return &LoginResult{
		AccountID:         accountID,
		SessionID:         sessionID,
		BearerToken:       token,
		ExpiresAt:         expiresAt,
		TwoFactorRequired: p.TwoFactorEnabled,
	}, nil
}

func (d *LoginDeps) rejectLogin(ctx context.Context, accountID, ip string) error {
	d.MetricInc(d.Metrics.LoginFailure)
	if err := d.IncrementLoginRate(ctx, accountID, ip); err != nil {
		return d.mapRateErr(ctx, accountID, err)
	}
	d.EmitAudit(ctx, d.Events.LoginFailure, false, accountID, d.Errors.InvalidCredentials, nil)
	return d.Errors.InvalidCredentials
}

func (d *LoginDeps) mapRateErr(ctx context.Context, accountID string, err error) error {
	if d.IsRateLimited(err) {
		d.MetricInc(d.Metrics.LoginRateLimited)
		d.EmitAudit(ctx, d.Events.LoginRateLimited, false, accountID, d.Errors.RateLimited, nil)
		return d.Errors.RateLimited
	}
	return fmt.Errorf("%w: %v", d.Errors.Unavailable, err)
}

// upgradeHash rehashes a verified password stored under weaker parameters.
// Failures are logged; the old hash keeps working.
func (d *LoginDeps) upgradeHash(ctx context.Context, accountID, password string) {
	if d.PasswordNeedsUpgrade == nil || d.HashPassword == nil || d.SaveProfile == nil {
		return
	}

	unlock := d.LockAccount(accountID)
	defer unlock()

	p, err := d.LoadProfile(ctx, accountID)
	if err != nil {
		d.Warn(ctx, "password upgrade skipped", "account_id", accountID, "error", err)
		return
	}
	needs, err := d.PasswordNeedsUpgrade(p.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := d.HashPassword(password)
	if err != nil {
		d.Warn(ctx, "password upgrade hash failed", "account_id", accountID, "error", err)
		return
	}
	next := p.Clone()
	next.PasswordHash = hash
	if _, err := d.SaveProfile(ctx, next); err != nil {
		d.Warn(ctx, "password upgrade save failed", "account_id", accountID, "error", err)
	}
}

func normalizeLoginDeps(deps *LoginDeps) {
	deps.ProfileAccess.normalize()
	if deps.CheckLoginRate == nil {
		deps.CheckLoginRate = func(context.Context, string, string) error { return nil }
	}
	if deps.IncrementLoginRate == nil {
		deps.IncrementLoginRate = func(context.Context, string, string) error { return nil }
	}
	if deps.ResetLoginRate == nil {
		deps.ResetLoginRate = func(context.Context, string, string) error { return nil }
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}

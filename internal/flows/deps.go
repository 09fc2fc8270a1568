package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goSecure/account"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	TwoFactor TwoFactorDeps
	Password  PasswordDeps
	Login     LoginDeps
}

// Limiter counts failed verifications per account. *limiters.FailureLimiter
// satisfies it.
type Limiter interface {
	Check(ctx context.Context, accountID string) error
	RecordFailure(ctx context.Context, accountID string) error
	Reset(ctx context.Context, accountID string) error
}

// ProfileAccess is the shared read-modify-write surface of every profile
// flow. LoadProfile and SaveProfile return host-level errors.
type ProfileAccess struct {
	Now         func() time.Time
	LockAccount func(accountID string) (unlock func())
	LoadProfile func(context.Context, string) (account.Profile, error)
	SaveProfile func(context.Context, account.Profile) (account.Profile, error)

	// Warn reports a best-effort step that failed without failing the flow.
	Warn func(ctx context.Context, msg string, args ...any)
}

func (a *ProfileAccess) ready() bool {
	return a.LoadProfile != nil && a.SaveProfile != nil
}

func (a *ProfileAccess) normalize() {
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.LockAccount == nil {
		a.LockAccount = func(string) func() { return func() {} }
	}
	if a.Warn == nil {
		a.Warn = func(context.Context, string, ...any) {}
	}
}

// AuditFunc emits one audit event. meta may be nil.
type AuditFunc func(ctx context.Context, event string, success bool, accountID string, err error, meta func() map[string]string)

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

// limiterGate runs the Check/RecordFailure/Reset protocol of one limiter and
// maps its errors to host errors.
type limiterGate struct {
	limiter       Limiter
	isRateLimited func(error) bool
	rateLimited   error
	unavailable   error
	onLimited     func()
	warn          func(ctx context.Context, msg string, args ...any)
}

func (g limiterGate) check(ctx context.Context, accountID string) error {
	if g.limiter == nil {
		return nil
	}
	return g.mapErr(g.limiter.Check(ctx, accountID))
}

// fail records a failure. It returns the rate-limit error when this failure
// exhausted the budget, nil otherwise.
func (g limiterGate) fail(ctx context.Context, accountID string) error {
	if g.limiter == nil {
		return nil
	}
	return g.mapErr(g.limiter.RecordFailure(ctx, accountID))
}

func (g limiterGate) reset(ctx context.Context, accountID string) {
	if g.limiter == nil {
		return
	}
	if err := g.limiter.Reset(ctx, accountID); err != nil && g.warn != nil {
		g.warn(ctx, "limiter reset failed", "account_id", accountID, "error", err)
	}
}

func (g limiterGate) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if g.isRateLimited != nil && g.isRateLimited(err) {
		if g.onLimited != nil {
			g.onLimited()
		}
		return g.rateLimited
	}
	return fmt.Errorf("%w: %v", g.unavailable, err)
}

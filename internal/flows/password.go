package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// PasswordChange is the input of RunChangePassword. KeepTokenHash names the
// caller's session when other sessions are revoked on change.
type PasswordChange struct {
	AccountID     string
	Current       string
	Next          string
	Confirm       string
	KeepTokenHash string
}

// PasswordChangeResult reports a committed rotation.
type PasswordChangeResult struct {
	ChangedAt       time.Time
	RevokedSessions int
}

// PasswordInfo is the credential-age view.
type PasswordInfo struct {
	LastChanged     time.Time
	DaysSinceChange int
}

// PasswordMetrics carries metric IDs needed by password flows.
type PasswordMetrics struct {
	Success        int
	InvalidCurrent int
	Rejected       int
	RateLimited    int
}

// PasswordEvents carries audit event names used by password flows.
type PasswordEvents struct {
	Changed      string
	ChangeFailed string
}

// PasswordErrors carries host-level sentinel errors used by password flows.
type PasswordErrors struct {
	EngineNotReady   error
	InvalidRequest   error
	FieldsRequired   error
	Mismatch         error
	TooShort         error
	TooLong          error
	Unchanged        error
	CurrentIncorrect error
	RateLimited      error
	Unavailable      error
}

// PasswordDeps captures password rotation dependencies.
type PasswordDeps struct {
	ProfileAccess

	MinLength           int
	MaxBytes            int
	RevokeOtherSessions bool

	VerifyPassword  func(candidate, encodedHash string) (bool, error)
	HashPassword    func(string) (string, error)
	RevokeAllExcept func(ctx context.Context, accountID, keepTokenHash string) (int, error)

	Limiter       Limiter
	IsRateLimited func(error) bool

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics PasswordMetrics
	Events  PasswordEvents
	Errors  PasswordErrors
}

// validatePasswordChange applies the input rules in their fixed order.
// Length is counted in characters.
func validatePasswordChange(req PasswordChange, deps *PasswordDeps) error {
	switch {
	case req.Current == "" || req.Next == "" || req.Confirm == "":
		return deps.Errors.FieldsRequired
	case req.Next != req.Confirm:
		return deps.Errors.Mismatch
	case utf8.RuneCountInString(req.Next) < deps.MinLength:
		return deps.Errors.TooShort
	case deps.MaxBytes > 0 && len(req.Next) > deps.MaxBytes:
		return deps.Errors.TooLong
	case req.Next == req.Current:
		return deps.Errors.Unchanged
	}
	return nil
}

// RunChangePassword rotates the account credential after verifying the
// current one. Input rules are checked before the profile is read, so a
// malformed request never consumes a limiter attempt.
func RunChangePassword(ctx context.Context, req PasswordChange, deps PasswordDeps) (*PasswordChangeResult, error) {
	normalizePasswordDeps(&deps)

	if !deps.ready() || deps.VerifyPassword == nil || deps.HashPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if req.AccountID == "" {
		return nil, deps.Errors.InvalidRequest
	}
	if err := validatePasswordChange(req, &deps); err != nil {
		deps.MetricInc(deps.Metrics.Rejected)
		deps.EmitAudit(ctx, deps.Events.ChangeFailed, false, req.AccountID, err, nil)
		return nil, err
	}

	unlock := deps.LockAccount(req.AccountID)
	defer unlock()

	p, err := deps.LoadProfile(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	gate := limiterGate{
		limiter:       deps.Limiter,
		isRateLimited: deps.IsRateLimited,
		rateLimited:   deps.Errors.RateLimited,
		unavailable:   deps.Errors.Unavailable,
		onLimited:     func() { deps.MetricInc(deps.Metrics.RateLimited) },
		warn:          deps.Warn,
	}
	if err := gate.check(ctx, req.AccountID); err != nil {
		deps.EmitAudit(ctx, deps.Events.ChangeFailed, false, req.AccountID, err, nil)
		return nil, err
	}

	ok, verr := deps.VerifyPassword(req.Current, p.PasswordHash)
	if verr != nil || !ok {
		deps.MetricInc(deps.Metrics.InvalidCurrent)
		if limErr := gate.fail(ctx, req.AccountID); limErr != nil {
			deps.EmitAudit(ctx, deps.Events.ChangeFailed, false, req.AccountID, limErr, nil)
			return nil, limErr
		}
		deps.EmitAudit(ctx, deps.Events.ChangeFailed, false, req.AccountID, deps.Errors.CurrentIncorrect, nil)
		return nil, deps.Errors.CurrentIncorrect
	}

	hash, err := deps.HashPassword(req.Next)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}

	now := deps.Now().UTC()
	next := p.Clone()
	next.PasswordHash = hash
	next.PasswordChangedAt = now
	if _, err := deps.SaveProfile(ctx, next); err != nil {
		return nil, err
	}
	gate.reset(ctx, req.AccountID)

	out := &PasswordChangeResult{ChangedAt: now}
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Changed, true, req.AccountID, nil, nil)

	if deps.RevokeOtherSessions && deps.RevokeAllExcept != nil {
		n, err := deps.RevokeAllExcept(ctx, req.AccountID, req.KeepTokenHash)
		if err != nil {
			return out, errors.Join(deps.Errors.Unavailable, err)
		}
		out.RevokedSessions = n
	}
	return out, nil
}

// RunPasswordInfo reports when the password last changed and the whole days
// elapsed since. A profile that never recorded a change reports zero days.
func RunPasswordInfo(ctx context.Context, accountID string, deps PasswordDeps) (*PasswordInfo, error) {
	normalizePasswordDeps(&deps)

	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return nil, deps.Errors.InvalidRequest
	}

	p, err := deps.LoadProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	out := &PasswordInfo{LastChanged: p.PasswordChangedAt}
	if !p.PasswordChangedAt.IsZero() {
		if elapsed := deps.Now().Sub(p.PasswordChangedAt); elapsed > 0 {
			out.DaysSinceChange = int(elapsed / (24 * time.Hour))
		}
	}
	return out, nil
}

func normalizePasswordDeps(deps *PasswordDeps) {
	deps.ProfileAccess.normalize()
	if deps.MinLength <= 0 {
		deps.MinLength = 6
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

package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goSecure/account"
)

// TwoFactorSetup is returned once by setup. BackupCodes are plaintext and
// are never retrievable again.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	QRCode          string
	BackupCodes     []string
}

// TwoFactorStatus is the read-only view of an account's second factor.
type TwoFactorStatus struct {
	Enabled          bool
	Staged           bool
	EnabledAt        *time.Time
	BackupCodesCount int
}

// TwoFactorMetrics carries metric IDs needed by two-factor flows.
type TwoFactorMetrics struct {
	Setup             int
	Enabled           int
	Disabled          int
	VerifySuccess     int
	VerifyFailure     int
	BackupUsed        int
	BackupFailed      int
	BackupRegenerated int
	RateLimited       int
}

// TwoFactorEvents carries audit event names used by two-factor flows.
type TwoFactorEvents struct {
	SetupRequested     string
	Enabled            string
	EnableFailed       string
	Disabled           string
	DisableFailed      string
	VerifySuccess      string
	VerifyFailure      string
	BackupCodeUsed     string
	BackupCodeFailed   string
	BackupRegenerated  string
	RegenerateRejected string
}

// TwoFactorErrors carries host-level sentinel errors used by two-factor flows.
type TwoFactorErrors struct {
	EngineNotReady     error
	InvalidRequest     error
	AlreadyEnabled     error
	NotStaged          error
	NotEnabled         error
	InvalidTokenFormat error
	InvalidCode        error
	PasswordIncorrect  error
	RateLimited        error
	Unavailable        error
}

// TwoFactorDeps captures two-factor dependencies.
type TwoFactorDeps struct {
	ProfileAccess

	NewSecret         func() (string, error)
	ProvisionURI      func(label, secret string) string
	RenderQR          func(uri string) (string, error)
	IssueBackupCodes  func() (codes []string, hashes []string, err error)
	ConsumeBackupCode func(candidate string, hashes []string) (bool, []string)
	VerifyOTP         func(code, secret string) (bool, error)
	ValidCodeFormat   func(code string) bool
	VerifyPassword    func(candidate, encodedHash string) (bool, error)

	OTPLimiter      Limiter
	BackupLimiter   Limiter
	PasswordLimiter Limiter
	IsRateLimited   func(error) bool

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics TwoFactorMetrics
	Events  TwoFactorEvents
	Errors  TwoFactorErrors
}

func (d *TwoFactorDeps) gate(l Limiter) limiterGate {
	return limiterGate{
		limiter:       l,
		isRateLimited: d.IsRateLimited,
		rateLimited:   d.Errors.RateLimited,
		unavailable:   d.Errors.Unavailable,
		onLimited:     func() { d.MetricInc(d.Metrics.RateLimited) },
		warn:          d.Warn,
	}
}

// RunTwoFactorStatus reports whether two-factor is on, when it was enabled
// and how many backup codes remain.
func RunTwoFactorStatus(ctx context.Context, accountID string, deps TwoFactorDeps) (*TwoFactorStatus, error) {
	normalizeTwoFactorDeps(&deps)

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

	out := &TwoFactorStatus{
		Enabled: p.TwoFactorEnabled,
		Staged:  p.Staged(),
	}
	if p.TwoFactorEnabled {
		out.EnabledAt = p.Clone().TwoFactorEnabledAt
		out.BackupCodesCount = len(p.TwoFactorBackupCodes)
	}
	return out, nil
}

// RunSetupTwoFactor stages a fresh secret and a fresh backup-code batch.
// Running it again while staged replaces both.
func RunSetupTwoFactor(ctx context.Context, accountID string, deps TwoFactorDeps) (*TwoFactorSetup, error) {
	normalizeTwoFactorDeps(&deps)

	if !deps.ready() || deps.NewSecret == nil || deps.ProvisionURI == nil || deps.IssueBackupCodes == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return nil, deps.Errors.InvalidRequest
	}

	unlock := deps.LockAccount(accountID)
	defer unlock()

	p, err := deps.LoadProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if p.TwoFactorEnabled {
		return nil, deps.Errors.AlreadyEnabled
	}

	secret, err := deps.NewSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	uri := deps.ProvisionURI(p.Label(), secret)

	qr := ""
	if deps.RenderQR != nil {
		qr, err = deps.RenderQR(uri)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
		}
	}

	codes, hashes, err := deps.IssueBackupCodes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}

	next := p.Clone()
	next.TwoFactorSecret = secret
	next.TwoFactorEnabled = false
	next.TwoFactorEnabledAt = nil
	next.TwoFactorBackupCodes = hashes
	if _, err := deps.SaveProfile(ctx, next); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Setup)
	deps.EmitAudit(ctx, deps.Events.SetupRequested, true, accountID, nil, nil)

	return &TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCode:          qr,
		BackupCodes:     codes,
	}, nil
}

// RunEnableTwoFactor confirms a staged secret with a code from the
// authenticator and returns the enable time.
func RunEnableTwoFactor(ctx context.Context, accountID, code string, deps TwoFactorDeps) (time.Time, error) {
	normalizeTwoFactorDeps(&deps)

	if !deps.ready() || deps.VerifyOTP == nil {
		return time.Time{}, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return time.Time{}, deps.Errors.InvalidRequest
	}
	if !deps.ValidCodeFormat(code) {
		return time.Time{}, deps.Errors.InvalidTokenFormat
	}

	unlock := deps.LockAccount(accountID)
	defer unlock()

	p, err := deps.LoadProfile(ctx, accountID)
	if err != nil {
		return time.Time{}, err
	}
	// An enabled profile has no staged setup left to confirm.
	if p.TwoFactorEnabled {
		deps.EmitAudit(ctx, deps.Events.EnableFailed, false, accountID, deps.Errors.NotStaged, nil)
		return time.Time{}, deps.Errors.NotStaged
	}
	if p.TwoFactorSecret == "" {
		deps.EmitAudit(ctx, deps.Events.EnableFailed, false, accountID, deps.Errors.NotStaged, nil)
		return time.Time{}, deps.Errors.NotStaged
	}

	otpGate := deps.gate(deps.OTPLimiter)
	if err := otpGate.check(ctx, accountID); err != nil {
		deps.EmitAudit(ctx, deps.Events.EnableFailed, false, accountID, err, nil)
		return time.Time{}, err
	}

	ok, err := deps.VerifyOTP(code, p.TwoFactorSecret)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.VerifyFailure)
		if limErr := otpGate.fail(ctx, accountID); limErr != nil {
			deps.EmitAudit(ctx, deps.Events.EnableFailed, false, accountID, limErr, nil)
			return time.Time{}, limErr
		}
		deps.EmitAudit(ctx, deps.Events.EnableFailed, false, accountID, deps.Errors.InvalidCode, nil)
		return time.Time{}, deps.Errors.InvalidCode
	}

	now := deps.Now().UTC()
	next := p.Clone()
	next.TwoFactorEnabled = true
	next.TwoFactorEnabledAt = &now
	if _, err := deps.SaveProfile(ctx, next); err != nil {
		return time.Time{}, err
	}
	otpGate.reset(ctx, accountID)

	deps.MetricInc(deps.Metrics.Enabled)
	deps.EmitAudit(ctx, deps.Events.Enabled, true, accountID, nil, nil)
	return now, nil
}

// RunDisableTwoFactor turns two-factor off after password re-entry. When
// code is non-empty it must be a valid OTP; backup codes are not accepted
// on this path. Secret, backup codes, enabled flag and enable time are
// cleared in one save.
func RunDisableTwoFactor(ctx context.Context, accountID, password, code string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)

	if !deps.ready() || deps.VerifyPassword == nil || deps.VerifyOTP == nil {
		return deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return deps.Errors.InvalidRequest
	}

	unlock := deps.LockAccount(accountID)
	defer unlock()

	p, err := deps.LoadProfile(ctx, accountID)
	if err != nil {
		return err
	}
	if err := deps.reauthenticate(ctx, p, password); err != nil {
		deps.EmitAudit(ctx, deps.Events.DisableFailed, false, accountID, err, nil)
		return err
	}
	if !p.TwoFactorEnabled {
		return deps.Errors.NotEnabled
	}

	otpGate := deps.gate(deps.OTPLimiter)
	if code != "" {
		if err := otpGate.check(ctx, accountID); err != nil {
			deps.EmitAudit(ctx, deps.Events.DisableFailed, false, accountID, err, nil)
			return err
		}
		ok, err := deps.VerifyOTP(code, p.TwoFactorSecret)
		if err != nil {
			return fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
		}
		if !ok {
			deps.MetricInc(deps.Metrics.VerifyFailure)
			if limErr := otpGate.fail(ctx, accountID); limErr != nil {
				deps.EmitAudit(ctx, deps.Events.DisableFailed, false, accountID, limErr, nil)
				return limErr
			}
			deps.EmitAudit(ctx, deps.Events.DisableFailed, false, accountID, deps.Errors.InvalidCode, nil)
			return deps.Errors.InvalidCode
		}
	}

	next := p.Clone()
	next.ClearTwoFactor()
	if _, err := deps.SaveProfile(ctx, next); err != nil {
		return err
	}
	otpGate.reset(ctx, accountID)
	deps.gate(deps.BackupLimiter).reset(ctx, accountID)

	deps.MetricInc(deps.Metrics.Disabled)
	deps.EmitAudit(ctx, deps.Events.Disabled, true, accountID, nil, nil)
	return nil
}

// RunVerifyTwoFactor checks a login-time second factor. A wrong code is a
// normal (false, nil) outcome that still counts against the limiter; once
// the budget is spent the flow returns the rate-limit error instead. A
// matched backup code is removed from the profile before success returns.
func RunVerifyTwoFactor(ctx context.Context, accountID, code string, useBackupCode bool, deps TwoFactorDeps) (bool, error) {
	normalizeTwoFactorDeps(&deps)

	if !deps.ready() || deps.VerifyOTP == nil || deps.ConsumeBackupCode == nil {
		return false, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return false, deps.Errors.InvalidRequest
	}

	unlock := deps.LockAccount(accountID)
	defer unlock()

	p, err := deps.LoadProfile(ctx, accountID)
	if err != nil {
		return false, err
	}
	if !p.TwoFactorEnabled {
		return false, deps.Errors.NotEnabled
	}

	if useBackupCode {
		return deps.verifyBackupCode(ctx, p, code)
	}

	otpGate := deps.gate(deps.OTPLimiter)
	if err := otpGate.check(ctx, accountID); err != nil {
		deps.EmitAudit(ctx, deps.Events.VerifyFailure, false, accountID, err, nil)
		return false, err
	}

	ok, err := deps.VerifyOTP(code, p.TwoFactorSecret)
	if err != nil {
		return false, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.VerifyFailure)
		if limErr := otpGate.fail(ctx, accountID); limErr != nil {
			deps.EmitAudit(ctx, deps.Events.VerifyFailure, false, accountID, limErr, nil)
			return false, limErr
		}
		deps.EmitAudit(ctx, deps.Events.VerifyFailure, false, accountID, deps.Errors.InvalidCode, nil)
		return false, nil
	}

	otpGate.reset(ctx, accountID)
	deps.MetricInc(deps.Metrics.VerifySuccess)
	deps.EmitAudit(ctx, deps.Events.VerifySuccess, true, accountID, nil, func() map[string]string {
		return map[string]string{"method": "totp"}
	})
	return true, nil
}

func (d *TwoFactorDeps) verifyBackupCode(ctx context.Context, p account.Profile, code string) (bool, error) {
	backupGate := d.gate(d.BackupLimiter)
	if err := backupGate.check(ctx, p.AccountID); err != nil {
		d.EmitAudit(ctx, d.Events.BackupCodeFailed, false, p.AccountID, err, nil)
		return false, err
	}

	ok, remaining := d.ConsumeBackupCode(code, p.TwoFactorBackupCodes)
	if !ok {
		d.MetricInc(d.Metrics.BackupFailed)
		if limErr := backupGate.fail(ctx, p.AccountID); limErr != nil {
			d.EmitAudit(ctx, d.Events.BackupCodeFailed, false, p.AccountID, limErr, nil)
			return false, limErr
		}
		d.EmitAudit(ctx, d.Events.BackupCodeFailed, false, p.AccountID, d.Errors.InvalidCode, nil)
		return false, nil
	}

	next := p.Clone()
	next.TwoFactorBackupCodes = remaining
	if _, err := d.SaveProfile(ctx, next); err != nil {
		return false, err
	}
	backupGate.reset(ctx, p.AccountID)

	d.MetricInc(d.Metrics.BackupUsed)
	d.MetricInc(d.Metrics.VerifySuccess)
	d.EmitAudit(ctx, d.Events.BackupCodeUsed, true, p.AccountID, nil, func() map[string]string {
		return map[string]string{"remaining": fmt.Sprintf("%d", len(remaining))}
	})
	return true, nil
}

// RunRegenerateBackupCodes replaces the backup-code set after password
// re-entry. Every previously issued code stops working.
func RunRegenerateBackupCodes(ctx context.Context, accountID, password string, deps TwoFactorDeps) ([]string, error) {
	normalizeTwoFactorDeps(&deps)

	if !deps.ready() || deps.VerifyPassword == nil || deps.IssueBackupCodes == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return nil, deps.Errors.InvalidRequest
	}

	unlock := deps.LockAccount(accountID)
	defer unlock()

	p, err := deps.LoadProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := deps.reauthenticate(ctx, p, password); err != nil {
		deps.EmitAudit(ctx, deps.Events.RegenerateRejected, false, accountID, err, nil)
		return nil, err
	}
	if !p.TwoFactorEnabled {
		return nil, deps.Errors.NotEnabled
	}

	codes, hashes, err := deps.IssueBackupCodes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}

	next := p.Clone()
	next.TwoFactorBackupCodes = hashes
	if _, err := deps.SaveProfile(ctx, next); err != nil {
		return nil, err
	}
	deps.gate(deps.BackupLimiter).reset(ctx, accountID)

	deps.MetricInc(deps.Metrics.BackupRegenerated)
	deps.EmitAudit(ctx, deps.Events.BackupRegenerated, true, accountID, nil, nil)
	return codes, nil
}

// reauthenticate verifies a freshly supplied password under the password
// limiter.
func (d *TwoFactorDeps) reauthenticate(ctx context.Context, p account.Profile, password string) error {
	pwdGate := d.gate(d.PasswordLimiter)
	if err := pwdGate.check(ctx, p.AccountID); err != nil {
		return err
	}

	ok := false
	if password != "" && p.PasswordHash != "" {
		var err error
		ok, err = d.VerifyPassword(password, p.PasswordHash)
		if err != nil {
			ok = false
		}
	}
	if !ok {
		if limErr := pwdGate.fail(ctx, p.AccountID); limErr != nil {
			return limErr
		}
		return d.Errors.PasswordIncorrect
	}

	pwdGate.reset(ctx, p.AccountID)
	return nil
}

func normalizeTwoFactorDeps(deps *TwoFactorDeps) {
	deps.ProfileAccess.normalize()
	if deps.ValidCodeFormat == nil {
		deps.ValidCodeFormat = func(string) bool { return true }
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

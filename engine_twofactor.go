package goSecure

import (
	"context"
	"time"

	"github.com/MrEthical07/goSecure/internal/flows"
)

// TwoFactorStatus reports whether two-factor is enabled for the account,
// when it was enabled and how many unused backup codes remain.
func (e *Engine) TwoFactorStatus(ctx context.Context, accountID string) (*TwoFactorStatus, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	st, err := flows.RunTwoFactorStatus(ctx, accountID, e.flows.TwoFactor)
	if err != nil {
		return nil, err
	}
	return &TwoFactorStatus{
		Enabled:          st.Enabled,
		Staged:           st.Staged,
		EnabledAt:        st.EnabledAt,
		BackupCodesCount: st.BackupCodesCount,
	}, nil
}

// SetupTwoFactor stages a new secret and a fresh batch of backup codes.
// Two-factor stays disabled until [Engine.EnableTwoFactor] confirms a code.
//
// SetupTwoFactor returns ErrTwoFactorAlreadyEnabled when two-factor is on.
// Calling it again while staged replaces the staged secret and codes.
func (e *Engine) SetupTwoFactor(ctx context.Context, accountID string) (*TwoFactorSetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	setup, err := flows.RunSetupTwoFactor(ctx, accountID, e.flows.TwoFactor)
	if err != nil {
		return nil, err
	}
	return &TwoFactorSetup{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
		QRCode:          setup.QRCode,
		BackupCodes:     setup.BackupCodes,
	}, nil
}

// EnableTwoFactor turns two-factor on after the code verifies against the
// staged secret, and returns the time it was enabled.
//
// EnableTwoFactor returns ErrInvalidTokenFormat for anything but 6 digits,
// ErrTwoFactorNotStaged without a staged secret or when already on, and
// ErrInvalidCode when the code does not verify.
func (e *Engine) EnableTwoFactor(ctx context.Context, accountID, code string) (time.Time, error) {
	if e == nil {
		return time.Time{}, ErrEngineNotReady
	}
	return flows.RunEnableTwoFactor(ctx, accountID, code, e.flows.TwoFactor)
}

// DisableTwoFactor clears the secret, backup codes and enabled state in one
// write after the password verifies. A non-empty code must also verify as a
// current OTP; backup codes are not accepted here.
func (e *Engine) DisableTwoFactor(ctx context.Context, accountID, password, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunDisableTwoFactor(ctx, accountID, password, code, e.flows.TwoFactor)
}

// VerifyTwoFactor checks a login-time second factor.
//
// A wrong code returns (false, nil) and counts against the failure limiter;
// once the limit is reached ErrRateLimited is returned instead. With
// useBackupCode the code is checked against the stored backup codes and, on
// a match, consumed.
func (e *Engine) VerifyTwoFactor(ctx context.Context, accountID, code string, useBackupCode bool) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	return flows.RunVerifyTwoFactor(ctx, accountID, code, useBackupCode, e.flows.TwoFactor)
}

// RegenerateBackupCodes replaces every backup code after the password
// verifies and returns the new plaintext batch.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, password string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return flows.RunRegenerateBackupCodes(ctx, accountID, password, e.flows.TwoFactor)
}

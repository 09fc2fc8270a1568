package goSecure

import (
	"context"

	"github.com/MrEthical07/goSecure/internal/flows"
	"github.com/MrEthical07/goSecure/session"
)

// ChangePassword rotates the account password.
//
// Checks run in order: all fields present, new equals confirmation, new is
// at least Config.Password.MinLength characters, new fits the hasher, new
// differs from current, current verifies. Existing sessions stay valid
// unless Config.Password.RevokeOtherSessionsOnChange is set, in which case
// every session but the one named by req.BearerToken is revoked.
//
// When the rotation committed but revocation failed, the result is
// returned together with an ErrUnavailable error.
func (e *Engine) ChangePassword(ctx context.Context, req ChangePasswordRequest) (*ChangePasswordResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	in := flows.PasswordChange{
		AccountID: req.AccountID,
		Current:   req.Current,
		Next:      req.Next,
		Confirm:   req.Confirm,
	}
	if req.BearerToken != "" {
		in.KeepTokenHash = session.HashToken(req.BearerToken)
	}

	res, err := flows.RunChangePassword(ctx, in, e.flows.Password)
	if res == nil {
		return nil, err
	}
	if res.RevokedSessions > 0 {
		e.metricInc(MetricSessionRevokedBulk)
		e.emitAudit(ctx, auditEventSessionsRevokedOthers, true, req.AccountID, "", nil, nil)
	}
	return &ChangePasswordResult{
		ChangedAt:       res.ChangedAt,
		RevokedSessions: res.RevokedSessions,
	}, err
}

// PasswordInfo reports when the password last changed and how many whole
// days have passed since.
func (e *Engine) PasswordInfo(ctx context.Context, accountID string) (*PasswordInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	info, err := flows.RunPasswordInfo(ctx, accountID, e.flows.Password)
	if err != nil {
		return nil, err
	}
	return &PasswordInfo{
		LastChanged:     info.LastChanged,
		DaysSinceChange: info.DaysSinceChange,
	}, nil
}

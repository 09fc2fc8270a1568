package goSecure

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/goSecure/session"
)

// ListSessions returns the account's live sessions, most recently active
// first. The entry whose bearer is callerToken has IsCurrent set.
// ListSessions returns ErrMissingToken when callerToken is empty.
func (e *Engine) ListSessions(ctx context.Context, accountID, callerToken string) ([]SessionSummary, error) {
	if e == nil || e.registry == nil {
		return nil, ErrEngineNotReady
	}
	if accountID == "" {
		return nil, ErrInvalidRequest
	}
	if callerToken == "" {
		return nil, ErrMissingToken
	}

	out, err := e.registry.List(ctx, accountID, callerToken)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return out, nil
}

// RevokeSession deactivates one session of the account.
//
// RevokeSession returns ErrSessionNotFound for unknown ids, sessions of
// other accounts, and sessions already revoked or expired, so a second
// revoke of the same id fails.
func (e *Engine) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	if e == nil || e.registry == nil {
		return ErrEngineNotReady
	}
	if accountID == "" || sessionID == "" {
		return ErrSessionNotFound
	}

	if err := e.registry.Revoke(ctx, accountID, sessionID); err != nil {
		return mapSessionErr(err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, accountID, sessionID, nil, nil)
	return nil
}

// RevokeAllOtherSessions deactivates every live session of the account
// except the one identified by currentToken and returns how many were
// revoked. An empty currentToken fails with ErrMissingToken and revokes
// nothing.
func (e *Engine) RevokeAllOtherSessions(ctx context.Context, accountID, currentToken string) (int, error) {
	if e == nil || e.registry == nil {
		return 0, ErrEngineNotReady
	}
	if accountID == "" {
		return 0, ErrInvalidRequest
	}
	if currentToken == "" {
		return 0, ErrMissingToken
	}

	n, err := e.registry.RevokeAllExcept(ctx, accountID, session.HashToken(currentToken))
	if err != nil {
		return 0, mapSessionErr(err)
	}

	e.metricInc(MetricSessionRevokedBulk)
	e.emitAudit(ctx, auditEventSessionsRevokedOthers, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return n, nil
}

// TouchSession records activity on the caller's session and returns the
// new last-active time.
func (e *Engine) TouchSession(ctx context.Context, accountID, token string) (time.Time, error) {
	if e == nil || e.registry == nil {
		return time.Time{}, ErrEngineNotReady
	}
	if token == "" {
		return time.Time{}, ErrMissingToken
	}
	if accountID == "" {
		return time.Time{}, ErrSessionNotFound
	}

	at, err := e.registry.Touch(ctx, accountID, session.HashToken(token))
	if err != nil {
		return time.Time{}, mapSessionErr(err)
	}
	e.metricInc(MetricSessionTouched)
	return at, nil
}

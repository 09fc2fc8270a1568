package goSecure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSecure/internal/flows"
	"github.com/MrEthical07/goSecure/session"
)

// Login verifies the password and opens a session. The client IP, user
// agent and location are read from ctx (see [WithClientIP],
// [WithUserAgent], [WithLocation]) and recorded on the session.
//
// The new session becomes the account's only current session. Unknown
// accounts and wrong passwords both return ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, accountID, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	meta := flows.LoginMeta{
		UserAgent: userAgentFromContext(ctx),
		IPAddress: clientIPFromContext(ctx),
		Location:  locationFromContext(ctx),
	}
	res, err := flows.RunLogin(ctx, accountID, password, meta, e.flows.Login)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccountID:         res.AccountID,
		SessionID:         res.SessionID,
		BearerToken:       res.BearerToken,
		ExpiresAt:         res.ExpiresAt,
		TwoFactorRequired: res.TwoFactorRequired,
	}, nil
}

// Authenticate resolves a bearer token to its live session. A token with a
// valid signature is still rejected once its session is revoked or
// expired.
func (e *Engine) Authenticate(ctx context.Context, bearer string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil || e.registry == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}

	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, ErrMissingToken
	}

	claims, err := e.jwtManager.Parse(bearer)
	if err != nil {
		return nil, ErrUnauthorized
	}

	tokenHash := session.HashToken(bearer)
	rec, err := e.registry.Lookup(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if rec.AccountID != claims.AccountID || rec.ID != claims.SessionID {
		return nil, ErrUnauthorized
	}

	return &AuthResult{
		AccountID: rec.AccountID,
		SessionID: rec.ID,
		TokenHash: tokenHash,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

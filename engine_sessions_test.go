package goSecure

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestListSessionsMarksCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")

	desktop := env.login(t, "acc-1", desktopUA)
	env.clock.Advance(time.Minute)
	phone := env.login(t, "acc-1", iphoneUA)

	list, err := env.engine.ListSessions(context.Background(), "acc-1", desktop.BearerToken)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != phone.SessionID || list[1].ID != desktop.SessionID {
		t.Fatalf("expected most recent first, got %s then %s", list[0].ID, list[1].ID)
	}
	if list[0].IsCurrent || !list[1].IsCurrent {
		t.Fatalf("expected desktop caller flagged, got %+v", list)
	}
	if list[0].DeviceType != "mobile" || list[1].DeviceName != "Chrome on Windows" {
		t.Fatalf("unexpected classification %+v", list)
	}
	if list[1].IPAddress != "203.0.113.7" {
		t.Fatalf("expected client ip recorded, got %q", list[1].IPAddress)
	}
}

func TestRevokeSessionRules(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")
	env.seed(t, "acc-2")
	ctx := context.Background()

	mine := env.login(t, "acc-1", desktopUA)
	theirs := env.login(t, "acc-2", desktopUA)

	if err := env.engine.RevokeSession(ctx, "acc-1", theirs.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected foreign session to be not found, got %v", err)
	}
	if err := env.engine.RevokeSession(ctx, "acc-1", "no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected unknown session to be not found, got %v", err)
	}

	if err := env.engine.RevokeSession(ctx, "acc-1", mine.SessionID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	err := env.engine.RevokeSession(ctx, "acc-1", mine.SessionID)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected second revoke to fail, got %v", err)
	}
	mustKind(t, err, KindNotFound)

	if _, err := env.engine.Authenticate(ctx, mine.BearerToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected revoked bearer to be rejected, got %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, theirs.BearerToken); err != nil {
		t.Fatalf("other account must be unaffected, got %v", err)
	}
}

func TestRevokeAllOtherSessionsSparesCaller(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Metrics.Enabled = true })
	env.seed(t, "acc-1")
	ctx := context.Background()

	first := env.login(t, "acc-1", desktopUA)
	second := env.login(t, "acc-1", iphoneUA)
	caller := env.login(t, "acc-1", desktopUA)

	n, err := env.engine.RevokeAllOtherSessions(ctx, "acc-1", caller.BearerToken)
	if err != nil {
		t.Fatalf("revoke others: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}

	list, _ := env.engine.ListSessions(ctx, "acc-1", caller.BearerToken)
	if len(list) != 1 || list[0].ID != caller.SessionID || !list[0].IsCurrent {
		t.Fatalf("expected only caller left, got %+v", list)
	}
	for _, gone := range []*LoginResult{first, second} {
		if _, err := env.engine.Authenticate(ctx, gone.BearerToken); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected revoked bearer rejected, got %v", err)
		}
	}

	if n, _ := env.engine.RevokeAllOtherSessions(ctx, "acc-1", caller.BearerToken); n != 0 {
		t.Fatalf("expected nothing left to revoke, got %d", n)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSessionRevokedBulk]; got != 2 {
		t.Fatalf("expected 2 bulk revocations counted, got %d", got)
	}
}

func TestTouchSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")
	ctx := context.Background()

	res := env.login(t, "acc-1", desktopUA)
	env.clock.Advance(90 * time.Second)

	at, err := env.engine.TouchSession(ctx, "acc-1", res.BearerToken)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !at.Equal(env.clock.Now()) {
		t.Fatalf("expected last active %v, got %v", env.clock.Now(), at)
	}

	list, _ := env.engine.ListSessions(ctx, "acc-1", res.BearerToken)
	if !list[0].LastActive.Equal(at) {
		t.Fatalf("expected listed last active %v, got %v", at, list[0].LastActive)
	}

	if _, err := env.engine.TouchSession(ctx, "acc-2", res.BearerToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected foreign touch to fail, got %v", err)
	}
	if _, err := env.engine.TouchSession(ctx, "acc-1", "garbage"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected unknown token to fail, got %v", err)
	}
	_, err = env.engine.TouchSession(ctx, "acc-1", "")
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	mustKind(t, err, KindUnauthorized)
}

func TestSessionOperationsRequireCallerToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")
	ctx := context.Background()

	a := env.login(t, "acc-1", desktopUA)
	b := env.login(t, "acc-1", iphoneUA)

	n, err := env.engine.RevokeAllOtherSessions(ctx, "acc-1", "")
	if !errors.Is(err, ErrMissingToken) || n != 0 {
		t.Fatalf("expected (0, ErrMissingToken), got (%d, %v)", n, err)
	}
	mustKind(t, err, KindUnauthorized)

	if _, err := env.engine.ListSessions(ctx, "acc-1", ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken from list, got %v", err)
	}

	for _, res := range []*LoginResult{a, b} {
		if _, err := env.engine.Authenticate(ctx, res.BearerToken); err != nil {
			t.Fatalf("expected session %s untouched, got %v", res.SessionID, err)
		}
	}
}

func TestExpiredSessionsDisappear(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Session.TTL = time.Hour })
	env.seed(t, "acc-1")
	ctx := context.Background()

	res := env.login(t, "acc-1", desktopUA)
	env.clock.Advance(time.Hour)

	list, err := env.engine.ListSessions(ctx, "acc-1", res.BearerToken)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected expired session hidden, got %d", len(list))
	}
	if err := env.engine.RevokeSession(ctx, "acc-1", res.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to behave as revoked, got %v", err)
	}
	if _, err := env.engine.TouchSession(ctx, "acc-1", res.BearerToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired touch to fail, got %v", err)
	}
}

func TestSessionReaperUsesEngineConfig(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Session.TTL = time.Hour
		c.Session.Retention = 24 * time.Hour
	})
	env.seed(t, "acc-1")
	env.login(t, "acc-1", desktopUA)

	reaper := env.engine.NewSessionReaper()
	env.clock.Advance(2 * time.Hour)
	if n, err := reaper.RunOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected nothing purged inside retention, got (%d, %v)", n, err)
	}

	env.clock.Advance(24 * time.Hour)
	if n, err := reaper.RunOnce(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected one record purged, got (%d, %v)", n, err)
	}
}

func TestSessionStoreDownIsUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")
	res := env.login(t, "acc-1", desktopUA)
	env.mr.Close()

	_, err := env.engine.ListSessions(context.Background(), "acc-1", res.BearerToken)
	mustKind(t, err, KindUnavailable)

	_, err = env.engine.Authenticate(context.Background(), res.BearerToken)
	mustKind(t, err, KindUnavailable)
}

package goSecure

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSecurityInvariantTwoDeviceScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")
	ctx := context.Background()

	a := env.login(t, "acc-1", desktopUA)
	b := env.login(t, "acc-1", iphoneUA)

	list, err := env.engine.ListSessions(ctx, "acc-1", b.BearerToken)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	flags := map[string]bool{}
	for _, s := range list {
		flags[s.ID] = s.IsCurrent
	}
	if len(flags) != 2 || flags[a.SessionID] || !flags[b.SessionID] {
		t.Fatalf("expected A not current and B current, got %v", flags)
	}

	recA, err := env.engine.sessionStore.Get(ctx, a.SessionID)
	if err != nil {
		t.Fatalf("get A: %v", err)
	}
	if recA.IsCurrent {
		t.Fatal("expected A to be demoted when B logged in")
	}

	n, err := env.engine.RevokeAllOtherSessions(ctx, "acc-1", b.BearerToken)
	if err != nil || n != 1 {
		t.Fatalf("expected one revoked, got (%d, %v)", n, err)
	}
	if _, err := env.engine.Authenticate(ctx, a.BearerToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected A revoked, got %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, b.BearerToken); err != nil {
		t.Fatalf("expected B active, got %v", err)
	}
}

func TestSecurityInvariantConcurrentLoginsLeaveOneCurrent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")

	const logins = 16
	var wg sync.WaitGroup
	errs := make(chan error, logins)
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.Login(context.Background(), "acc-1", testPassword); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("login: %v", err)
	}

	records, err := env.engine.sessionStore.ListByAccount(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != logins {
		t.Fatalf("expected %d records, got %d", logins, len(records))
	}
	current := 0
	for _, r := range records {
		if r.IsCurrent {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("expected exactly one current session, got %d", current)
	}
}

func TestSecurityInvariantBackupCodeSingleUseUnderConcurrency(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")
	_, codes := env.enroll(t, "acc-1")

	const racers = 8
	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := env.engine.VerifyTwoFactor(context.Background(), "acc-1", codes[3], true)
			if err == nil && ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Fatalf("expected exactly one acceptance, got %d", accepted.Load())
	}
	if got := len(env.store.get(t, "acc-1").TwoFactorBackupCodes); got != len(codes)-1 {
		t.Fatalf("expected %d codes left, got %d", len(codes)-1, got)
	}
}

func TestSecurityInvariantConcurrentWriterLosesCleanly(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Metrics.Enabled = true })
	env.seed(t, "acc-1")
	before := env.store.get(t, "acc-1")

	// another process writes between our read and our save
	env.store.beforeSave = env.store.bumpVersion

	_, err := env.engine.SetupTwoFactor(context.Background(), "acc-1")
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
	mustKind(t, err, KindStateConflict)

	after := env.store.get(t, "acc-1")
	if after.TwoFactorSecret != "" || len(after.TwoFactorBackupCodes) != 0 {
		t.Fatal("losing writer must not persist anything")
	}
	if after.Version != before.Version+1 {
		t.Fatalf("expected only the other writer's bump, got version %d", after.Version)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricConcurrentUpdate]; got != 1 {
		t.Fatalf("expected conflict counted once, got %d", got)
	}
}

func TestSecurityInvariantBackupCodesNeverStoredPlain(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "acc-1")
	_, codes := env.enroll(t, "acc-1")
	fresh, err := env.engine.RegenerateBackupCodes(context.Background(), "acc-1", testPassword)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	stored := env.store.get(t, "acc-1").TwoFactorBackupCodes
	for _, plain := range append(codes, fresh...) {
		for _, h := range stored {
			if h == plain {
				t.Fatalf("plain backup code %q found in store", plain)
			}
		}
	}
}

package goSecure

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSecure/account"
	"github.com/MrEthical07/goSecure/otp"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testPassword = "correct-horse-9"
	desktopUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	iphoneUA     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memAccountStore is an account.Store with the same version contract as
// the bundled stores.
type memAccountStore struct {
	mu       sync.Mutex
	profiles map[string]account.Profile
	saveErr  error
	findErr  error
	saves    int

	// beforeSave runs outside the lock ahead of every Save.
	beforeSave func(accountID string)
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{profiles: make(map[string]account.Profile)}
}

func (s *memAccountStore) FindByID(_ context.Context, accountID string) (account.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return account.Profile{}, s.findErr
	}
	p, ok := s.profiles[accountID]
	if !ok {
		return account.Profile{}, account.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *memAccountStore) Save(_ context.Context, p account.Profile) (account.Profile, error) {
	if s.beforeSave != nil {
		s.beforeSave(p.AccountID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return account.Profile{}, s.saveErr
	}
	cur, ok := s.profiles[p.AccountID]
	if !ok {
		return account.Profile{}, account.ErrNotFound
	}
	if cur.Version != p.Version {
		return account.Profile{}, account.ErrVersionConflict
	}
	p = p.Clone()
	p.Version++
	s.profiles[p.AccountID] = p
	s.saves++
	return p.Clone(), nil
}

func (s *memAccountStore) put(p account.Profile) {
	s.mu.Lock()
	s.profiles[p.AccountID] = p.Clone()
	s.mu.Unlock()
}

func (s *memAccountStore) get(t *testing.T, accountID string) account.Profile {
	t.Helper()
	p, err := s.FindByID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("find %s: %v", accountID, err)
	}
	return p
}

// bumpVersion simulates a write by another process.
func (s *memAccountStore) bumpVersion(accountID string) {
	s.mu.Lock()
	p := s.profiles[accountID]
	p.Version++
	s.profiles[accountID] = p
	s.mu.Unlock()
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig(t testing.TB) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.BackupCodes.Cost = 4
	cfg.TOTP.QRCodeSize = 0
	cfg.Bearer.PrivateKey = priv
	cfg.Bearer.PublicKey = pub
	cfg.Bearer.Issuer = "gosecure-test"
	return cfg
}

type testEnv struct {
	engine *Engine
	store  *memAccountStore
	clock  *testClock
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestEnv(t testing.TB, mutate func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvWithSink(t, mutate, nil)
}

func newTestEnvWithSink(t testing.TB, mutate func(*Config), sink AuditSink) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	mr, rdb := newTestRedis(t)
	store := newMemAccountStore()
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, clock: clock, mr: mr, rdb: rdb}
}

// seed stores a profile whose password is testPassword.
func (env *testEnv) seed(t testing.TB, accountID string) {
	t.Helper()
	hash, err := env.engine.passwordHash.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env.store.put(account.Profile{
		AccountID:         accountID,
		Identifier:        accountID + "@example.com",
		PasswordHash:      hash,
		PasswordChangedAt: env.clock.Now().Add(-10 * 24 * time.Hour),
		Version:           1,
	})
}

func (env *testEnv) code(t testing.TB, secret string, offset int) string {
	t.Helper()
	c, err := otp.Engine{Now: env.clock.Now}.Generate(secret, offset)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return c
}

// enroll runs setup and enable and returns the plaintext backup codes.
func (env *testEnv) enroll(t testing.TB, accountID string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	setup, err := env.engine.SetupTwoFactor(ctx, accountID)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := env.engine.EnableTwoFactor(ctx, accountID, env.code(t, setup.Secret, 0)); err != nil {
		t.Fatalf("enable: %v", err)
	}
	return setup.Secret, setup.BackupCodes
}

func (env *testEnv) login(t testing.TB, accountID, userAgent string) *LoginResult {
	t.Helper()
	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.7"), userAgent)
	res, err := env.engine.Login(ctx, accountID, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

// wrongCode returns a 6-digit code outside the accepted window.
func (env *testEnv) wrongCode(t testing.TB, secret string) string {
	t.Helper()
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !inWindow(env, t, secret, c) {
			return c
		}
	}
	t.Fatal("no wrong code available")
	return ""
}

func mustKind(t testing.TB, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, got, err)
	}
}

var errBoom = errors.New("boom")

func inWindow(env *testEnv, t testing.TB, secret, code string) bool {
	t.Helper()
	for off := -1; off <= 1; off++ {
		if env.code(t, secret, off) == code {
			return true
		}
	}
	return false
}

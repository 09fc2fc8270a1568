package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSecure/account"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
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
	return New(rdb, "test"), mr
}

func fullProfile() account.Profile {
	enabledAt := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	return account.Profile{
		AccountID:            "acc-1",
		Identifier:           "alice@example.com",
		PasswordHash:         "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		PasswordChangedAt:    time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		TwoFactorSecret:      "JBSWY3DPEHPK3PXP",
		TwoFactorEnabled:     true,
		TwoFactorBackupCodes: []string{"$2a$10$one", "$2a$10$two"},
		TwoFactorEnabledAt:   &enabledAt,
	}
}

func TestCreateFindSave(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, fullProfile())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	if _, err := s.Create(ctx, fullProfile()); !errors.Is(err, account.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, err := s.FindByID(ctx, "acc-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	want := fullProfile()
	if got.Identifier != want.Identifier || got.PasswordHash != want.PasswordHash ||
		got.TwoFactorSecret != want.TwoFactorSecret || !got.TwoFactorEnabled ||
		len(got.TwoFactorBackupCodes) != 2 || got.TwoFactorBackupCodes[1] != "$2a$10$two" ||
		!got.PasswordChangedAt.Equal(want.PasswordChangedAt) ||
		got.TwoFactorEnabledAt == nil || !got.TwoFactorEnabledAt.Equal(*want.TwoFactorEnabledAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.ClearTwoFactor()
	saved, err := s.Save(ctx, got)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}

	again, _ := s.FindByID(ctx, "acc-1")
	if again.TwoFactorSecret != "" || again.TwoFactorEnabledAt != nil || again.TwoFactorBackupCodes != nil {
		t.Fatalf("expected cleared two-factor fields, got %+v", again)
	}
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, fullProfile()); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, _ := s.FindByID(ctx, "acc-1")
	b, _ := s.FindByID(ctx, "acc-1")

	if _, err := s.Save(ctx, a); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := s.Save(ctx, b); !errors.Is(err, account.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestMissingAndUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := s.FindByID(ctx, "ghost"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Save(ctx, account.Profile{AccountID: "ghost"}); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on save, got %v", err)
	}

	mr.Close()
	if _, err := s.FindByID(ctx, "acc-1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	encoded, err := encodeProfile(fullProfile())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := map[string][]byte{
		"empty":         nil,
		"bad version":   append([]byte{9}, encoded[1:]...),
		"truncated":     encoded[:len(encoded)-3],
		"trailing byte": append(append([]byte(nil), encoded...), 0),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeProfile(data); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

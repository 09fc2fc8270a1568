package pgstore

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSecure/account"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type row struct {
	identifier, passwordHash, secret string
	changedAt, enabledAt              *time.Time
	enabled                           bool
	codes                             []string
	version                           int64
}

// fakeDB executes the store's statements against a map.
type fakeDB struct {
	mu   sync.Mutex
	rows map[string]row
	err  error
}

func newFakeDB() *fakeDB { return &fakeDB{rows: make(map[string]row)} }

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	id := args[0].(string)
	switch sql {
	case insertProfileSQL:
		if _, ok := f.rows[id]; ok {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		f.rows[id] = row{
			identifier: args[1].(string), passwordHash: args[2].(string), changedAt: args[3].(*time.Time),
			secret: args[4].(string), enabled: args[5].(bool), codes: args[6].([]string),
			enabledAt: args[7].(*time.Time), version: 1,
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case updateProfileSQL:
		cur, ok := f.rows[id]
		if !ok || cur.version != args[1].(int64) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		f.rows[id] = row{
			identifier: args[2].(string), passwordHash: args[3].(string), changedAt: args[4].(*time.Time),
			secret: args[5].(string), enabled: args[6].(bool), codes: args[7].([]string),
			enabledAt: args[8].(*time.Time), version: cur.version + 1,
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected statement")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	id := args[0].(string)
	r, ok := f.rows[id]
	switch sql {
	case existsProfileSQL:
		return fakeRow{scan: func(dest []any) { *dest[0].(*bool) = ok }}
	case selectProfileSQL:
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{scan: func(dest []any) {
			*dest[0].(*string) = id
			*dest[1].(*string) = r.identifier
			*dest[2].(*string) = r.passwordHash
			*dest[3].(**time.Time) = r.changedAt
			*dest[4].(*string) = r.secret
			*dest[5].(*bool) = r.enabled
			*dest[6].(*[]string) = append([]string(nil), r.codes...)
			*dest[7].(**time.Time) = r.enabledAt
			*dest[8].(*int64) = r.version
		}}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

type fakeRow struct {
	scan func([]any)
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	r.scan(dest)
	return nil
}

func TestStoreLifecycle(t *testing.T) {
	db := newFakeDB()
	s := New(db)
	ctx := context.Background()

	changed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	created, err := s.Create(ctx, account.Profile{
		AccountID: "acc-1", Identifier: "alice@example.com", PasswordHash: "h", PasswordChangedAt: changed,
	})
	if err != nil || created.Version != 1 {
		t.Fatalf("create: (%+v, %v)", created, err)
	}
	if _, err := s.Create(ctx, account.Profile{AccountID: "acc-1"}); !errors.Is(err, account.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if db.rows["acc-1"].codes == nil {
		t.Fatal("backup codes must be written as an empty array")
	}

	p, err := s.FindByID(ctx, "acc-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !p.PasswordChangedAt.Equal(changed) || p.TwoFactorBackupCodes != nil || p.Version != 1 {
		t.Fatalf("unexpected profile %+v", p)
	}

	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	p.TwoFactorSecret = "JBSWY3DPEHPK3PXP"
	p.TwoFactorEnabled = true
	p.TwoFactorEnabledAt = &now
	p.TwoFactorBackupCodes = []string{"a", "b"}
	saved, err := s.Save(ctx, p)
	if err != nil || saved.Version != 2 {
		t.Fatalf("save: (%+v, %v)", saved, err)
	}

	if _, err := s.Save(ctx, p); !errors.Is(err, account.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale save, got %v", err)
	}

	got, _ := s.FindByID(ctx, "acc-1")
	if !got.TwoFactorEnabled || len(got.TwoFactorBackupCodes) != 2 || got.Version != 2 {
		t.Fatalf("unexpected stored profile %+v", got)
	}
}

func TestStoreMissingAndUnavailable(t *testing.T) {
	db := newFakeDB()
	s := New(db)
	ctx := context.Background()

	if _, err := s.FindByID(ctx, "ghost"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Save(ctx, account.Profile{AccountID: "ghost", Version: 1}); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on save, got %v", err)
	}

	db.err = errors.New("connection refused")
	if _, err := s.FindByID(ctx, "acc-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := s.Save(ctx, account.Profile{AccountID: "acc-1"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on save, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for _, e := range entries {
		data, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		body := string(data)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s lacks goose annotations", e.Name())
		}
	}
}

func TestConnectRequiresConnectionString(t *testing.T) {
	if _, err := Connect(context.Background(), PoolConfig{}); !errors.Is(err, ErrEmptyConnectionString) {
		t.Fatalf("expected ErrEmptyConnectionString, got %v", err)
	}
}

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSecure/account"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnavailable wraps database failures.
var ErrUnavailable = errors.New("pgstore: database unavailable")

// DB is the subset of *pgxpool.Pool and pgx.Tx the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txContextKey struct{}

// WithTx returns a context whose store calls run on tx.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txContextKey{}, tx)
}

// Store is an account.Store backed by PostgreSQL.
type Store struct {
	db DB
}

// New returns a Store over db, normally a *pgxpool.Pool.
func New(db DB) *Store {
	return &Store{db: db}
}

var _ account.Store = (*Store)(nil)

func (s *Store) conn(ctx context.Context) DB {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.db
}

const (
	selectProfileSQL = `SELECT account_id, identifier, password_hash, password_changed_at,
	two_factor_secret, two_factor_enabled, two_factor_backup_codes, two_factor_enabled_at, version
FROM account_security WHERE account_id = $1`

	insertProfileSQL = `INSERT INTO account_security (account_id, identifier, password_hash, password_changed_at,
	two_factor_secret, two_factor_enabled, two_factor_backup_codes, two_factor_enabled_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
ON CONFLICT (account_id) DO NOTHING`

	updateProfileSQL = `UPDATE account_security SET identifier = $3, password_hash = $4, password_changed_at = $5,
	two_factor_secret = $6, two_factor_enabled = $7, two_factor_backup_codes = $8, two_factor_enabled_at = $9,
	version = version + 1, updated_at = now()
WHERE account_id = $1 AND version = $2`

	existsProfileSQL = `SELECT EXISTS (SELECT 1 FROM account_security WHERE account_id = $1)`
)

// Create inserts a new profile with Version 1.
func (s *Store) Create(ctx context.Context, p account.Profile) (account.Profile, error) {
	if p.AccountID == "" {
		return account.Profile{}, errors.New("pgstore: account id required")
	}
	tag, err := s.conn(ctx).Exec(ctx, insertProfileSQL,
		p.AccountID, p.Identifier, p.PasswordHash, nullTime(p.PasswordChangedAt),
		p.TwoFactorSecret, p.TwoFactorEnabled, codes(p.TwoFactorBackupCodes), p.TwoFactorEnabledAt,
	)
	if err != nil {
		return account.Profile{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return account.Profile{}, account.ErrExists
	}
	out := p.Clone()
	out.Version = 1
	return out, nil
}

// FindByID implements account.Store.
func (s *Store) FindByID(ctx context.Context, accountID string) (account.Profile, error) {
	var (
		p         account.Profile
		changedAt *time.Time
		version   int64
	)
	err := s.conn(ctx).QueryRow(ctx, selectProfileSQL, accountID).Scan(
		&p.AccountID, &p.Identifier, &p.PasswordHash, &changedAt,
		&p.TwoFactorSecret, &p.TwoFactorEnabled, &p.TwoFactorBackupCodes, &p.TwoFactorEnabledAt, &version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Profile{}, account.ErrNotFound
		}
		return account.Profile{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if changedAt != nil {
		p.PasswordChangedAt = changedAt.UTC()
	}
	if len(p.TwoFactorBackupCodes) == 0 {
		p.TwoFactorBackupCodes = nil
	}
	p.Version = uint64(version)
	return p, nil
}

// Save implements account.Store.
func (s *Store) Save(ctx context.Context, p account.Profile) (account.Profile, error) {
	db := s.conn(ctx)
	tag, err := db.Exec(ctx, updateProfileSQL,
		p.AccountID, int64(p.Version), p.Identifier, p.PasswordHash, nullTime(p.PasswordChangedAt),
		p.TwoFactorSecret, p.TwoFactorEnabled, codes(p.TwoFactorBackupCodes), p.TwoFactorEnabledAt,
	)
	if err != nil {
		return account.Profile{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 1 {
		out := p.Clone()
		out.Version++
		return out, nil
	}

	var exists bool
	if err := db.QueryRow(ctx, existsProfileSQL, p.AccountID).Scan(&exists); err != nil {
		return account.Profile{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !exists {
		return account.Profile{}, account.ErrNotFound
	}
	return account.Profile{}, account.ErrVersionConflict
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// TEXT[] NOT NULL rejects a nil slice.
func codes(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}

package account

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no profile exists for the id.
	ErrNotFound = errors.New("account: profile not found")
	// ErrVersionConflict is returned by Save when the stored version is not
	// the version the caller read.
	ErrVersionConflict = errors.New("account: version conflict")
	// ErrExists is returned by Create when the id is taken.
	ErrExists = errors.New("account: profile already exists")
)

// Profile is the security-relevant slice of an account.
//
// TwoFactorBackupCodes only ever holds bcrypt hashes. TwoFactorSecret is the
// base32 shared secret; it is set while setup is staged and while two-factor
// is enabled, and empty otherwise.
type Profile struct {
	AccountID  string
	Identifier string

	PasswordHash      string
	PasswordChangedAt time.Time

	TwoFactorSecret      string
	TwoFactorEnabled     bool
	TwoFactorBackupCodes []string
	TwoFactorEnabledAt   *time.Time

	// Version is bumped by every successful Save.
	Version uint64
}

// Label returns the name shown in authenticator apps.
func (p Profile) Label() string {
	if p.Identifier != "" {
		return p.Identifier
	}
	return p.AccountID
}

// Staged reports whether setup issued a secret that was not yet confirmed.
func (p Profile) Staged() bool {
	return !p.TwoFactorEnabled && p.TwoFactorSecret != ""
}

// ClearTwoFactor resets every two-factor field.
func (p *Profile) ClearTwoFactor() {
	p.TwoFactorSecret = ""
	p.TwoFactorEnabled = false
	p.TwoFactorBackupCodes = nil
	p.TwoFactorEnabledAt = nil
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (p Profile) Clone() Profile {
	out := p
	if p.TwoFactorBackupCodes != nil {
		out.TwoFactorBackupCodes = append([]string(nil), p.TwoFactorBackupCodes...)
	}
	if p.TwoFactorEnabledAt != nil {
		at := *p.TwoFactorEnabledAt
		out.TwoFactorEnabledAt = &at
	}
	return out
}

// Store persists profiles.
//
// Save must be atomic per profile: it succeeds only when the stored Version
// equals p.Version, writes every field, and returns the profile with the
// incremented Version. Implementations live in accountstore/.
type Store interface {
	FindByID(ctx context.Context, accountID string) (Profile, error)
	Save(ctx context.Context, p Profile) (Profile, error)
}

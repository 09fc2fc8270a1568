package session

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of a session from creation.
const DefaultTTL = 7 * 24 * time.Hour

// RegistryConfig controls session lifetime.
type RegistryConfig struct {
	TTL time.Duration
	Now func() time.Time
}

// Registry implements the session lifecycle on top of a Store: creation
// with the single-current rule, listing, revocation and activity tracking.
// Every read applies Record.Live.
type Registry struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry returns a Registry over store.
func NewRegistry(store *Store, cfg RegistryConfig) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{store: store, ttl: cfg.TTL, now: cfg.Now}
}

// TTL returns the session lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Create registers a new session under a fresh id.
func (r *Registry) Create(ctx context.Context, accountID, rawToken string, meta Metadata) (Record, error) {
	return r.CreateWithID(ctx, NewID(), accountID, rawToken, meta)
}

// CreateWithID registers a session under a caller-chosen id, used when the
// id must be embedded in the bearer before the record exists. The new
// record becomes the account's only current session.
func (r *Registry) CreateWithID(ctx context.Context, id, accountID, rawToken string, meta Metadata) (Record, error) {
	if id == "" || accountID == "" || rawToken == "" {
		return Record{}, errors.New("session: id, account and token are required")
	}

	now := r.now()
	device := Classify(meta.UserAgent)
	rec := Record{
		ID:         id,
		AccountID:  accountID,
		TokenHash:  HashToken(rawToken),
		DeviceType: device.Type,
		DeviceName: device.Name,
		Browser:    device.Browser,
		OS:         device.OS,
		IPAddress:  meta.IPAddress,
		Location:   meta.Location,
		IsActive:   true,
		IsCurrent:  true,
		LastActive: now,
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.ttl),
	}

	if err := r.store.Insert(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns the account's live sessions, most recently active first.
// IsCurrent marks the session whose bearer is callerToken.
func (r *Registry) List(ctx context.Context, accountID, callerToken string) ([]Summary, error) {
	records, err := r.store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	callerHash := ""
	if callerToken != "" {
		callerHash = HashToken(callerToken)
	}

	now := r.now()
	out := make([]Summary, 0, len(records))
	for _, rec := range records {
		if !rec.Live(now) {
			continue
		}
		out = append(out, Summary{
			ID:         rec.ID,
			DeviceType: rec.DeviceType,
			DeviceName: rec.DeviceName,
			Browser:    rec.Browser,
			OS:         rec.OS,
			IPAddress:  rec.IPAddress,
			Location:   rec.Location,
			IsCurrent:  callerHash != "" && rec.TokenHash == callerHash,
			LastActive: rec.LastActive,
			CreatedAt:  rec.CreatedAt,
			ExpiresAt:  rec.ExpiresAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out, nil
}

// Revoke deactivates one live session of the account. Unknown, foreign,
// already revoked and expired sessions all yield ErrNotFound.
func (r *Registry) Revoke(ctx context.Context, accountID, sessionID string) error {
	ok, err := r.store.Revoke(ctx, accountID, sessionID, r.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// RevokeAllExcept deactivates every live session of the account except the
// one whose token hash is currentTokenHash, and returns the count.
func (r *Registry) RevokeAllExcept(ctx context.Context, accountID, currentTokenHash string) (int, error) {
	return r.store.RevokeAllExcept(ctx, accountID, currentTokenHash, r.now())
}

// Touch records activity on the caller's live session and returns the new
// last-active time.
func (r *Registry) Touch(ctx context.Context, accountID, tokenHash string) (time.Time, error) {
	now := r.now()
	ok, err := r.store.Touch(ctx, accountID, tokenHash, now)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, ErrNotFound
	}
	// stored with millisecond precision
	return time.UnixMilli(now.UnixMilli()), nil
}

// Lookup returns the live session for a bearer token hash.
func (r *Registry) Lookup(ctx context.Context, tokenHash string) (Record, error) {
	rec, err := r.store.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return Record{}, err
	}
	if !rec.Live(r.now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

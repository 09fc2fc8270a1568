package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record is one logged-in device of an account.
//
// Records are never deleted on revocation; IsActive is cleared and the
// record stays visible to the reaper until ExpiresAt plus the retention.
type Record struct {
	ID        string
	AccountID string
	TokenHash string

	DeviceType string
	DeviceName string
	Browser    string
	OS         string
	IPAddress  string
	Location   string

	IsActive  bool
	IsCurrent bool

	LastActive time.Time
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Live reports whether the record is active and not yet expired at now.
// Every read path filters with Live, so an expired record is treated as
// revoked even before the reaper runs.
func (r Record) Live(now time.Time) bool {
	return r.IsActive && now.Before(r.ExpiresAt)
}

// Metadata is the request context captured when a session is created.
type Metadata struct {
	UserAgent string
	IPAddress string
	Location  string
}

// Summary is the caller-facing view of a live session. IsCurrent is true
// for the session whose bearer made the request.
type Summary struct {
	ID         string    `json:"id"`
	DeviceType string    `json:"deviceType"`
	DeviceName string    `json:"deviceName"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	Location   string    `json:"location,omitempty"`
	IsCurrent  bool      `json:"isCurrent"`
	LastActive time.Time `json:"lastActive"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// HashToken returns the hex SHA-256 of a bearer token. Bearers are
// high-entropy, so a fast hash is sufficient for the lookup index.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

package goSecure

import (
	"time"

	"github.com/MrEthical07/goSecure/session"
)

// TwoFactorSetup is returned once by [Engine.SetupTwoFactor].
//
// BackupCodes are plaintext and cannot be retrieved again; only their
// hashes are stored. QRCode is a PNG data URI of ProvisioningURI, empty
// when rendering is disabled.
type TwoFactorSetup struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioningUri"`
	QRCode          string   `json:"qrCode,omitempty"`
	BackupCodes     []string `json:"backupCodes"`
}

// TwoFactorStatus is returned by [Engine.TwoFactorStatus].
type TwoFactorStatus struct {
	Enabled          bool       `json:"enabled"`
	Staged           bool       `json:"staged"`
	EnabledAt        *time.Time `json:"enabledAt,omitempty"`
	BackupCodesCount int        `json:"backupCodesCount"`
}

// LoginResult is returned by [Engine.Login].
//
// When TwoFactorRequired is true the session exists but the caller must
// complete [Engine.VerifyTwoFactor] before granting access to anything
// sensitive.
type LoginResult struct {
	AccountID         string    `json:"accountId"`
	SessionID         string    `json:"sessionId"`
	BearerToken       string    `json:"bearerToken"`
	ExpiresAt         time.Time `json:"expiresAt"`
	TwoFactorRequired bool      `json:"twoFactorRequired"`
}

// AuthResult is returned by [Engine.Authenticate].
type AuthResult struct {
	AccountID string
	SessionID string
	TokenHash string
	ExpiresAt time.Time
}

// SessionSummary is one entry of [Engine.ListSessions].
type SessionSummary = session.Summary

// ChangePasswordRequest is the input of [Engine.ChangePassword].
// BearerToken identifies the caller's session, which is kept when
// Config.Password.RevokeOtherSessionsOnChange is set.
type ChangePasswordRequest struct {
	AccountID   string
	Current     string
	Next        string
	Confirm     string
	BearerToken string
}

// ChangePasswordResult reports a committed rotation.
type ChangePasswordResult struct {
	ChangedAt       time.Time `json:"changedAt"`
	RevokedSessions int       `json:"revokedSessions"`
}

// PasswordInfo is returned by [Engine.PasswordInfo]. LastChanged is zero
// when the account never recorded a change.
type PasswordInfo struct {
	LastChanged     time.Time `json:"lastChanged"`
	DaysSinceChange int       `json:"daysSinceChange"`
}

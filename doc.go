// Package goSecure is the account-security core of a trading platform:
// TOTP two-factor enrollment and verification, single-use backup codes,
// multi-device session tracking and password rotation.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goSecure is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (TwoFactorSetup, SessionSummary, MetricsSnapshot, etc.).
// Flow orchestration, per-account locking, failure limiting and audit
// dispatch live under internal/. Profiles are read and written through
// [account.Store]; sessions live in Redis through the session package.
//
// # Consistency
//
// Every profile mutation runs under a per-account lock and commits through
// a versioned Save. A writer that loses the race to another process gets
// ErrConcurrentUpdate and nothing is written. Session mutations are single
// Redis scripts, so at most one session per account is current at any
// time.
//
// # Errors
//
// Every error the engine returns is one of the package-level sentinels or
// wraps one; [KindOf] classifies them for transports.
package goSecure

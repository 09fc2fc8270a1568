// Package limiters provides the per-account failure limiters used by the
// two-factor and password flows.
//
// One [FailureLimiter] exists per [Scope]: one-time codes, backup codes and
// password re-verification. Each counts failures in a Redis fixed window
// (see internal/rate) under the key sf:<scope>:<account>. All limiters are
// nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import goSecure.
//   - Decide consequences. Flow functions map ErrRateLimited to engine errors.
package limiters

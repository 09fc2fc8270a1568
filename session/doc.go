// Package session tracks the devices logged into an account.
//
// # Components
//
//   - [Store] persists [Record] values in Redis hashes with Lua scripts for
//     every multi-key mutation.
//   - [Registry] implements the lifecycle: create (single current session per
//     account), list, revoke, revoke-all-except-current, touch and lookup.
//   - [Classify] turns a user-agent into browser, OS and device type.
//   - [Reaper] purges records long past expiry.
//
// # Architecture boundaries
//
// Bearers are identified by the SHA-256 of the raw token; the raw token is
// never stored. This package does not issue or parse tokens and does not
// decide who may revoke what beyond account ownership.
//
// # What this package must NOT do
//
//   - Import goSecure, jwt or any store of account profiles.
//   - Physically delete a session on revocation. Only the reaper deletes.
package session

// Package flows contains pure-function orchestrators for the Engine's
// profile-mutating operations: the two-factor state machine, password
// rotation and login.
//
// Each flow function (RunSetupTwoFactor, RunChangePassword, RunLogin, etc.)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. Host errors, metric ids and audit event names
// are injected, so tests drive flows with in-memory fakes.
//
// # Architecture boundaries
//
// Every mutation follows the same shape: lock the account, load the profile,
// check preconditions in a fixed order, mutate a copy, commit it with a single
// SaveProfile call. A flow never issues two saves for one operation, so a
// failed save leaves the stored profile untouched.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSecure (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency closures.
package flows

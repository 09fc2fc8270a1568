// Package rate provides the Redis fixed-window counter shared by every limiter
// and the login throttle built on it.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Key prefixes:
//   - sl:  login failures per account
//   - sli: login failures per client IP
//
// Domain limiters for one-time codes, backup codes and password
// re-verification live in internal/limiters.
package rate

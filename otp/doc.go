// Package otp implements time-based one-time codes for authenticator apps.
//
// A code is HOTP(secret, floor(unix/30)): HMAC-SHA1 over the 8-byte
// big-endian counter, dynamic truncation, modulo 10^6, zero-padded to six
// digits. Verification accepts the previous, current and next step and
// compares with crypto/subtle.
//
// Secrets are 20 random bytes stored and displayed as unpadded base32.
//
// # What this package must NOT do
//
//   - Track used steps or attempt counts. Replay and brute-force policy
//     belong to the caller.
//   - Log secrets or codes.
package otp

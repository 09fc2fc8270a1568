// Package backupcode issues and consumes single-use recovery codes.
//
// Codes are 8 upper-case hex characters. Only bcrypt hashes are persisted;
// the plaintext exists in the issuing response and nowhere else. Consuming a
// code removes its hash, so each code verifies at most once. Persisting the
// shortened set is the caller's job.
package backupcode

// Package account defines the account security profile and the storage
// contract the engine reads and writes it through.
//
// The engine never holds a profile across calls. Every mutation is a
// read-modify-write guarded by Profile.Version, so two processes racing on
// the same account cannot both commit.
package account

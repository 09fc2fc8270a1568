// Package jwt issues and verifies the bearer tokens handed out at login.
//
// A bearer carries the account id, the session id and a unique token id.
// Verifying the signature is necessary but not sufficient: callers must still
// look the token up in the session registry, which is the authority on
// revocation.
package jwt

// Package httpapi serves the account-security operations over HTTP/JSON
// using gorilla/mux.
//
// Routes:
//
//	POST   /v1/auth/login
//	GET    /v1/security/2fa
//	POST   /v1/security/2fa/setup
//	POST   /v1/security/2fa/enable
//	POST   /v1/security/2fa/disable
//	POST   /v1/security/2fa/verify
//	POST   /v1/security/2fa/backup-codes
//	GET    /v1/security/sessions
//	DELETE /v1/security/sessions/{id}
//	POST   /v1/security/sessions/revoke-others
//	POST   /v1/security/sessions/touch
//	GET    /v1/security/password
//	POST   /v1/security/password
//
// Every /v1/security route requires a bearer and acts on the bearer's
// account. Errors are {"error": <message>, "kind": <kind>} with the status
// chosen by goSecure.KindOf.
package httpapi

package goSecure

import "errors"

// Kind classifies engine errors for transports and callers.
type Kind uint8

const (
	// KindUnknown is any error not produced by the engine.
	KindUnknown Kind = iota
	// KindUnauthorized covers a wrong password or a missing, expired or revoked bearer.
	KindUnauthorized
	// KindNotFound covers unknown accounts and unknown or foreign sessions.
	KindNotFound
	// KindInvalidInput covers malformed or policy-violating requests.
	KindInvalidInput
	// KindStateConflict covers operations illegal in the current two-factor or password state.
	KindStateConflict
	// KindInvalidCode covers a well-formed second factor that did not verify.
	KindInvalidCode
	// KindRateLimited covers requests refused by a failure limiter.
	KindRateLimited
	// KindUnavailable covers storage failures.
	KindUnavailable
)

// String returns the wire name of k.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindStateConflict:
		return "state_conflict"
	case KindInvalidCode:
		return "invalid_code"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified engine error. Engine errors are the package-level
// sentinels below; compare them with errors.Is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	// ErrUnauthorized is returned for invalid, expired or revoked bearer tokens.
	ErrUnauthorized = newError(KindUnauthorized, "unauthorized")
	// ErrMissingToken is returned when an operation needs the caller's bearer token.
	ErrMissingToken = newError(KindUnauthorized, "missing bearer token")
	// ErrInvalidCredentials is returned by Login on an unknown account or wrong password.
	ErrInvalidCredentials = newError(KindUnauthorized, "invalid credentials")
	// ErrPasswordIncorrect is returned when a re-authentication password does not verify.
	ErrPasswordIncorrect = newError(KindUnauthorized, "password is incorrect")
	// ErrCurrentPasswordIncorrect is returned by ChangePassword when the current password does not verify.
	ErrCurrentPasswordIncorrect = newError(KindUnauthorized, "current password is incorrect")

	// ErrAccountNotFound is returned when the account store has no profile.
	ErrAccountNotFound = newError(KindNotFound, "account not found")
	// ErrSessionNotFound is returned for unknown, foreign, revoked or expired sessions.
	ErrSessionNotFound = newError(KindNotFound, "session not found")

	// ErrInvalidTokenFormat is returned when a one-time code is not exactly 6 digits.
	ErrInvalidTokenFormat = newError(KindInvalidInput, "invalid token format: code must be exactly 6 digits")
	// ErrFieldsRequired is returned when a required password field is empty.
	ErrFieldsRequired = newError(KindInvalidInput, "current password, new password and confirmation are required")
	// ErrPasswordMismatch is returned when the new password and its confirmation differ.
	ErrPasswordMismatch = newError(KindInvalidInput, "new password and confirmation do not match")
	// ErrPasswordTooShort is returned when the new password is below the minimum length.
	ErrPasswordTooShort = newError(KindInvalidInput, "new password is too short")
	// ErrPasswordTooLong is returned when the new password exceeds the hasher's input limit.
	ErrPasswordTooLong = newError(KindInvalidInput, "new password is too long")
	// ErrInvalidRequest is returned for structurally invalid requests such as an empty account id.
	ErrInvalidRequest = newError(KindInvalidInput, "invalid request")

	// ErrTwoFactorAlreadyEnabled is returned by setup when two-factor is already on.
	ErrTwoFactorAlreadyEnabled = newError(KindStateConflict, "two-factor authentication is already enabled")
	// ErrTwoFactorNotStaged is returned by enable when there is no staged
	// setup to confirm: setup was never run, or two-factor is already on.
	ErrTwoFactorNotStaged = newError(KindStateConflict, "no pending two-factor setup to confirm")
	// ErrTwoFactorNotEnabled is returned by operations that need two-factor to be on.
	ErrTwoFactorNotEnabled = newError(KindStateConflict, "two-factor authentication is not enabled")
	// ErrPasswordUnchanged is returned when the new password equals the current one.
	ErrPasswordUnchanged = newError(KindStateConflict, "new password must differ from the current password")
	// ErrConcurrentUpdate is returned when another writer changed the profile first.
	ErrConcurrentUpdate = newError(KindStateConflict, "account was modified concurrently")

	// ErrInvalidCode is returned when a one-time or backup code does not verify.
	ErrInvalidCode = newError(KindInvalidCode, "invalid token")

	// ErrRateLimited is returned when too many failures were recorded for the account.
	ErrRateLimited = newError(KindRateLimited, "too many failed attempts")

	// ErrUnavailable wraps storage and limiter backend failures.
	ErrUnavailable = newError(KindUnavailable, "security backend unavailable")

	// ErrEngineNotReady is returned when an Engine method is called on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

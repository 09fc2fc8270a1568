package goSecure

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginRateLimited       = "login_rate_limited"
	auditEventTwoFactorSetup         = "two_factor_setup_requested"
	auditEventTwoFactorEnabled       = "two_factor_enabled"
	auditEventTwoFactorEnableFailed  = "two_factor_enable_failed"
	auditEventTwoFactorDisabled      = "two_factor_disabled"
	auditEventTwoFactorDisableFailed = "two_factor_disable_failed"
	auditEventTwoFactorSuccess       = "two_factor_success"
	auditEventTwoFactorFailure       = "two_factor_failure"
	auditEventBackupCodeUsed         = "backup_code_used"
	auditEventBackupCodeFailed       = "backup_code_failed"
	auditEventBackupCodesGenerated   = "backup_codes_generated"
	auditEventBackupCodesRejected    = "backup_codes_regeneration_rejected"
	auditEventSessionRevoked         = "session_revoked"
	auditEventSessionsRevokedOthers  = "sessions_revoked_others"
	auditEventPasswordChangeSuccess  = "password_change_success"
	auditEventPasswordChangeFailure  = "password_change_failure"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrPasswordIncorrect  AuditErrorCode = "password_incorrect"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrStateConflict      AuditErrorCode = "state_conflict"
	auditErrConcurrentUpdate   AuditErrorCode = "concurrent_update"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// flowAudit adapts emitAudit to the flow callback shape.
func (e *Engine) flowAudit(ctx context.Context, event string, success bool, accountID string, err error, meta func() map[string]string) {
	e.emitAudit(ctx, event, success, accountID, "", err, meta)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrPasswordIncorrect),
		errors.Is(err, ErrCurrentPasswordIncorrect):
		return auditErrPasswordIncorrect
	case errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrPasswordTooLong),
		errors.Is(err, ErrPasswordUnchanged):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrConcurrentUpdate):
		return auditErrConcurrentUpdate
	}

	switch KindOf(err) {
	case KindUnauthorized:
		return auditErrUnauthorized
	case KindNotFound:
		return auditErrNotFound
	case KindInvalidInput:
		return auditErrInvalidInput
	case KindStateConflict:
		return auditErrStateConflict
	case KindInvalidCode:
		return auditErrInvalidCode
	case KindRateLimited:
		return auditErrRateLimited
	case KindUnavailable:
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

// now is the engine clock.
func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

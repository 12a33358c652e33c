package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLoginLockout            = "login_lockout"
	auditEventLogoutSession           = "logout_session"
	auditEventLogoutAll               = "logout_all"
	auditEventRegistration            = "registration"
	auditEventRegistrationVerified    = "registration_verified"
	auditEventPasswordChange          = "password_change"
	auditEventPasswordResetRequest    = "password_reset_request"
	auditEventPasswordResetConfirm    = "password_reset_confirm"
	auditEventSecondFactorRequired    = "second_factor_required"
	auditEventSecondFactorSuccess     = "second_factor_success"
	auditEventSecondFactorFailure     = "second_factor_failure"
	auditEventSecondFactorProvisioned = "second_factor_provisioned"
	auditEventSecondFactorEnabled     = "second_factor_enabled"
	auditEventSecondFactorDisabled    = "second_factor_disabled"
	auditEventBackupCodesGenerated    = "backup_codes_generated"
	auditEventBackupCodeUsed          = "backup_code_used"
	auditEventAntiForgeryRejected     = "anti_forgery_rejected"
	auditEventFederatedStart          = "federated_start"
	auditEventFederatedComplete       = "federated_complete"
	auditEventFederatedRedeem         = "federated_redeem"
	auditEventRateLimitTriggered      = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrAccountLocked       AuditErrorCode = "account_locked"
	auditErrAccountInactive     AuditErrorCode = "account_inactive"
	auditErrAccountUnverified   AuditErrorCode = "account_unverified"
	auditErrTokenExpired        AuditErrorCode = "token_expired"
	auditErrTokenRevoked        AuditErrorCode = "token_revoked"
	auditErrTokenMalformed      AuditErrorCode = "token_malformed"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrSecondFactor        AuditErrorCode = "second_factor_invalid"
	auditErrChallengeInvalid    AuditErrorCode = "challenge_invalid"
	auditErrAttemptsExceeded    AuditErrorCode = "attempts_exceeded"
	auditErrBackupCodeInvalid   AuditErrorCode = "backup_code_invalid"
	auditErrEphemeralInvalid    AuditErrorCode = "one_shot_token_invalid"
	auditErrAntiForgery         AuditErrorCode = "anti_forgery_mismatch"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrCompromisedPassword AuditErrorCode = "compromised_password"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrFederated           AuditErrorCode = "federated_invalid"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
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
		Timestamp: time.Now().UTC(),
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

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrResetRateLimited),
		errors.Is(err, ErrVerificationRateLimited),
		errors.Is(err, ErrSecondFactorRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSecondFactorRequired),
		errors.Is(err, ErrSecondFactorInvalid),
		errors.Is(err, ErrSecondFactorNotEnabled),
		errors.Is(err, ErrSecondFactorAlreadyEnabled):
		return auditErrSecondFactor
	case errors.Is(err, ErrChallengeInvalid),
		errors.Is(err, ErrChallengeExpired):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrChallengeAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrBackupCodeInvalid),
		errors.Is(err, ErrBackupCodesNotConfigured):
		return auditErrBackupCodeInvalid
	case errors.Is(err, ErrEphemeralTokenInvalid):
		return auditErrEphemeralInvalid
	case errors.Is(err, ErrAntiForgeryMismatch):
		return auditErrAntiForgery
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrCompromisedPassword):
		return auditErrCompromisedPassword
	case errors.Is(err, ErrResetInvalid),
		errors.Is(err, ErrVerificationInvalid):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrFederatedDisabled),
		errors.Is(err, ErrFederatedProviderUnknown),
		errors.Is(err, ErrFederatedStateInvalid):
		return auditErrFederated
	case errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, ErrNotifierFailed):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

package authcore

import (
	"context"
	"crypto/sha256"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartstack/authcore/internal"
)

/*
====================================
REGISTRATION
====================================
*/

// Register creates a new account in pending state and mails a one-time
// verification code. The account cannot log in until
// [Engine.VerifyRegistration] confirms the code, unless verification is
// disabled in config.
func (e *Engine) Register(ctx context.Context, email, pass, role string) (*RegisterResult, error) {
	if e == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidCredentials
	}

	ip := clientIPFromContext(ctx)
	if e.config.Verification.Enabled {
		if err := e.verificationLimiter.Enforce(ctx, email, ip); err != nil {
			if errors.Is(err, errFlowRateLimited) {
				e.emitRateLimit(ctx, "registration", func() map[string]string {
					return map[string]string{"email": email}
				})
				return nil, ErrVerificationRateLimited
			}
			return nil, ErrBackendUnavailable
		}
	}

	existing, err := e.provider.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if existing.AccountID != "" && existing.Status != AccountPendingVerification {
		e.emitAudit(ctx, auditEventRegistration, false, existing.AccountID, "", ErrAccountExists, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrAccountExists
	}

	if err := e.screenPassword(ctx, pass); err != nil {
		return nil, err
	}

	hash, err := e.passwordHash.Hash(pass)
	if err != nil {
		return nil, ErrPasswordPolicy
	}
	pass = ""

	if existing.AccountID != "" {
		// Abandoned signup: the address is held by a record that never
		// verified. Refresh it in place rather than rejecting, so the
		// legitimate owner can finish registering.
		return e.refreshPendingRegistration(ctx, existing, hash)
	}

	status := AccountActive
	if e.config.Verification.Enabled {
		status = AccountPendingVerification
	}

	account, err := e.provider.CreateAccount(ctx, CreateAccountInput{
		AccountID:    uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		TokenVersion: 1,
	})
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	if err := e.provider.PushPasswordHistory(ctx, account.AccountID, hash, e.config.Password.HistoryDepth); err != nil {
		log.Print("authcore: password history seed failed on registration")
	}

	if e.config.Verification.Enabled {
		if err := e.sendVerificationCode(ctx, account); err != nil {
			return nil, err
		}
	}

	e.emitAudit(ctx, auditEventRegistration, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return &RegisterResult{
		AccountID: account.AccountID,
		Email:     account.Email,
		Status:    account.Status,
	}, nil
}

// refreshPendingRegistration re-arms an unverified record with the
// latest submitted password and a fresh verification code. Any code
// mailed for an earlier attempt is replaced.
func (e *Engine) refreshPendingRegistration(ctx context.Context, account Account, hash string) (*RegisterResult, error) {
	if err := e.provider.UpdatePasswordHash(ctx, account.AccountID, hash); err != nil {
		return nil, ErrBackendUnavailable
	}
	if err := e.provider.PushPasswordHistory(ctx, account.AccountID, hash, e.config.Password.HistoryDepth); err != nil {
		log.Print("authcore: password history seed failed on registration refresh")
	}

	if e.config.Verification.Enabled {
		if err := e.sendVerificationCode(ctx, account); err != nil {
			return nil, err
		}
	}

	e.emitAudit(ctx, auditEventRegistration, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"email": account.Email, "refreshed": "true"}
	})

	return &RegisterResult{
		AccountID: account.AccountID,
		Email:     account.Email,
		Status:    account.Status,
	}, nil
}

// sendVerificationCode writes the challenge record first and rolls it
// back if delivery fails, so an unreachable mailer never leaves a live
// code nobody received.
func (e *Engine) sendVerificationCode(ctx context.Context, account Account) error {
	code, err := internal.NewOTP(e.config.Verification.OTPDigits)
	if err != nil {
		return ErrBackendUnavailable
	}

	record := &codeChallengeRecord{
		AccountID:  account.AccountID,
		SecretHash: sha256.Sum256([]byte(code)),
		ExpiresAt:  time.Now().Add(e.config.Verification.VerificationTTL).Unix(),
	}
	if err := e.verificationStore.Save(ctx, account.Email, record, e.config.Verification.VerificationTTL); err != nil {
		return ErrBackendUnavailable
	}

	ttlSeconds := int(e.config.Verification.VerificationTTL.Seconds())
	if err := e.notifier.SendVerificationCode(ctx, account.Email, code, ttlSeconds); err != nil {
		if dropErr := e.verificationStore.Drop(ctx, account.Email); dropErr != nil {
			log.Print("authcore: verification challenge rollback failed")
		}
		return ErrNotifierFailed
	}

	return nil
}

// VerifyRegistration consumes the mailed code and activates the
// account. The code is single-use; failures count against the
// challenge's attempt budget.
func (e *Engine) VerifyRegistration(ctx context.Context, email, code string) error {
	if e == nil || e.verificationStore == nil {
		return ErrEngineNotReady
	}
	if !e.config.Verification.Enabled {
		return ErrVerificationInvalid
	}

	email = strings.ToLower(strings.TrimSpace(email))
	providedHash := sha256.Sum256([]byte(strings.TrimSpace(code)))

	record, err := e.verificationStore.Consume(ctx, email, providedHash, e.config.Verification.MaxAttempts)
	if err != nil {
		e.emitAudit(ctx, auditEventRegistrationVerified, false, "", "", ErrVerificationInvalid, func() map[string]string {
			return map[string]string{"email": email}
		})
		switch {
		case errors.Is(err, errCodeChallengeNotFound),
			errors.Is(err, errCodeChallengeSecretMismatch),
			errors.Is(err, errCodeChallengeAttemptsExceeded):
			return ErrVerificationInvalid
		default:
			return ErrBackendUnavailable
		}
	}

	if _, err := e.provider.UpdateAccountStatus(ctx, record.AccountID, AccountActive); err != nil {
		return ErrBackendUnavailable
	}

	e.emitAudit(ctx, auditEventRegistrationVerified, true, record.AccountID, "", nil, nil)
	return nil
}

// ResendVerification issues a fresh code for a still-pending account.
// The previous code, if any, is replaced.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !e.config.Verification.Enabled {
		return ErrVerificationInvalid
	}

	email = strings.ToLower(strings.TrimSpace(email))
	ip := clientIPFromContext(ctx)
	if err := e.verificationLimiter.Enforce(ctx, email, ip); err != nil {
		if errors.Is(err, errFlowRateLimited) {
			return ErrVerificationRateLimited
		}
		return ErrBackendUnavailable
	}

	account, err := e.provider.GetAccountByEmail(ctx, email)
	if err != nil || account.Status != AccountPendingVerification {
		// Uniform response: no signal about whether the address exists.
		return nil
	}

	return e.sendVerificationCode(ctx, account)
}

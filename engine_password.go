package authcore

import (
	"context"
	"crypto/sha256"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cartstack/authcore/internal"
)

/*
====================================
PASSWORD CHANGE
====================================
*/

// ChangePassword rotates an account's credential. The old password must
// verify, the new one must clear the history and breach screens, and on
// success the token version advances so every outstanding bearer token
// is revoked on its next validation. The caller's own session is
// destroyed along with the rest; clients are expected to log in again.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	account, err := e.provider.GetAccountByID(ctx, accountID)
	if err != nil {
		return ErrBackendUnavailable
	}

	ok, err := e.passwordHash.Verify(oldPassword, account.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventPasswordChange, false, accountID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "old_password_mismatch"}
		})
		return ErrInvalidCredentials
	}

	if newPassword == oldPassword {
		e.emitAudit(ctx, auditEventPasswordChange, false, accountID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	if err := e.checkPasswordHistory(ctx, accountID, newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordChange, false, accountID, "", err, nil)
		return err
	}

	if err := e.screenPassword(ctx, newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordChange, false, accountID, "", err, nil)
		return err
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return ErrPasswordPolicy
	}
	newPassword = ""
	oldPassword = ""

	if err := e.applyPasswordRotation(ctx, accountID, newHash); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChange, true, accountID, "", nil, nil)
	return nil
}

// checkPasswordHistory verifies the candidate against the retained hash
// history. Each entry is a full argon2 verification, so depth is kept
// small by configuration.
func (e *Engine) checkPasswordHistory(ctx context.Context, accountID, candidate string) error {
	depth := e.config.Password.HistoryDepth
	if depth <= 0 {
		return nil
	}

	history, err := e.provider.PasswordHistory(ctx, accountID, depth)
	if err != nil {
		return ErrBackendUnavailable
	}

	for _, oldHash := range history {
		match, err := e.passwordHash.Verify(candidate, oldHash)
		if err != nil {
			continue
		}
		if match {
			return ErrPasswordReuse
		}
	}

	return nil
}

// applyPasswordRotation writes the new hash, appends it to history,
// bumps the token version, and destroys all sessions. Ordering matters:
// the hash lands before the version bump, so a validation racing the
// rotation either sees old-hash/old-version or is revoked.
func (e *Engine) applyPasswordRotation(ctx context.Context, accountID, newHash string) error {
	if err := e.provider.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		return ErrBackendUnavailable
	}
	if err := e.provider.PushPasswordHistory(ctx, accountID, newHash, e.config.Password.HistoryDepth); err != nil {
		log.Print("authcore: password history push failed")
	}

	if _, err := e.provider.BumpTokenVersion(ctx, accountID); err != nil {
		return ErrBackendUnavailable
	}
	e.metrics.Inc(MetricTokenRevoked)

	if err := e.sessionStore.DeleteAllForAccount(ctx, accountID); err != nil {
		// Version bump already revoked the tokens; stray session
		// blobs expire on their own idle window.
		log.Print("authcore: session sweep failed after password rotation")
	}

	return nil
}

/*
====================================
PASSWORD RESET
====================================
*/

// RequestPasswordReset mails a one-time reset code. The response is
// uniform whether or not the address has an account, so the endpoint
// cannot be used to probe for registered emails.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.resetStore == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrResetInvalid
	}

	email = strings.ToLower(strings.TrimSpace(email))
	ip := clientIPFromContext(ctx)
	if err := e.resetLimiter.Enforce(ctx, email, ip); err != nil {
		if errors.Is(err, errFlowRateLimited) {
			e.emitRateLimit(ctx, "password_reset", func() map[string]string {
				return map[string]string{"email": email}
			})
			return ErrResetRateLimited
		}
		return ErrBackendUnavailable
	}

	account, err := e.provider.GetAccountByEmail(ctx, email)
	if err != nil || account.AccountID == "" {
		// Uniform response: no account enumeration.
		e.metrics.Inc(MetricPasswordResetRequested)
		return nil
	}

	code, err := internal.NewOTP(e.config.PasswordReset.OTPDigits)
	if err != nil {
		return ErrBackendUnavailable
	}

	record := &codeChallengeRecord{
		AccountID:  account.AccountID,
		SecretHash: sha256.Sum256([]byte(code)),
		ExpiresAt:  time.Now().Add(e.config.PasswordReset.ResetTTL).Unix(),
	}
	if err := e.resetStore.Save(ctx, email, record, e.config.PasswordReset.ResetTTL); err != nil {
		return ErrBackendUnavailable
	}

	ttlSeconds := int(e.config.PasswordReset.ResetTTL.Seconds())
	if err := e.notifier.SendPasswordReset(ctx, email, code, ttlSeconds); err != nil {
		if dropErr := e.resetStore.Drop(ctx, email); dropErr != nil {
			log.Print("authcore: reset challenge rollback failed")
		}
		return ErrNotifierFailed
	}

	e.metrics.Inc(MetricPasswordResetRequested)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.AccountID, "", nil, nil)
	return nil
}

// ConfirmPasswordReset consumes the mailed code and installs the new
// password. The same rotation path as [Engine.ChangePassword] runs, so
// a successful reset revokes every outstanding token and session.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if e == nil || e.resetStore == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrResetInvalid
	}

	email = strings.ToLower(strings.TrimSpace(email))
	providedHash := sha256.Sum256([]byte(strings.TrimSpace(code)))

	record, err := e.resetStore.Consume(ctx, email, providedHash, e.config.PasswordReset.MaxAttempts)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrResetInvalid, func() map[string]string {
			return map[string]string{"email": email}
		})
		switch {
		case errors.Is(err, errCodeChallengeNotFound),
			errors.Is(err, errCodeChallengeSecretMismatch),
			errors.Is(err, errCodeChallengeAttemptsExceeded):
			return ErrResetInvalid
		default:
			return ErrBackendUnavailable
		}
	}

	if err := e.checkPasswordHistory(ctx, record.AccountID, newPassword); err != nil {
		return err
	}
	if err := e.screenPassword(ctx, newPassword); err != nil {
		return err
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return ErrPasswordPolicy
	}
	newPassword = ""

	if err := e.applyPasswordRotation(ctx, record.AccountID, newHash); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordResetCompleted)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, record.AccountID, "", nil, nil)
	return nil
}

package authcore

import (
	"context"
	"crypto/sha256"
	"errors"
	"log"
	"strings"
	"time"
)

/*
====================================
SECOND-FACTOR LOGIN
====================================
*/

// ConfirmLogin completes a login that [Engine.Login] parked behind a
// second-factor challenge. The code may be a TOTP code or a backup
// code; backup codes are recognized by shape. The challenge token is
// single-use: the store delete is the gate, so two racing confirms can
// never both mint a session.
func (e *Engine) ConfirmLogin(ctx context.Context, challengeToken, code string) (*LoginResult, error) {
	if e == nil || e.challengeStore == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.SecondFactor.Enabled {
		return nil, ErrSecondFactorNotEnabled
	}

	record, err := e.challengeStore.Get(ctx, challengeToken)
	if err != nil {
		switch {
		case errors.Is(err, errChallengeNotFound):
			return nil, ErrChallengeInvalid
		case errors.Is(err, errChallengeExpired):
			return nil, ErrChallengeExpired
		default:
			return nil, ErrBackendUnavailable
		}
	}

	account, err := e.provider.GetAccountByID(ctx, record.AccountID)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if account.AccountID == "" {
		// Account vanished between password check and confirmation.
		return nil, ErrChallengeInvalid
	}

	code = strings.TrimSpace(code)
	var verified bool
	var usedBackupCode bool

	if looksLikeBackupCode(code, e.config.SecondFactor.Digits) {
		verified, err = e.verifyBackupCode(ctx, account.AccountID, code)
		usedBackupCode = verified
	} else {
		verified, err = e.verifySecondFactorCode(ctx, account.AccountID, code)
	}
	if err != nil {
		return nil, err
	}

	if !verified {
		exceeded, recErr := e.challengeStore.RecordFailure(ctx, challengeToken, e.config.SecondFactor.ChallengeMaxAttempts)
		if recErr != nil {
			switch {
			case errors.Is(recErr, errChallengeNotFound):
				return nil, ErrChallengeInvalid
			case errors.Is(recErr, errChallengeExpired):
				return nil, ErrChallengeExpired
			default:
				return nil, ErrBackendUnavailable
			}
		}

		e.metrics.Inc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, account.AccountID, "", ErrSecondFactorInvalid, nil)

		if exceeded {
			return nil, ErrChallengeAttemptsExceeded
		}
		return nil, ErrSecondFactorInvalid
	}

	// Single-use gate: only the caller that actually deletes the
	// challenge record proceeds to a session.
	deleted, err := e.challengeStore.Delete(ctx, challengeToken)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if !deleted {
		return nil, ErrChallengeInvalid
	}

	e.metrics.Inc(MetricSecondFactorSuccess)
	e.emitAudit(ctx, auditEventSecondFactorSuccess, true, account.AccountID, "", nil, nil)

	result, err := e.openSession(ctx, account, auditEventLoginSuccess)
	if err != nil {
		return nil, err
	}

	if usedBackupCode {
		status, statusErr := e.backupCodeStatus(ctx, account.AccountID)
		if statusErr == nil {
			result.LowBackupCodes = status.Low
			result.BackupCodesRemaining = status.Remaining
		}
	}

	return result, nil
}

// verifySecondFactorCode checks a TOTP code and enforces replay
// protection: a code from a time step at or before the last accepted
// one is rejected even if it still sits inside the skew window.
func (e *Engine) verifySecondFactorCode(ctx context.Context, accountID, code string) (bool, error) {
	factor, err := e.provider.GetSecondFactor(ctx, accountID)
	if err != nil {
		return false, ErrBackendUnavailable
	}
	if factor == nil || !factor.Enabled || !factor.Verified {
		return false, ErrSecondFactorNotEnabled
	}

	ok, counter, err := e.totp.VerifyCode(factor.Secret, code, time.Now())
	if err != nil {
		return false, ErrBackendUnavailable
	}
	if !ok {
		return false, nil
	}
	if counter <= factor.LastUsedCounter {
		return false, nil
	}

	if err := e.provider.UpdateSecondFactorLastUsedCounter(ctx, accountID, counter); err != nil {
		log.Print("authcore: second factor counter update failed")
	}

	return true, nil
}

// verifyBackupCode hashes the submitted code and consumes it through
// the provider's conditional consume, which guarantees a code is
// honored at most once under concurrency.
func (e *Engine) verifyBackupCode(ctx context.Context, accountID, code string) (bool, error) {
	normalized := normalizeBackupCode(code)
	if normalized == "" {
		return false, nil
	}

	hash := sha256.Sum256([]byte(normalized))
	consumed, err := e.provider.ConsumeBackupCode(ctx, accountID, hash)
	if err != nil {
		return false, ErrBackendUnavailable
	}
	if !consumed {
		return false, nil
	}

	e.metrics.Inc(MetricBackupCodeConsumed)
	e.emitAudit(ctx, auditEventBackupCodeUsed, true, accountID, "", nil, nil)
	return true, nil
}

func looksLikeBackupCode(code string, totpDigits int) bool {
	if strings.Contains(code, "-") {
		return true
	}
	return len(code) != totpDigits || !isNumericString(code)
}

func normalizeBackupCode(code string) string {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
	if len(cleaned) != 10 {
		return ""
	}
	return cleaned
}

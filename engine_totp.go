package authcore

import (
	"context"
	"log"
	"time"
)

/*
====================================
SECOND-FACTOR LIFECYCLE
====================================
*/

// ProvisionSecondFactor generates a fresh TOTP secret for an account
// and stores it unverified. The secret and otpauth:// URI are returned
// exactly once; the factor only takes effect after
// [Engine.ActivateSecondFactor] proves the authenticator works.
func (e *Engine) ProvisionSecondFactor(ctx context.Context, accountID string) (*SecondFactorProvision, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.SecondFactor.Enabled {
		return nil, ErrSecondFactorNotEnabled
	}

	account, err := e.provider.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	factor, err := e.provider.GetSecondFactor(ctx, accountID)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if factor != nil && factor.Enabled && factor.Verified {
		return nil, ErrSecondFactorAlreadyEnabled
	}

	secret, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	if err := e.provider.SaveSecondFactor(ctx, accountID, secret); err != nil {
		return nil, ErrBackendUnavailable
	}

	if e.notifier != nil {
		// Enrollment notice is advisory; a mailer outage must not
		// block setup.
		if err := e.notifier.SendSecondFactorEnrollment(ctx, account.Email); err != nil {
			log.Print("authcore: second factor enrollment notice failed")
		}
	}

	e.emitAudit(ctx, auditEventSecondFactorProvisioned, true, accountID, "", nil, nil)

	return &SecondFactorProvision{
		SecretBase32: secretBase32,
		URI:          e.totp.ProvisionURI(secretBase32, account.Email),
	}, nil
}

// ActivateSecondFactor turns a provisioned factor on after the account
// owner proves possession with a live code. A full batch of backup
// codes is generated and returned in plaintext exactly once.
func (e *Engine) ActivateSecondFactor(ctx context.Context, accountID, code string) ([]string, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.SecondFactor.Enabled {
		return nil, ErrSecondFactorNotEnabled
	}

	factor, err := e.provider.GetSecondFactor(ctx, accountID)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if factor == nil || len(factor.Secret) == 0 {
		return nil, ErrSecondFactorNotEnabled
	}
	if factor.Enabled && factor.Verified {
		return nil, ErrSecondFactorAlreadyEnabled
	}

	ok, counter, err := e.totp.VerifyCode(factor.Secret, code, time.Now())
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if !ok {
		e.metrics.Inc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, "", ErrSecondFactorInvalid, nil)
		return nil, ErrSecondFactorInvalid
	}

	if err := e.provider.MarkSecondFactorVerified(ctx, accountID); err != nil {
		return nil, ErrBackendUnavailable
	}
	if err := e.provider.UpdateSecondFactorLastUsedCounter(ctx, accountID, counter); err != nil {
		log.Print("authcore: second factor counter update failed")
	}

	codes, err := e.issueBackupCodes(ctx, accountID)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventSecondFactorEnabled, true, accountID, "", nil, nil)
	return codes, nil
}

// DisableSecondFactor removes the factor and wipes the backup code
// batch. The caller must present a live TOTP code or a backup code;
// a password alone is not enough to strip the second factor.
func (e *Engine) DisableSecondFactor(ctx context.Context, accountID, code string) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	if !e.config.SecondFactor.Enabled {
		return ErrSecondFactorNotEnabled
	}

	factor, err := e.provider.GetSecondFactor(ctx, accountID)
	if err != nil {
		return ErrBackendUnavailable
	}
	if factor == nil || !factor.Enabled || !factor.Verified {
		return ErrSecondFactorNotEnabled
	}

	var verified bool
	if looksLikeBackupCode(code, e.config.SecondFactor.Digits) {
		verified, err = e.verifyBackupCode(ctx, accountID, code)
	} else {
		verified, err = e.verifySecondFactorCode(ctx, accountID, code)
	}
	if err != nil {
		return err
	}
	if !verified {
		e.metrics.Inc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, "", ErrSecondFactorInvalid, nil)
		return ErrSecondFactorInvalid
	}

	if err := e.provider.ClearSecondFactor(ctx, accountID); err != nil {
		return ErrBackendUnavailable
	}
	if err := e.provider.ReplaceBackupCodes(ctx, accountID, nil); err != nil {
		return ErrBackendUnavailable
	}

	// Removing a factor downgrades the account's security posture, so
	// every outstanding token is revoked with it.
	if _, err := e.provider.BumpTokenVersion(ctx, accountID); err != nil {
		return ErrBackendUnavailable
	}
	e.metrics.Inc(MetricTokenRevoked)

	e.emitAudit(ctx, auditEventSecondFactorDisabled, true, accountID, "", nil, nil)
	return nil
}

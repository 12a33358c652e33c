package authcore

import (
	"context"
	"crypto/sha256"
	"strconv"

	"github.com/cartstack/authcore/internal"
)

/*
====================================
BACKUP CODES
====================================
*/

// issueBackupCodes mints a full batch, stores only the hashes, and
// returns the plaintext codes. Replacing the batch invalidates every
// previously issued code, used or not.
func (e *Engine) issueBackupCodes(ctx context.Context, accountID string) ([]string, error) {
	count := e.config.SecondFactor.BackupCodeCount

	plaintext := make([]string, 0, count)
	records := make([]BackupCodeRecord, 0, count)
	for i := 0; i < count; i++ {
		code, err := internal.NewBackupCode()
		if err != nil {
			return nil, ErrBackendUnavailable
		}
		plaintext = append(plaintext, code)
		records = append(records, BackupCodeRecord{
			Hash: sha256.Sum256([]byte(normalizeBackupCode(code))),
		})
	}

	if err := e.provider.ReplaceBackupCodes(ctx, accountID, records); err != nil {
		return nil, ErrBackendUnavailable
	}

	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(count)}
	})

	return plaintext, nil
}

// RegenerateBackupCodes replaces the whole batch. The account owner
// must prove possession of the authenticator first; a stolen session
// alone cannot rotate codes.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, totpCode string) ([]string, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.SecondFactor.Enabled {
		return nil, ErrSecondFactorNotEnabled
	}

	verified, err := e.verifySecondFactorCode(ctx, accountID, totpCode)
	if err != nil {
		return nil, err
	}
	if !verified {
		e.metrics.Inc(MetricSecondFactorFailure)
		return nil, ErrSecondFactorInvalid
	}

	return e.issueBackupCodes(ctx, accountID)
}

// RemainingBackupCodes reports the remaining unused codes and whether
// the count has reached the low-water threshold.
func (e *Engine) RemainingBackupCodes(ctx context.Context, accountID string) (*BackupCodeStatus, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.backupCodeStatus(ctx, accountID)
}

func (e *Engine) backupCodeStatus(ctx context.Context, accountID string) (*BackupCodeStatus, error) {
	codes, err := e.provider.GetBackupCodes(ctx, accountID)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if len(codes) == 0 && e.config.SecondFactor.BackupCodeCount > 0 {
		return &BackupCodeStatus{
			Remaining: 0,
			Total:     e.config.SecondFactor.BackupCodeCount,
			Low:       true,
		}, nil
	}

	return &BackupCodeStatus{
		Remaining: len(codes),
		Total:     e.config.SecondFactor.BackupCodeCount,
		Low:       len(codes) <= e.config.SecondFactor.LowCodeThreshold,
	}, nil
}

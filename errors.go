package authcore

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the credential core.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is an exported constant or variable used by the credential core.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is an exported constant or variable used by the credential core.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountLocked is an exported constant or variable used by the credential core.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is an exported constant or variable used by the credential core.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountUnverified is an exported constant or variable used by the credential core.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrLoginRateLimited is an exported constant or variable used by the credential core.
	ErrLoginRateLimited = errors.New("login rate limited")

	// ErrTokenExpired is an exported constant or variable used by the credential core.
	ErrTokenExpired = errors.New("bearer token expired")
	// ErrTokenRevoked is an exported constant or variable used by the credential core.
	ErrTokenRevoked = errors.New("bearer token revoked")
	// ErrTokenMalformed is an exported constant or variable used by the credential core.
	ErrTokenMalformed = errors.New("bearer token malformed")
	// ErrSessionNotFound is an exported constant or variable used by the credential core.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSecondFactorRequired is an exported constant or variable used by the credential core.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrSecondFactorInvalid is an exported constant or variable used by the credential core.
	ErrSecondFactorInvalid = errors.New("second factor code invalid")
	// ErrSecondFactorNotEnabled is an exported constant or variable used by the credential core.
	ErrSecondFactorNotEnabled = errors.New("second factor not enabled")
	// ErrSecondFactorAlreadyEnabled is an exported constant or variable used by the credential core.
	ErrSecondFactorAlreadyEnabled = errors.New("second factor already enabled")
	// ErrSecondFactorRateLimited is an exported constant or variable used by the credential core.
	ErrSecondFactorRateLimited = errors.New("second factor attempts rate limited")
	// ErrChallengeInvalid is an exported constant or variable used by the credential core.
	ErrChallengeInvalid = errors.New("login challenge invalid")
	// ErrChallengeExpired is an exported constant or variable used by the credential core.
	ErrChallengeExpired = errors.New("login challenge expired")
	// ErrChallengeAttemptsExceeded is an exported constant or variable used by the credential core.
	ErrChallengeAttemptsExceeded = errors.New("login challenge attempts exceeded")
	// ErrBackupCodeInvalid is an exported constant or variable used by the credential core.
	ErrBackupCodeInvalid = errors.New("invalid backup code")
	// ErrBackupCodesNotConfigured is an exported constant or variable used by the credential core.
	ErrBackupCodesNotConfigured = errors.New("backup codes not configured")

	// ErrEphemeralTokenInvalid is an exported constant or variable used by the credential core.
	ErrEphemeralTokenInvalid = errors.New("one-shot token invalid")
	// ErrAntiForgeryMismatch is an exported constant or variable used by the credential core.
	ErrAntiForgeryMismatch = errors.New("anti-forgery token mismatch")

	// ErrPasswordPolicy is an exported constant or variable used by the credential core.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is an exported constant or variable used by the credential core.
	ErrPasswordReuse = errors.New("new password matches a recently used password")
	// ErrCompromisedPassword is an exported constant or variable used by the credential core.
	ErrCompromisedPassword = errors.New("password appears in a known breach corpus")
	// ErrResetInvalid is an exported constant or variable used by the credential core.
	ErrResetInvalid = errors.New("password reset challenge invalid")
	// ErrResetRateLimited is an exported constant or variable used by the credential core.
	ErrResetRateLimited = errors.New("password reset rate limited")
	// ErrVerificationInvalid is an exported constant or variable used by the credential core.
	ErrVerificationInvalid = errors.New("registration verification challenge invalid")
	// ErrVerificationRateLimited is an exported constant or variable used by the credential core.
	ErrVerificationRateLimited = errors.New("registration verification rate limited")

	// ErrFederatedDisabled is an exported constant or variable used by the credential core.
	ErrFederatedDisabled = errors.New("federated login disabled")
	// ErrFederatedProviderUnknown is an exported constant or variable used by the credential core.
	ErrFederatedProviderUnknown = errors.New("federated provider unknown")
	// ErrFederatedStateInvalid is an exported constant or variable used by the credential core.
	ErrFederatedStateInvalid = errors.New("federated state invalid")

	// ErrNotifierFailed is an exported constant or variable used by the credential core.
	ErrNotifierFailed = errors.New("notification delivery failed")
	// ErrBackendUnavailable is an exported constant or variable used by the credential core.
	ErrBackendUnavailable = errors.New("security backend unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the credential core.
	ErrEngineNotReady = errors.New("engine not initialized")
)

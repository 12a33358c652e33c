package authcore

import (
	"context"

	"golang.org/x/oauth2"
)

// AccountStatus represents the lifecycle state of an account.
type AccountStatus uint8

const (
	// AccountActive is an exported constant or variable used by the credential core.
	AccountActive AccountStatus = iota
	// AccountPendingVerification is an exported constant or variable used by the credential core.
	AccountPendingVerification
	// AccountDisabled is an exported constant or variable used by the credential core.
	AccountDisabled
	// AccountDeleted is an exported constant or variable used by the credential core.
	AccountDeleted
)

// Account is the full account record returned by [AccountProvider].
// It carries the credential hash, status, role, second-factor flag, and
// the token version counter that gates bearer-token revocation.
type Account struct {
	AccountID          string
	Email              string
	PasswordHash       string
	Status             AccountStatus
	Role               string
	TokenVersion       uint32
	SecondFactorActive bool
}

// SecondFactorRecord is retrieved from [AccountProvider.GetSecondFactor].
// It carries the TOTP secret, enrollment flags, and the last accepted
// time-step counter used for replay protection.
type SecondFactorRecord struct {
	Secret          []byte
	Enabled         bool
	Verified        bool
	LastUsedCounter int64
}

// BackupCodeRecord stores the SHA-256 hash of a single recovery code.
// The plaintext is never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// CreateAccountInput is the input for [AccountProvider.CreateAccount].
type CreateAccountInput struct {
	AccountID    string
	Email        string
	PasswordHash string
	Role         string
	Status       AccountStatus
	TokenVersion uint32
}

// AccountProvider is the primary interface that callers must implement
// to integrate the credential core with their account database. It
// covers credential lookup, account creation, password updates and
// history, token version advancement, second-factor secret management,
// and backup code storage.
//
// Account lookups report a missing account as a zero [Account] with a
// nil error; a non-nil error means the backend itself failed. The engine
// relies on that distinction to tell a revoked token from an outage.
//
// ConsumeBackupCode must be atomic: when two calls race on the same
// unused code, exactly one may observe consumed=true.
type AccountProvider interface {
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, accountID string) (Account, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error)
	UpdateAccountStatus(ctx context.Context, accountID string, status AccountStatus) (Account, error)

	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error
	PasswordHistory(ctx context.Context, accountID string, depth int) ([]string, error)
	PushPasswordHistory(ctx context.Context, accountID, hash string, depth int) error
	BumpTokenVersion(ctx context.Context, accountID string) (uint32, error)

	GetSecondFactor(ctx context.Context, accountID string) (*SecondFactorRecord, error)
	SaveSecondFactor(ctx context.Context, accountID string, secret []byte) error
	MarkSecondFactorVerified(ctx context.Context, accountID string) error
	ClearSecondFactor(ctx context.Context, accountID string) error
	UpdateSecondFactorLastUsedCounter(ctx context.Context, accountID string, counter int64) error

	GetBackupCodes(ctx context.Context, accountID string) ([]BackupCodeRecord, error)
	ReplaceBackupCodes(ctx context.Context, accountID string, codes []BackupCodeRecord) error
	ConsumeBackupCode(ctx context.Context, accountID string, codeHash [32]byte) (bool, error)
}

// Notifier delivers out-of-band codes to account owners. Implementations
// own transport and templating; the engine only supplies the code and
// its lifetime in seconds.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string, ttlSeconds int) error
	SendPasswordReset(ctx context.Context, email, code string, ttlSeconds int) error
	SendSecondFactorEnrollment(ctx context.Context, email string) error
}

// BreachChecker screens candidate passwords against a known-breach
// corpus. Count is the number of corpus occurrences; zero means clean.
// Implementations should fail fast; the engine treats checker errors as
// a clean result so an outage never blocks password changes.
type BreachChecker interface {
	Count(ctx context.Context, password string) (int, error)
}

// FederatedIdentity is the provider-asserted identity produced by a
// [FederatedIdentityResolver] after a successful code exchange.
type FederatedIdentity struct {
	Provider  string
	Subject   string
	Email     string
	Verified  bool
	ExpiresAt int64
}

// FederatedIdentityResolver turns a provider token into a
// [FederatedIdentity], typically by calling the provider's userinfo
// endpoint or decoding an ID token.
type FederatedIdentityResolver func(ctx context.Context, provider string, tok *oauth2.Token) (FederatedIdentity, error)

// RegisterResult is returned by [Engine.Register]. The verification code
// is delivered through the [Notifier], never returned to the caller.
type RegisterResult struct {
	AccountID string
	Email     string
	Status    AccountStatus
}

// LoginResult is returned by [Engine.Login], [Engine.ConfirmLogin], and
// [Engine.CompleteFederatedLogin]. When SecondFactorRequired is set,
// only ChallengeToken is populated and the caller must follow up with
// [Engine.ConfirmLogin].
type LoginResult struct {
	AccessToken string
	SessionID   string
	CSRFToken   string

	SecondFactorRequired bool
	ChallengeToken       string

	LowBackupCodes       bool
	BackupCodesRemaining int
}

// AccessResult is returned by [Engine.ValidateAccess] once the bearer
// token, the token version ledger, and the session have all passed.
type AccessResult struct {
	AccountID string
	SessionID string
	Role      string
}

// SecondFactorProvision holds the raw TOTP secret and otpauth:// URI
// returned by [Engine.ProvisionSecondFactor]. The secret is shown to the
// account owner exactly once.
type SecondFactorProvision struct {
	SecretBase32 string
	URI          string
}

// BackupCodeStatus reports how many recovery codes remain unused and
// whether the count has fallen to the low-water warning threshold.
type BackupCodeStatus struct {
	Remaining int
	Total     int
	Low       bool
}

// FederatedStart is returned by [Engine.StartFederatedLogin]. The caller
// redirects the browser to AuthURL; State round-trips through the
// provider and is verified on completion.
type FederatedStart struct {
	AuthURL string
	State   string
}

// FederatedExchangeResult is returned by [Engine.CompleteFederatedLogin].
// ExchangeToken is a one-shot handoff token the front-channel redeems
// through [Engine.RedeemFederatedExchange] to obtain the real session.
type FederatedExchangeResult struct {
	ExchangeToken string
	AccountID     string
}

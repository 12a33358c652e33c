package authcore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/cartstack/authcore/internal"
	internalmetrics "github.com/cartstack/authcore/internal/metrics"
	"github.com/cartstack/authcore/password"
	"github.com/cartstack/authcore/session"
	"github.com/cartstack/authcore/token"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config              Config
	sessionStore        *session.Store
	lockout             *lockoutLimiter
	challengeStore      *loginChallengeStore
	verificationStore   *codeChallengeStore
	resetStore          *codeChallengeStore
	verificationLimiter *flowLimiter
	resetLimiter        *flowLimiter
	audit               *auditDispatcher
	metrics             *internalmetrics.Registry
	passwordHash        *password.Hasher
	totp                *totpManager
	tokenManager        *token.Manager
	provider            AccountProvider
	notifier            Notifier
	breach              BreachChecker

	federatedProviders map[string]*oauth2.Config
	federatedResolver  FederatedIdentityResolver
	stateStore         *ephemeralStore[federatedState]
	exchangeStore      *ephemeralStore[federatedExchange]
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.stateStore != nil {
		e.stateStore.Close()
	}
	if e.exchangeStore != nil {
		e.exchangeStore.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates an email and password. When the account has a
// second factor enrolled, the result carries a short-lived challenge
// token instead of a session; the caller completes the login through
// [Engine.ConfirmLogin].
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}

	locked, err := e.lockout.Locked(ctx, email)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if locked {
		e.metrics.Inc(MetricLoginLockout)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "lockout_window",
			}
		})
		return nil, ErrAccountLocked
	}

	if pass == "" {
		return nil, e.failLogin(ctx, email, "", "empty_password")
	}

	account, err := e.provider.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if account.AccountID == "" {
		return nil, e.failLogin(ctx, email, "", "account_not_found")
	}

	ok, err := e.passwordHash.Verify(pass, account.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, email, account.AccountID, "password_mismatch")
	}

	if statusErr := accountStatusToError(account.Status, e.config.Verification.RequireForLogin); statusErr != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", statusErr, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "account_status",
			}
		})
		return nil, statusErr
	}

	if err := e.lockout.Reset(ctx, email); err != nil {
		log.Print("authcore: lockout reset failed after successful login")
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.passwordHash.NeedsUpgrade(account.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.passwordHash.Hash(pass); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := e.provider.UpdatePasswordHash(ctx, account.AccountID, upgradedHash); err != nil {
					log.Print("authcore: password hash upgrade update failed")
				}
			} else {
				log.Print("authcore: password hash upgrade generation failed")
			}
		}
	}
	pass = ""

	if e.config.SecondFactor.Enabled && account.SecondFactorActive {
		return e.startSecondFactorChallenge(ctx, account)
	}

	return e.openSession(ctx, account, auditEventLoginSuccess)
}

func (e *Engine) failLogin(ctx context.Context, email, accountID, reason string) error {
	out := ErrInvalidCredentials

	remaining, err := e.lockout.RecordFailure(ctx, email)
	if err != nil {
		if errors.Is(err, errLockoutTripped) {
			out = ErrAccountLocked
			e.metrics.Inc(MetricLoginLockout)
			e.emitAudit(ctx, auditEventLoginLockout, false, accountID, "", ErrAccountLocked, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		} else {
			log.Print("authcore: lockout counter update failed")
		}
	}

	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"email":              email,
			"reason":             reason,
			"remaining_attempts": strconv.Itoa(remaining),
		}
	})

	return out
}

func (e *Engine) startSecondFactorChallenge(ctx context.Context, account Account) (*LoginResult, error) {
	challengeID, err := internal.NewSessionID()
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	record := &loginChallenge{
		AccountID: account.AccountID,
		ExpiresAt: time.Now().Add(e.config.SecondFactor.ChallengeTTL).Unix(),
	}
	if err := e.challengeStore.Save(ctx, challengeID, record, e.config.SecondFactor.ChallengeTTL); err != nil {
		return nil, ErrBackendUnavailable
	}

	e.metrics.Inc(MetricSecondFactorRequired)
	e.emitAudit(ctx, auditEventSecondFactorRequired, true, account.AccountID, "", nil, nil)

	return &LoginResult{
		SecondFactorRequired: true,
		ChallengeToken:       challengeID,
	}, nil
}

// openSession creates the session, mints the bearer token stamped with
// the account's current token version, and derives the anti-forgery
// token. Shared by password login, second-factor confirmation, and
// federated exchange redemption.
func (e *Engine) openSession(ctx context.Context, account Account, auditEvent string) (*LoginResult, error) {
	sessionID, err := internal.NewSessionID()
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	now := time.Now()
	sess := &session.Session{
		SessionID:      sessionID,
		AccountID:      account.AccountID,
		Role:           account.Role,
		TokenVersion:   account.TokenVersion,
		Status:         uint8(account.Status),
		CreatedAt:      now.Unix(),
		LastSeenAt:     now.Unix(),
		AbsoluteExpiry: now.Add(e.config.Session.AbsoluteLifetime).Unix(),
	}
	if err := e.sessionStore.Save(ctx, sess, e.config.Session.IdleTimeout); err != nil {
		return nil, ErrBackendUnavailable
	}

	accessToken, err := e.tokenManager.Mint(account.AccountID, sessionID, account.TokenVersion, account.Role)
	if err != nil {
		_ = e.sessionStore.Delete(ctx, sessionID)
		return nil, ErrBackendUnavailable
	}

	e.metrics.Inc(MetricSessionCreated)
	e.metrics.Inc(MetricTokenMinted)
	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEvent, true, account.AccountID, sessionID, nil, nil)

	return &LoginResult{
		AccessToken: accessToken,
		SessionID:   sessionID,
		CSRFToken:   e.CSRFToken(sessionID),
	}, nil
}

/*
====================================
VALIDATE
====================================
*/

// ValidateAccess authorizes a bearer token for one request. Order of
// checks: token signature and expiry, then the account's current token
// version (revocation), then the session's idle and absolute windows,
// then account status. A version mismatch reports [ErrTokenRevoked],
// distinct from [ErrTokenExpired]. The version read goes to the account
// provider on every call; if that read fails the request is denied.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AccessResult, error) {
	if e == nil || e.tokenManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokenManager.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			e.metrics.Inc(MetricTokenExpired)
			return nil, ErrTokenExpired
		}
		e.metrics.Inc(MetricTokenMalformed)
		return nil, ErrTokenMalformed
	}

	account, err := e.provider.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		// Revocation fails closed: without the current version the
		// token cannot be proven live.
		return nil, ErrBackendUnavailable
	}
	if account.AccountID == "" {
		e.metrics.Inc(MetricTokenRevoked)
		return nil, ErrTokenRevoked
	}

	if claims.Version != account.TokenVersion {
		e.metrics.Inc(MetricTokenRevoked)
		return nil, ErrTokenRevoked
	}

	sess, err := e.sessionStore.Get(ctx, claims.SessionID, e.config.Session.IdleTimeout)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metrics.Inc(MetricSessionIdleExpired)
			return nil, ErrSessionNotFound
		}
		return nil, ErrBackendUnavailable
	}
	if sess.AccountID != claims.AccountID {
		e.metrics.Inc(MetricTokenMalformed)
		return nil, ErrTokenMalformed
	}

	if statusErr := accountStatusToError(account.Status, e.config.Verification.RequireForLogin); statusErr != nil {
		return nil, statusErr
	}

	return &AccessResult{
		AccountID: account.AccountID,
		SessionID: sess.SessionID,
		Role:      sess.Role,
	}, nil
}

/*
====================================
LOGOUT
====================================
*/

// Logout destroys a single session. The bearer token keeps verifying
// cryptographically until its expiry, but the session check fails from
// here on.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
		return ErrBackendUnavailable
	}

	e.emitAudit(ctx, auditEventLogoutSession, true, "", sessionID, nil, nil)
	return nil
}

// LogoutEverywhere advances the account's token version and destroys
// every indexed session. Tokens minted before the bump report
// [ErrTokenRevoked] on their next validation.
func (e *Engine) LogoutEverywhere(ctx context.Context, accountID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	if _, err := e.provider.BumpTokenVersion(ctx, accountID); err != nil {
		return ErrBackendUnavailable
	}
	if err := e.sessionStore.DeleteAllForAccount(ctx, accountID); err != nil {
		return ErrBackendUnavailable
	}

	e.metrics.Inc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, "", nil, nil)
	return nil
}

/*
====================================
ANTI-FORGERY
====================================
*/

// CSRFToken derives the double-submit anti-forgery token for a session.
// The token is deterministic for a session ID, so rotating the session
// rotates the token with it.
func (e *Engine) CSRFToken(sessionID string) string {
	if e == nil || !e.config.CSRF.Enabled {
		return ""
	}

	mac := hmac.New(sha256.New, e.config.CSRF.Secret)
	_, _ = mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyCSRF checks a submitted anti-forgery token against the session
// it claims to belong to.
func (e *Engine) VerifyCSRF(ctx context.Context, sessionID, submitted string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !e.config.CSRF.Enabled {
		return nil
	}

	expected := e.CSRFToken(sessionID)
	if expected == "" || !hmac.Equal([]byte(expected), []byte(submitted)) {
		e.metrics.Inc(MetricAntiForgeryRejected)
		e.emitAudit(ctx, auditEventAntiForgeryRejected, false, "", sessionID, ErrAntiForgeryMismatch, nil)
		return ErrAntiForgeryMismatch
	}
	return nil
}

func accountStatusToError(status AccountStatus, requireVerified bool) error {
	switch status {
	case AccountActive:
		return nil
	case AccountPendingVerification:
		if requireVerified {
			return ErrAccountUnverified
		}
		return nil
	case AccountDisabled, AccountDeleted:
		return ErrAccountInactive
	default:
		return ErrAccountInactive
	}
}

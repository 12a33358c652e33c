package authcore

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cartstack/authcore/internal"
)

/*
====================================
FEDERATED LOGIN
====================================
*/

// federatedState pins an in-flight authorization redirect to the
// provider it was issued for.
type federatedState struct {
	Provider string
	IssuedAt int64
}

// federatedExchange is the payload behind a one-shot handoff token:
// the back channel has already resolved the identity, the front channel
// redeems the token to collect the session.
type federatedExchange struct {
	AccountID string
	Provider  string
	Subject   string
}

// StartFederatedLogin issues the provider redirect URL with a one-shot
// state token. State lives in the process-local ephemeral store and is
// consumed exactly once on completion.
func (e *Engine) StartFederatedLogin(ctx context.Context, provider string) (*FederatedStart, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Federated.Enabled {
		return nil, ErrFederatedDisabled
	}

	oauthCfg, ok := e.federatedProviders[provider]
	if !ok {
		return nil, ErrFederatedProviderUnknown
	}

	state, err := internal.NewOpaqueToken(24)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	e.stateStore.Put(state, federatedState{
		Provider: provider,
		IssuedAt: time.Now().Unix(),
	})
	e.metrics.Inc(MetricEphemeralIssued)
	e.metrics.Inc(MetricFederatedLoginStarted)
	e.emitAudit(ctx, auditEventFederatedStart, true, "", "", nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})

	return &FederatedStart{
		AuthURL: oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline),
		State:   state,
	}, nil
}

// CompleteFederatedLogin handles the provider callback: it consumes the
// state token, exchanges the authorization code, resolves the asserted
// identity, maps it to a local account, and parks the result behind a
// one-shot exchange token for the front channel to redeem.
func (e *Engine) CompleteFederatedLogin(ctx context.Context, provider, state, authCode string) (*FederatedExchangeResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Federated.Enabled {
		return nil, ErrFederatedDisabled
	}

	oauthCfg, ok := e.federatedProviders[provider]
	if !ok {
		return nil, ErrFederatedProviderUnknown
	}

	pending, ok := e.stateStore.Redeem(state)
	if !ok || pending.Provider != provider {
		e.metrics.Inc(MetricEphemeralRejected)
		e.emitAudit(ctx, auditEventFederatedComplete, false, "", "", ErrFederatedStateInvalid, func() map[string]string {
			return map[string]string{"provider": provider}
		})
		return nil, ErrFederatedStateInvalid
	}
	e.metrics.Inc(MetricEphemeralRedeemed)

	providerToken, err := oauthCfg.Exchange(ctx, authCode)
	if err != nil {
		e.emitAudit(ctx, auditEventFederatedComplete, false, "", "", ErrFederatedStateInvalid, func() map[string]string {
			return map[string]string{"provider": provider, "reason": "code_exchange"}
		})
		return nil, ErrFederatedStateInvalid
	}

	identity, err := e.federatedResolver(ctx, provider, providerToken)
	if err != nil || identity.Subject == "" {
		e.emitAudit(ctx, auditEventFederatedComplete, false, "", "", ErrFederatedStateInvalid, func() map[string]string {
			return map[string]string{"provider": provider, "reason": "identity_resolution"}
		})
		return nil, ErrFederatedStateInvalid
	}

	account, err := e.resolveFederatedAccount(ctx, identity)
	if err != nil {
		return nil, err
	}

	exchangeToken, err := internal.NewOpaqueToken(24)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	e.exchangeStore.Put(exchangeToken, federatedExchange{
		AccountID: account.AccountID,
		Provider:  provider,
		Subject:   identity.Subject,
	})
	e.metrics.Inc(MetricEphemeralIssued)
	e.metrics.Inc(MetricFederatedLoginCompleted)
	e.emitAudit(ctx, auditEventFederatedComplete, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})

	return &FederatedExchangeResult{
		ExchangeToken: exchangeToken,
		AccountID:     account.AccountID,
	}, nil
}

// resolveFederatedAccount maps a provider identity to a local account,
// creating one on first login. Provider-verified emails activate the
// account immediately; unverified ones go through the normal pending
// flow.
func (e *Engine) resolveFederatedAccount(ctx context.Context, identity FederatedIdentity) (Account, error) {
	account, err := e.provider.GetAccountByEmail(ctx, identity.Email)
	if err == nil && account.AccountID != "" {
		if statusErr := accountStatusToError(account.Status, e.config.Verification.RequireForLogin); statusErr != nil {
			return Account{}, statusErr
		}
		return account, nil
	}

	status := AccountPendingVerification
	if identity.Verified || !e.config.Verification.Enabled {
		status = AccountActive
	}

	created, err := e.provider.CreateAccount(ctx, CreateAccountInput{
		AccountID:    uuid.NewString(),
		Email:        identity.Email,
		PasswordHash: "",
		Role:         "",
		Status:       status,
		TokenVersion: 1,
	})
	if err != nil {
		return Account{}, ErrBackendUnavailable
	}

	if status == AccountPendingVerification && e.notifier != nil {
		if err := e.sendVerificationCode(ctx, created); err != nil {
			log.Print("authcore: verification code for federated account failed")
		}
	}

	return created, nil
}

// RedeemFederatedExchange swaps a one-shot exchange token for a real
// session. Any token that was never issued, already redeemed, or
// expired yields the same [ErrEphemeralTokenInvalid].
func (e *Engine) RedeemFederatedExchange(ctx context.Context, exchangeToken string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Federated.Enabled {
		return nil, ErrFederatedDisabled
	}

	pending, ok := e.exchangeStore.Redeem(exchangeToken)
	if !ok {
		e.metrics.Inc(MetricEphemeralRejected)
		e.emitAudit(ctx, auditEventFederatedRedeem, false, "", "", ErrEphemeralTokenInvalid, nil)
		return nil, ErrEphemeralTokenInvalid
	}
	e.metrics.Inc(MetricEphemeralRedeemed)
	e.metrics.Inc(MetricFederatedExchangeRedeemed)

	account, err := e.provider.GetAccountByID(ctx, pending.AccountID)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if statusErr := accountStatusToError(account.Status, e.config.Verification.RequireForLogin); statusErr != nil {
		return nil, statusErr
	}

	return e.openSession(ctx, account, auditEventFederatedRedeem)
}

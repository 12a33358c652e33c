package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/cartstack/authcore"
	"github.com/cartstack/authcore/middleware"
	"github.com/cartstack/authcore/password"
)

// staticProvider backs the engine with a single in-memory account. Only
// the lookups the login and validation paths touch are implemented.
type staticProvider struct {
	account authcore.Account
}

func (p *staticProvider) GetAccountByEmail(_ context.Context, email string) (authcore.Account, error) {
	if email == p.account.Email {
		return p.account, nil
	}
	return authcore.Account{}, nil
}

func (p *staticProvider) GetAccountByID(_ context.Context, accountID string) (authcore.Account, error) {
	if accountID == p.account.AccountID {
		return p.account, nil
	}
	return authcore.Account{}, nil
}

func (p *staticProvider) CreateAccount(context.Context, authcore.CreateAccountInput) (authcore.Account, error) {
	return authcore.Account{}, errors.New("not supported")
}

func (p *staticProvider) UpdateAccountStatus(context.Context, string, authcore.AccountStatus) (authcore.Account, error) {
	return authcore.Account{}, errors.New("not supported")
}

func (p *staticProvider) UpdatePasswordHash(context.Context, string, string) error {
	return errors.New("not supported")
}

func (p *staticProvider) PasswordHistory(context.Context, string, int) ([]string, error) {
	return nil, nil
}

func (p *staticProvider) PushPasswordHistory(context.Context, string, string, int) error {
	return nil
}

func (p *staticProvider) BumpTokenVersion(context.Context, string) (uint32, error) {
	return 0, errors.New("not supported")
}

func (p *staticProvider) GetSecondFactor(context.Context, string) (*authcore.SecondFactorRecord, error) {
	return nil, nil
}

func (p *staticProvider) SaveSecondFactor(context.Context, string, []byte) error {
	return errors.New("not supported")
}

func (p *staticProvider) MarkSecondFactorVerified(context.Context, string) error {
	return errors.New("not supported")
}

func (p *staticProvider) ClearSecondFactor(context.Context, string) error {
	return errors.New("not supported")
}

func (p *staticProvider) UpdateSecondFactorLastUsedCounter(context.Context, string, int64) error {
	return errors.New("not supported")
}

func (p *staticProvider) GetBackupCodes(context.Context, string) ([]authcore.BackupCodeRecord, error) {
	return nil, nil
}

func (p *staticProvider) ReplaceBackupCodes(context.Context, string, []authcore.BackupCodeRecord) error {
	return errors.New("not supported")
}

func (p *staticProvider) ConsumeBackupCode(context.Context, string, [32]byte) (bool, error) {
	return false, nil
}

func testConfig() authcore.Config {
	return authcore.Config{
		Token: authcore.TokenConfig{
			AccessTTL:     5 * time.Minute,
			SigningMethod: "hs256",
			PrivateKey:    []byte("test-secret-test-secret-test-sec"),
			Issuer:        "authcore-test",
		},
		Session: authcore.SessionConfig{
			RedisPrefix:      "ac",
			IdleTimeout:      2 * time.Minute,
			AbsoluteLifetime: 24 * time.Hour,
		},
		Password: authcore.PasswordConfig{
			Memory:      8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		Lockout: authcore.LockoutConfig{
			MaxAttempts:  3,
			Window:       time.Minute,
			LockDuration: time.Minute,
		},
		CSRF: authcore.CSRFConfig{
			Enabled: true,
			Secret:  []byte("csrf-secret-csrf-secret-csrf-sec"),
		},
		Metrics: authcore.MetricsConfig{Enabled: true},
	}
}

const (
	testEmail    = "shopper@example.com"
	testPassword = "correct horse battery staple"
)

func newGuardedEngine(t *testing.T) (*authcore.Engine, *authcore.LoginResult) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	provider := &staticProvider{account: authcore.Account{
		AccountID:    "acct-1",
		Email:        testEmail,
		PasswordHash: hash,
		Status:       authcore.AccountActive,
		Role:         "member",
		TokenVersion: 1,
	}}

	engine, err := authcore.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithAccountProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	res, err := engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return engine, res
}

func TestGuardRejectsMissingOrBadBearer(t *testing.T) {
	engine, _ := newGuardedEngine(t)

	handler := middleware.Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without credentials")
	}))

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestGuardInjectsAccessResult(t *testing.T) {
	engine, login := newGuardedEngine(t)

	handler := middleware.Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := middleware.AccessResultFromContext(r.Context())
		if !ok {
			t.Fatal("access result missing from context")
		}
		if res.AccountID != "acct-1" || res.SessionID != login.SessionID {
			t.Fatalf("unexpected access result: %+v", res)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestGuardRejectsLoggedOutSession(t *testing.T) {
	engine, login := newGuardedEngine(t)

	if err := engine.Logout(context.Background(), login.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	handler := middleware.Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached after logout")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCSRFSafeMethodsPass(t *testing.T) {
	engine, _ := newGuardedEngine(t)

	handler := middleware.CSRF(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		req := httptest.NewRequest(method, "/catalog", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("method %s: expected 204, got %d", method, rec.Code)
		}
	}
}

func TestCSRFExemptPathPasses(t *testing.T) {
	engine, _ := newGuardedEngine(t)

	handler := middleware.CSRF(engine, "/auth/federated/redeem")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/federated/redeem", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on exempt path, got %d", rec.Code)
	}
}

func TestCSRFRequiresValidatedSession(t *testing.T) {
	engine, _ := newGuardedEngine(t)

	handler := middleware.CSRF(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without a validated session")
	}))

	req := httptest.NewRequest(http.MethodPost, "/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCSRFRejectsBadToken(t *testing.T) {
	engine, login := newGuardedEngine(t)

	chain := middleware.Guard(engine)(middleware.CSRF(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with a forged anti-forgery token")
	})))

	req := httptest.NewRequest(http.MethodPost, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	req.Header.Set(middleware.CSRFHeader, "forged")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCSRFAcceptsSessionToken(t *testing.T) {
	engine, login := newGuardedEngine(t)

	chain := middleware.Guard(engine)(middleware.CSRF(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPost, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	req.Header.Set(middleware.CSRFHeader, login.CSRFToken)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

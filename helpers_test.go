package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("test-secret-test-secret-test-sec")
	cfg.CSRF.Secret = []byte("csrf-secret-csrf-secret-csrf-sec")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Lockout.MaxAttempts = 3
	cfg.Lockout.Window = time.Minute
	cfg.Lockout.LockDuration = time.Minute
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, p AccountProvider, n Notifier) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	if n == nil {
		n = newMemoryNotifier()
	}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(p).
		WithNotifier(n).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, mr, func() {
		engine.Close()
		mr.Close()
	}
}

// memoryProvider is an in-memory AccountProvider fake. ConsumeBackupCode
// holds the mutex across the find-and-mark, matching the atomicity the
// interface demands of real implementations.
type memoryProvider struct {
	mu       sync.Mutex
	accounts map[string]*Account // by id
	byEmail  map[string]string
	history  map[string][]string
	factors  map[string]*SecondFactorRecord
	backup   map[string][]BackupCodeRecord
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		history:  make(map[string][]string),
		factors:  make(map[string]*SecondFactorRecord),
		backup:   make(map[string][]BackupCodeRecord),
	}
}

var errMemoryNotFound = errors.New("not found")

func (p *memoryProvider) GetAccountByEmail(_ context.Context, email string) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byEmail[email]
	if !ok {
		return Account{}, nil
	}
	return *p.accounts[id], nil
}

func (p *memoryProvider) GetAccountByID(_ context.Context, accountID string) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[accountID]
	if !ok {
		return Account{}, nil
	}
	return *acct, nil
}

func (p *memoryProvider) CreateAccount(_ context.Context, input CreateAccountInput) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[input.Email]; exists {
		return Account{}, errors.New("duplicate email")
	}
	acct := &Account{
		AccountID:    input.AccountID,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Status:       input.Status,
		Role:         input.Role,
		TokenVersion: input.TokenVersion,
	}
	p.accounts[acct.AccountID] = acct
	p.byEmail[acct.Email] = acct.AccountID
	return *acct, nil
}

func (p *memoryProvider) UpdateAccountStatus(_ context.Context, accountID string, status AccountStatus) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[accountID]
	if !ok {
		return Account{}, errMemoryNotFound
	}
	acct.Status = status
	return *acct, nil
}

func (p *memoryProvider) UpdatePasswordHash(_ context.Context, accountID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[accountID]
	if !ok {
		return errMemoryNotFound
	}
	acct.PasswordHash = newHash
	return nil
}

func (p *memoryProvider) PasswordHistory(_ context.Context, accountID string, depth int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.history[accountID]
	if len(h) > depth {
		h = h[len(h)-depth:]
	}
	out := make([]string, len(h))
	copy(out, h)
	return out, nil
}

func (p *memoryProvider) PushPasswordHistory(_ context.Context, accountID, hash string, depth int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := append(p.history[accountID], hash)
	if len(h) > depth {
		h = h[len(h)-depth:]
	}
	p.history[accountID] = h
	return nil
}

func (p *memoryProvider) BumpTokenVersion(_ context.Context, accountID string) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[accountID]
	if !ok {
		return 0, errMemoryNotFound
	}
	acct.TokenVersion++
	return acct.TokenVersion, nil
}

func (p *memoryProvider) GetSecondFactor(_ context.Context, accountID string) (*SecondFactorRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.factors[accountID]
	if !ok {
		return nil, nil
	}
	cp := *f
	cp.Secret = append([]byte(nil), f.Secret...)
	return &cp, nil
}

func (p *memoryProvider) SaveSecondFactor(_ context.Context, accountID string, secret []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factors[accountID] = &SecondFactorRecord{
		Secret:  append([]byte(nil), secret...),
		Enabled: true,
	}
	return nil
}

func (p *memoryProvider) MarkSecondFactorVerified(_ context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.factors[accountID]
	if !ok {
		return errMemoryNotFound
	}
	f.Verified = true
	if acct, ok := p.accounts[accountID]; ok {
		acct.SecondFactorActive = true
	}
	return nil
}

func (p *memoryProvider) ClearSecondFactor(_ context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.factors, accountID)
	if acct, ok := p.accounts[accountID]; ok {
		acct.SecondFactorActive = false
	}
	return nil
}

func (p *memoryProvider) UpdateSecondFactorLastUsedCounter(_ context.Context, accountID string, counter int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.factors[accountID]
	if !ok {
		return errMemoryNotFound
	}
	f.LastUsedCounter = counter
	return nil
}

func (p *memoryProvider) GetBackupCodes(_ context.Context, accountID string) ([]BackupCodeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]BackupCodeRecord, len(p.backup[accountID]))
	copy(out, p.backup[accountID])
	return out, nil
}

func (p *memoryProvider) ReplaceBackupCodes(_ context.Context, accountID string, codes []BackupCodeRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backup[accountID] = append([]BackupCodeRecord(nil), codes...)
	return nil
}

func (p *memoryProvider) ConsumeBackupCode(_ context.Context, accountID string, codeHash [32]byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	codes := p.backup[accountID]
	for i, rec := range codes {
		if rec.Hash == codeHash {
			p.backup[accountID] = append(codes[:i], codes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// addAccount seeds an active account with the given password hashed by
// a throwaway hasher matching the test config.
func (p *memoryProvider) addAccount(t *testing.T, e *Engine, id, email, pass string) {
	t.Helper()

	hash, err := e.passwordHash.Hash(pass)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[id] = &Account{
		AccountID:    id,
		Email:        email,
		PasswordHash: hash,
		Status:       AccountActive,
		Role:         "member",
		TokenVersion: 1,
	}
	p.byEmail[email] = id
	p.history[id] = []string{hash}
}

// memoryNotifier records deliveries for assertions.
type memoryNotifier struct {
	mu            sync.Mutex
	verifications map[string]string
	resets        map[string]string
	enrollments   int
	fail          bool
}

func newMemoryNotifier() *memoryNotifier {
	return &memoryNotifier{
		verifications: make(map[string]string),
		resets:        make(map[string]string),
	}
}

func (n *memoryNotifier) SendVerificationCode(_ context.Context, email, code string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("mailer down")
	}
	n.verifications[email] = code
	return nil
}

func (n *memoryNotifier) SendPasswordReset(_ context.Context, email, code string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("mailer down")
	}
	n.resets[email] = code
	return nil
}

func (n *memoryNotifier) SendSecondFactorEnrollment(_ context.Context, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enrollments++
	return nil
}

func (n *memoryNotifier) verificationCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verifications[email]
}

func (n *memoryNotifier) resetCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets[email]
}

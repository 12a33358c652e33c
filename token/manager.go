package token

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired is an exported constant or variable used by the credential core.
var ErrExpired = errors.New("bearer token expired")

// ErrMalformed is an exported constant or variable used by the credential core.
var ErrMalformed = errors.New("bearer token malformed")

// SigningMethod defines a public type used by authcore APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the credential core.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the credential core.
	MethodHS256 SigningMethod = "hs256"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Manager mints and parses bearer tokens. The token version claim is
// stamped at mint time; comparing it against the account's current value
// is the caller's responsibility.
type Manager struct {
	config     Config
	signKey    any
	verifyKey  any
	signMethod jwt.SigningMethod
}

// AccessClaims defines a public type used by authcore APIs.
//
// AccessClaims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccessClaims struct {
	AccountID string `json:"aid"`
	SessionID string `json:"sid"`
	Version   uint32 `json:"ver"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		m.signMethod = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.signMethod = jwt.SigningMethodEdDSA
		m.signKey = priv
		m.verifyKey = pub
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// Mint describes the mint operation and its observable behavior.
//
// Mint may return an error when input validation, dependency calls, or security checks fail.
// Mint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Mint(accountID, sessionID string, version uint32, role string) (string, error) {
	if accountID == "" || sessionID == "" {
		return "", errors.New("mint requires account and session identifiers")
	}

	now := time.Now()
	claims := AccessClaims{
		AccountID: accountID,
		SessionID: sessionID,
		Version:   version,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}

	return jwt.NewWithClaims(m.signMethod, claims).SignedString(m.signKey)
}

// Parse validates the signature and time claims and returns the decoded
// claims. Expiry is reported as [ErrExpired]; every other failure is
// reported as [ErrMalformed] so callers never leak parse detail.
func (m *Manager) Parse(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.verifyKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if !parsed.Valid || claims.AccountID == "" || claims.SessionID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

func parseEdPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("invalid ed25519 private key size")
	}
}

func parseEdPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key size")
	}
	return ed25519.PublicKey(raw), nil
}

package session

// Session defines a public type used by authcore APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// The session enforces the idle cutoff and absolute lifetime; the bearer
// token independently enforces its own expiry and version-based
// revocation. Both must pass for a request to be authorized.
type Session struct {
	SessionID string
	AccountID string

	Role string

	TokenVersion uint32
	Status       uint8

	CreatedAt      int64
	LastSeenAt     int64
	AbsoluteExpiry int64
}

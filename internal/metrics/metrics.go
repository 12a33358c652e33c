// Package metrics provides lock-free counters for the hot paths of the
// credential core. Counters are plain atomic uint64 slots addressed by a
// fixed [MetricID]; there is no label cardinality and no allocation on
// the increment path. Export to an external pipeline is handled by the
// metrics/export packages.
package metrics

import "sync/atomic"

// MetricID indexes a single counter slot. IDs are dense and stable so a
// snapshot can be walked positionally.
type MetricID int

const (
	LoginSuccess MetricID = iota
	LoginFailure
	LoginLockout
	SecondFactorRequired
	SecondFactorSuccess
	SecondFactorFailure
	BackupCodeConsumed
	TokenMinted
	TokenExpired
	TokenRevoked
	TokenMalformed
	SessionCreated
	SessionIdleExpired
	SessionAbsoluteExpired
	EphemeralIssued
	EphemeralRedeemed
	EphemeralRejected
	EphemeralSwept
	AntiForgeryRejected
	PasswordChanged
	PasswordResetRequested
	PasswordResetCompleted
	BreachCheckHit
	BreachCheckUnavailable
	FederatedLoginStarted
	FederatedLoginCompleted
	FederatedExchangeRedeemed
	AuditEventsDropped

	metricCount // must be last
)

var names = [metricCount]string{
	LoginSuccess:              "login_success_total",
	LoginFailure:              "login_failure_total",
	LoginLockout:              "login_lockout_total",
	SecondFactorRequired:      "second_factor_required_total",
	SecondFactorSuccess:       "second_factor_success_total",
	SecondFactorFailure:       "second_factor_failure_total",
	BackupCodeConsumed:        "backup_code_consumed_total",
	TokenMinted:               "token_minted_total",
	TokenExpired:              "token_expired_total",
	TokenRevoked:              "token_revoked_total",
	TokenMalformed:            "token_malformed_total",
	SessionCreated:            "session_created_total",
	SessionIdleExpired:        "session_idle_expired_total",
	SessionAbsoluteExpired:    "session_absolute_expired_total",
	EphemeralIssued:           "ephemeral_issued_total",
	EphemeralRedeemed:         "ephemeral_redeemed_total",
	EphemeralRejected:         "ephemeral_rejected_total",
	EphemeralSwept:            "ephemeral_swept_total",
	AntiForgeryRejected:       "anti_forgery_rejected_total",
	PasswordChanged:           "password_changed_total",
	PasswordResetRequested:    "password_reset_requested_total",
	PasswordResetCompleted:    "password_reset_completed_total",
	BreachCheckHit:            "breach_check_hit_total",
	BreachCheckUnavailable:    "breach_check_unavailable_total",
	FederatedLoginStarted:     "federated_login_started_total",
	FederatedLoginCompleted:   "federated_login_completed_total",
	FederatedExchangeRedeemed: "federated_exchange_redeemed_total",
	AuditEventsDropped:        "audit_events_dropped_total",
}

// Name returns the stable export name for a metric.
func (id MetricID) Name() string {
	if id < 0 || id >= metricCount {
		return "unknown"
	}
	return names[id]
}

// Registry holds one atomic counter per [MetricID].
type Registry struct {
	counters [metricCount]atomic.Uint64
}

// NewRegistry creates a zeroed [Registry].
func NewRegistry() *Registry {
	return &Registry{}
}

// Inc increments a counter by one. Nil registries and out-of-range IDs
// are ignored so a disabled metrics pipeline costs a single branch.
func (r *Registry) Inc(id MetricID) {
	if r == nil || id < 0 || id >= metricCount {
		return
	}
	r.counters[id].Add(1)
}

// Add increments a counter by n. Nil registries and out-of-range IDs
// are ignored.
func (r *Registry) Add(id MetricID, n uint64) {
	if r == nil || id < 0 || id >= metricCount {
		return
	}
	r.counters[id].Add(n)
}

// Get returns the current value of a single counter.
func (r *Registry) Get(id MetricID) uint64 {
	if r == nil || id < 0 || id >= metricCount {
		return 0
	}
	return r.counters[id].Load()
}

// Snapshot returns a point-in-time copy of every counter keyed by export
// name. Each counter is read atomically; the snapshot as a whole is not
// a consistent cut, which is fine for monotonic counters.
func (r *Registry) Snapshot() map[string]uint64 {
	if r == nil {
		return nil
	}
	out := make(map[string]uint64, metricCount)
	for id := MetricID(0); id < metricCount; id++ {
		out[names[id]] = r.counters[id].Load()
	}
	return out
}

// Walk calls fn for every counter in ID order.
func (r *Registry) Walk(fn func(id MetricID, name string, value uint64)) {
	if r == nil {
		return
	}
	for id := MetricID(0); id < metricCount; id++ {
		fn(id, names[id], r.counters[id].Load())
	}
}

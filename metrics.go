package authcore

import internalmetrics "github.com/cartstack/authcore/internal/metrics"

// MetricID identifies a specific counter in the in-process metrics
// registry.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess is an exported constant or variable used by the credential core.
	MetricLoginSuccess = internalmetrics.LoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the credential core.
	MetricLoginFailure = internalmetrics.LoginFailure
	// MetricLoginLockout is an exported constant or variable used by the credential core.
	MetricLoginLockout = internalmetrics.LoginLockout
	// MetricSecondFactorRequired is an exported constant or variable used by the credential core.
	MetricSecondFactorRequired = internalmetrics.SecondFactorRequired
	// MetricSecondFactorSuccess is an exported constant or variable used by the credential core.
	MetricSecondFactorSuccess = internalmetrics.SecondFactorSuccess
	// MetricSecondFactorFailure is an exported constant or variable used by the credential core.
	MetricSecondFactorFailure = internalmetrics.SecondFactorFailure
	// MetricBackupCodeConsumed is an exported constant or variable used by the credential core.
	MetricBackupCodeConsumed = internalmetrics.BackupCodeConsumed
	// MetricTokenMinted is an exported constant or variable used by the credential core.
	MetricTokenMinted = internalmetrics.TokenMinted
	// MetricTokenExpired is an exported constant or variable used by the credential core.
	MetricTokenExpired = internalmetrics.TokenExpired
	// MetricTokenRevoked is an exported constant or variable used by the credential core.
	MetricTokenRevoked = internalmetrics.TokenRevoked
	// MetricTokenMalformed is an exported constant or variable used by the credential core.
	MetricTokenMalformed = internalmetrics.TokenMalformed
	// MetricSessionCreated is an exported constant or variable used by the credential core.
	MetricSessionCreated = internalmetrics.SessionCreated
	// MetricSessionIdleExpired is an exported constant or variable used by the credential core.
	MetricSessionIdleExpired = internalmetrics.SessionIdleExpired
	// MetricSessionAbsoluteExpired is an exported constant or variable used by the credential core.
	MetricSessionAbsoluteExpired = internalmetrics.SessionAbsoluteExpired
	// MetricEphemeralIssued is an exported constant or variable used by the credential core.
	MetricEphemeralIssued = internalmetrics.EphemeralIssued
	// MetricEphemeralRedeemed is an exported constant or variable used by the credential core.
	MetricEphemeralRedeemed = internalmetrics.EphemeralRedeemed
	// MetricEphemeralRejected is an exported constant or variable used by the credential core.
	MetricEphemeralRejected = internalmetrics.EphemeralRejected
	// MetricEphemeralSwept is an exported constant or variable used by the credential core.
	MetricEphemeralSwept = internalmetrics.EphemeralSwept
	// MetricAntiForgeryRejected is an exported constant or variable used by the credential core.
	MetricAntiForgeryRejected = internalmetrics.AntiForgeryRejected
	// MetricPasswordChanged is an exported constant or variable used by the credential core.
	MetricPasswordChanged = internalmetrics.PasswordChanged
	// MetricPasswordResetRequested is an exported constant or variable used by the credential core.
	MetricPasswordResetRequested = internalmetrics.PasswordResetRequested
	// MetricPasswordResetCompleted is an exported constant or variable used by the credential core.
	MetricPasswordResetCompleted = internalmetrics.PasswordResetCompleted
	// MetricBreachCheckHit is an exported constant or variable used by the credential core.
	MetricBreachCheckHit = internalmetrics.BreachCheckHit
	// MetricBreachCheckUnavailable is an exported constant or variable used by the credential core.
	MetricBreachCheckUnavailable = internalmetrics.BreachCheckUnavailable
	// MetricFederatedLoginStarted is an exported constant or variable used by the credential core.
	MetricFederatedLoginStarted = internalmetrics.FederatedLoginStarted
	// MetricFederatedLoginCompleted is an exported constant or variable used by the credential core.
	MetricFederatedLoginCompleted = internalmetrics.FederatedLoginCompleted
	// MetricFederatedExchangeRedeemed is an exported constant or variable used by the credential core.
	MetricFederatedExchangeRedeemed = internalmetrics.FederatedExchangeRedeemed
	// MetricAuditEventsDropped is an exported constant or variable used by the credential core.
	MetricAuditEventsDropped = internalmetrics.AuditEventsDropped
)

// MetricsRegistry holds the engine's atomic counters.
type MetricsRegistry = internalmetrics.Registry

// MetricsSnapshot reports a point-in-time copy of every counter keyed
// by export name.
func (e *Engine) MetricsSnapshot() map[string]uint64 {
	if e == nil || e.metrics == nil {
		return nil
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counter registry, primarily for export
// pipelines that need to observe counters on a pull cycle.
func (e *Engine) Metrics() *MetricsRegistry {
	if e == nil {
		return nil
	}
	return e.metrics
}

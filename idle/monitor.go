// Package idle tracks client-side inactivity against the server's idle
// window. The server remains authoritative; this monitor exists so a
// client can warn the user shortly before the cutoff and react locally
// when it passes, instead of discovering the expiry on the next failed
// request.
package idle

import (
	"errors"
	"sync"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// IdleTimeout mirrors the server's idle window.
	IdleTimeout time.Duration
	// WarningLead is how long before the cutoff OnWarning fires.
	WarningLead time.Duration

	// OnWarning fires once per idle period when the remaining time
	// drops to WarningLead. A Touch re-arms it.
	OnWarning func()
	// OnExpire fires once when the idle window fully lapses.
	OnExpire func()
}

// Monitor is the client half of the inactivity tracker. Every call to
// Touch pushes the deadline out by the idle window. Callbacks fire from
// deferred timers backed by a coarse wall-clock re-check: deferred
// timers stall when the process is suspended or backgrounded, so a
// ticker goroutine re-evaluates elapsed time against the cutoff and
// delivers any callback the timers missed.
type Monitor struct {
	cfg Config

	mu       sync.Mutex
	lastSeen time.Time
	warned   bool
	expired  bool

	warnTimer   *time.Timer
	expireTimer *time.Timer
	done        chan struct{}
	closed      bool
}

// NewMonitor describes the newmonitor operation and its observable behavior.
//
// NewMonitor may return an error when input validation, dependency calls, or security checks fail.
// NewMonitor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.IdleTimeout <= 0 {
		return nil, errors.New("idle timeout must be > 0")
	}
	if cfg.WarningLead < 0 || cfg.WarningLead >= cfg.IdleTimeout {
		return nil, errors.New("warning lead must be >= 0 and < idle timeout")
	}

	m := &Monitor{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	m.Touch()
	go m.watch(recheckInterval(cfg.IdleTimeout))
	return m, nil
}

// recheckInterval keeps the wall-clock backstop coarse relative to the
// idle window without letting short test windows starve it.
func recheckInterval(idle time.Duration) time.Duration {
	interval := idle / 8
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}
	return interval
}

func (m *Monitor) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.recheck()
		}
	}
}

// recheck compares elapsed wall-clock time against the cutoff and fires
// whatever the deferred timers failed to deliver. fireWarning and
// fireExpire are one-shot per idle period, so overlap with a live timer
// is harmless.
func (m *Monitor) recheck() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	elapsed := time.Since(m.lastSeen)
	cutoff := m.cfg.IdleTimeout
	lead := m.cfg.WarningLead
	m.mu.Unlock()

	if elapsed >= cutoff {
		m.fireExpire()
		return
	}
	if lead > 0 && elapsed >= cutoff-lead {
		m.fireWarning()
	}
}

// Touch records user activity: the idle deadline moves out by the full
// window and any pending warning is re-armed. Touching after expiry
// restarts the monitor; the caller is expected to have re-authenticated.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.lastSeen = time.Now()
	m.warned = false
	m.expired = false

	if m.warnTimer != nil {
		m.warnTimer.Stop()
	}
	if m.expireTimer != nil {
		m.expireTimer.Stop()
	}

	if m.cfg.WarningLead > 0 && m.cfg.OnWarning != nil {
		m.warnTimer = time.AfterFunc(m.cfg.IdleTimeout-m.cfg.WarningLead, m.fireWarning)
	}
	if m.cfg.OnExpire != nil {
		m.expireTimer = time.AfterFunc(m.cfg.IdleTimeout, m.fireExpire)
	}
}

func (m *Monitor) fireWarning() {
	m.mu.Lock()
	if m.closed || m.warned || m.expired {
		m.mu.Unlock()
		return
	}
	m.warned = true
	cb := m.cfg.OnWarning
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (m *Monitor) fireExpire() {
	m.mu.Lock()
	if m.closed || m.expired {
		m.mu.Unlock()
		return
	}
	m.expired = true
	cb := m.cfg.OnExpire
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Remaining reports how much of the idle window is left. Zero means the
// window has lapsed.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	left := m.cfg.IdleTimeout - time.Since(m.lastSeen)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the idle window has lapsed without a Touch.
func (m *Monitor) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expired || time.Since(m.lastSeen) >= m.cfg.IdleTimeout
}

// Close stops the timers and the wall-clock backstop. Callbacks never
// fire after Close returns.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
	if m.warnTimer != nil {
		m.warnTimer.Stop()
	}
	if m.expireTimer != nil {
		m.expireTimer.Stop()
	}
}

package authcore

import (
	"context"
	"sync"
	"sync/atomic"

	internalmetrics "github.com/cartstack/authcore/internal/metrics"
)

// auditDispatcher fans audit events out to the configured sink from one
// background goroutine, so emission never blocks a credential flow.
// Discards are tracked twice: a local counter for [Engine.AuditDropped]
// and the audit_events_dropped_total entry in the engine's counter
// registry.
type auditDispatcher struct {
	cfg     AuditConfig
	sink    AuditSink
	metrics *internalmetrics.Registry

	queue chan AuditEvent
	quit  chan struct{}

	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, registry *internalmetrics.Registry) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:     cfg,
		sink:    sink,
		metrics: registry,
		queue:   make(chan AuditEvent, cfg.BufferSize),
		quit:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.pump()

	return d
}

// pump delivers queued events one at a time. Shutdown drains whatever
// is already buffered before the goroutine exits, so Close never loses
// accepted events.
func (d *auditDispatcher) pump() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			for {
				select {
				case event := <-d.queue:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues an event for delivery. With DropIfFull set the call never
// blocks: a full buffer discards the event and counts the discard.
// Without it the call waits until the buffer accepts the event, the
// caller's context is cancelled, or the dispatcher shuts down.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.quit:
		default:
			d.dropped.Add(1)
			d.metrics.Inc(internalmetrics.AuditEventsDropped)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops intake and blocks until every queued event has reached
// the sink. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.quit)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the buffer was
// full.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

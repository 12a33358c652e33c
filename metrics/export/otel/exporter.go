// Package otel bridges the engine's in-process counters to an
// OpenTelemetry meter. Counters are observed on the meter's collection
// cycle; the engine itself never blocks on the metrics pipeline.
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"

	authcore "github.com/cartstack/authcore"
)

// Bridge registers every engine counter as an observable counter on the
// given meter and reports their live values on each collection.
type Bridge struct {
	registration metric.Registration
}

// NewBridge wires the engine's counter registry to meter. The returned
// [Bridge] must be closed before the engine is discarded.
func NewBridge(engine *authcore.Engine, meter metric.Meter) (*Bridge, error) {
	if engine == nil {
		return nil, errors.New("nil engine")
	}
	registry := engine.Metrics()
	if registry == nil {
		return nil, errors.New("engine metrics disabled")
	}

	var instruments []metric.Int64ObservableCounter
	var observables []metric.Observable
	var ids []authcore.MetricID

	var buildErr error
	registry.Walk(func(id authcore.MetricID, name string, _ uint64) {
		if buildErr != nil {
			return
		}
		counter, err := meter.Int64ObservableCounter(
			"authcore."+name,
			metric.WithDescription("authcore counter "+name),
		)
		if err != nil {
			buildErr = err
			return
		}
		instruments = append(instruments, counter)
		observables = append(observables, counter)
		ids = append(ids, id)
	})
	if buildErr != nil {
		return nil, buildErr
	}

	registration, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			for i, id := range ids {
				observer.ObserveInt64(instruments[i], int64(registry.Get(id)))
			}
			return nil
		},
		observables...,
	)
	if err != nil {
		return nil, err
	}

	return &Bridge{registration: registration}, nil
}

// Close unregisters the collection callback.
func (b *Bridge) Close() error {
	if b == nil || b.registration == nil {
		return nil
	}
	return b.registration.Unregister()
}

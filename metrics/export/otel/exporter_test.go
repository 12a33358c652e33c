package otel

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	authcore "github.com/cartstack/authcore"
)

// nopProvider satisfies the account interface for tests that never
// touch account data. Any call through the embedded nil interface
// panics, which is what we want here.
type nopProvider struct {
	authcore.AccountProvider
}

func newMetricsEngine(t *testing.T) *authcore.Engine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	engine, err := authcore.New().
		WithConfig(authcore.Config{
			Token: authcore.TokenConfig{
				AccessTTL:     5 * time.Minute,
				SigningMethod: "hs256",
				PrivateKey:    []byte("test-secret-test-secret-test-sec"),
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
			Metrics: authcore.MetricsConfig{Enabled: true},
		}).
		WithRedis(rdb).
		WithAccountProvider(nopProvider{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, want int64 sum", name, m.Data)
			}
			if len(sum.DataPoints) != 1 {
				t.Fatalf("metric %s has %d data points", name, len(sum.DataPoints))
			}
			return sum.DataPoints[0].Value
		}
	}

	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestBridgeObservesEngineCounters(t *testing.T) {
	engine := newMetricsEngine(t)
	engine.Metrics().Add(authcore.MetricLoginSuccess, 3)
	engine.Metrics().Inc(authcore.MetricSessionCreated)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	bridge, err := NewBridge(engine, provider.Meter("authcore-test"))
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}
	t.Cleanup(func() { bridge.Close() })

	if got := collectSum(t, reader, "authcore.login_success_total"); got != 3 {
		t.Fatalf("expected 3 successful logins, got %d", got)
	}
	if got := collectSum(t, reader, "authcore.session_created_total"); got != 1 {
		t.Fatalf("expected 1 session, got %d", got)
	}
}

func TestBridgeTracksLiveValues(t *testing.T) {
	engine := newMetricsEngine(t)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	bridge, err := NewBridge(engine, provider.Meter("authcore-test"))
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}
	t.Cleanup(func() { bridge.Close() })

	if got := collectSum(t, reader, "authcore.token_minted_total"); got != 0 {
		t.Fatalf("expected 0 before activity, got %d", got)
	}

	engine.Metrics().Add(authcore.MetricTokenMinted, 5)

	if got := collectSum(t, reader, "authcore.token_minted_total"); got != 5 {
		t.Fatalf("expected 5 after activity, got %d", got)
	}
}

func TestNewBridgeRejectsNilEngine(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	if _, err := NewBridge(nil, provider.Meter("authcore-test")); err == nil {
		t.Fatal("expected error for nil engine")
	}
}

func TestBridgeCloseNilSafe(t *testing.T) {
	var b *Bridge
	if err := b.Close(); err != nil {
		t.Fatalf("nil bridge Close returned %v", err)
	}
}

package metrics

import (
	"sync"
	"testing"
)

func TestRegistryIncAndGet(t *testing.T) {
	r := NewRegistry()

	r.Inc(LoginSuccess)
	r.Inc(LoginSuccess)
	r.Add(TokenMinted, 5)

	if got := r.Get(LoginSuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := r.Get(TokenMinted); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := r.Get(LoginFailure); got != 0 {
		t.Fatalf("untouched counter reads %d", got)
	}
}

func TestRegistryNilSafe(t *testing.T) {
	var r *Registry

	r.Inc(LoginSuccess)
	r.Add(LoginSuccess, 3)
	if r.Get(LoginSuccess) != 0 {
		t.Fatal("nil registry returned a count")
	}
	if r.Snapshot() != nil {
		t.Fatal("nil registry returned a snapshot")
	}
	r.Walk(func(MetricID, string, uint64) {
		t.Fatal("nil registry walked")
	})
}

func TestRegistryOutOfRangeIgnored(t *testing.T) {
	r := NewRegistry()

	r.Inc(MetricID(-1))
	r.Inc(metricCount)
	if r.Get(MetricID(-1)) != 0 || r.Get(metricCount) != 0 {
		t.Fatal("out-of-range IDs not ignored")
	}
}

func TestSnapshotCoversEveryCounter(t *testing.T) {
	r := NewRegistry()
	r.Inc(SessionCreated)

	snap := r.Snapshot()
	if len(snap) != int(metricCount) {
		t.Fatalf("snapshot has %d entries, want %d", len(snap), metricCount)
	}
	if snap["session_created_total"] != 1 {
		t.Fatalf("expected 1 session created, got %d", snap["session_created_total"])
	}
}

func TestEveryMetricHasName(t *testing.T) {
	for id := MetricID(0); id < metricCount; id++ {
		if id.Name() == "" || id.Name() == "unknown" {
			t.Fatalf("metric %d has no name", id)
		}
	}
	if MetricID(-1).Name() != "unknown" || metricCount.Name() != "unknown" {
		t.Fatal("out-of-range IDs must read unknown")
	}
}

func TestRegistryConcurrentIncrements(t *testing.T) {
	r := NewRegistry()

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				r.Inc(LoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := r.Get(LoginSuccess); got != goroutines*perGoroutine {
		t.Fatalf("expected %d, got %d", goroutines*perGoroutine, got)
	}
}

func TestWalkOrderMatchesIDs(t *testing.T) {
	r := NewRegistry()

	var prev MetricID = -1
	r.Walk(func(id MetricID, name string, _ uint64) {
		if id != prev+1 {
			t.Fatalf("walk out of order: %d after %d", id, prev)
		}
		if name != id.Name() {
			t.Fatalf("name mismatch for %d: %q vs %q", id, name, id.Name())
		}
		prev = id
	})
	if prev != metricCount-1 {
		t.Fatalf("walk stopped at %d", prev)
	}
}

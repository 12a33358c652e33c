package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestEphemeralStoreRedeemOnce(t *testing.T) {
	store := newEphemeralStore[string](time.Minute, time.Hour, nil)
	defer store.Close()

	store.Put("tok", "payload")

	got, ok := store.Redeem("tok")
	if !ok || got != "payload" {
		t.Fatalf("first redeem: got %q, ok=%v", got, ok)
	}
	if _, ok := store.Redeem("tok"); ok {
		t.Fatal("second redeem must fail")
	}
}

func TestEphemeralStoreUnknownToken(t *testing.T) {
	store := newEphemeralStore[string](time.Minute, time.Hour, nil)
	defer store.Close()

	if _, ok := store.Redeem("never-issued"); ok {
		t.Fatal("unknown token redeemed")
	}
}

func TestEphemeralStoreExpiry(t *testing.T) {
	store := newEphemeralStore[string](10*time.Millisecond, time.Hour, nil)
	defer store.Close()

	store.Put("tok", "payload")
	time.Sleep(30 * time.Millisecond)

	if _, ok := store.Redeem("tok"); ok {
		t.Fatal("expired token redeemed")
	}
}

func TestEphemeralStoreOverwriteResetsClock(t *testing.T) {
	store := newEphemeralStore[string](50*time.Millisecond, time.Hour, nil)
	defer store.Close()

	store.Put("tok", "first")
	time.Sleep(30 * time.Millisecond)
	store.Put("tok", "second")
	time.Sleep(30 * time.Millisecond)

	got, ok := store.Redeem("tok")
	if !ok || got != "second" {
		t.Fatalf("expected refreshed entry, got %q ok=%v", got, ok)
	}
}

func TestEphemeralStoreSweep(t *testing.T) {
	var mu sync.Mutex
	sweptTotal := 0

	store := newEphemeralStore[int](time.Minute, time.Hour, func(n int) {
		mu.Lock()
		sweptTotal += n
		mu.Unlock()
	})
	defer store.Close()

	store.Put("a", 1)
	store.Put("b", 2)
	store.Put("c", 3)

	// Force the sweep clock rather than waiting for the ticker.
	store.sweep(time.Now().Add(2 * time.Minute))

	if store.Len() != 0 {
		t.Fatalf("expected empty store after sweep, have %d", store.Len())
	}

	mu.Lock()
	defer mu.Unlock()
	if sweptTotal != 3 {
		t.Fatalf("expected 3 swept, got %d", sweptTotal)
	}
}

func TestEphemeralStoreConcurrentRedeem(t *testing.T) {
	store := newEphemeralStore[string](time.Minute, time.Hour, nil)
	defer store.Close()

	store.Put("tok", "payload")

	const racers = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := store.Redeem("tok"); ok {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	var n int
	for range successes {
		n++
	}
	if n != 1 {
		t.Fatalf("token redeemed %d times, want exactly 1", n)
	}
}

func TestEphemeralStoreCloseIdempotent(t *testing.T) {
	store := newEphemeralStore[string](time.Minute, time.Millisecond, nil)
	store.Close()
	store.Close()
}

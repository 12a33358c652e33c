package authcore

import (
	"sync"
	"time"
)

// ephemeralEntry is a single one-shot token with its payload.
type ephemeralEntry[T any] struct {
	payload   T
	expiresAt time.Time
}

// ephemeralStore is a process-local one-shot token store. Tokens are
// redeemed at most once: Redeem removes the entry under the same mutex
// that guards the sweep, so a concurrent redeem and sweep can never
// both observe the entry live. Entries are swept on a fixed interval
// and also lazily rejected on redeem when already past expiry.
//
// This store is deliberately in-memory: the tokens it holds are handed
// to a client and redeemed back against the same process within
// seconds, so cross-instance visibility is not required.
type ephemeralStore[T any] struct {
	mu      sync.Mutex
	entries map[string]ephemeralEntry[T]
	ttl     time.Duration
	swept   func(n int)

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newEphemeralStore[T any](ttl, sweepInterval time.Duration, swept func(n int)) *ephemeralStore[T] {
	s := &ephemeralStore[T]{
		entries: make(map[string]ephemeralEntry[T]),
		ttl:     ttl,
		swept:   swept,
		stop:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.sweepLoop(sweepInterval)

	return s
}

// Put stores a payload under the given token for the store's TTL.
// Storing under an existing token overwrites it and resets the clock.
func (s *ephemeralStore[T]) Put(tokenID string, payload T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[tokenID] = ephemeralEntry[T]{
		payload:   payload,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Redeem removes and returns the payload for a token. A token that was
// never issued, already redeemed, or expired all report ok=false; the
// caller cannot distinguish the three cases.
func (s *ephemeralStore[T]) Redeem(tokenID string) (T, bool) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[tokenID]
	if !ok {
		return zero, false
	}
	delete(s.entries, tokenID)

	if time.Now().After(entry.expiresAt) {
		return zero, false
	}

	return entry.payload, true
}

// Len reports the number of live entries, expired or not.
func (s *ephemeralStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ephemeralStore[T]) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *ephemeralStore[T]) sweep(now time.Time) {
	s.mu.Lock()
	removed := 0
	for tokenID, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, tokenID)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 && s.swept != nil {
		s.swept(removed)
	}
}

// Close stops the sweeper. Pending entries are discarded.
func (s *ephemeralStore[T]) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

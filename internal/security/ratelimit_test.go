package security

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 6, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{InvocationsPerMin: 60, Burst: 3})
	rl.now = func() time.Time { return now }

	for i := range 3 {
		if err := rl.Allow("client"); err != nil {
			t.Fatalf("Allow(%d) = %v", i, err)
		}
	}
	if err := rl.Allow("client"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// One token per second at 60/min.
	now = now.Add(time.Second)
	if err := rl.Allow("client"); err != nil {
		t.Fatalf("expected refill, got %v", err)
	}
}

func TestRateLimiter_PerCaller(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 6, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{InvocationsPerMin: 1})
	rl.now = func() time.Time { return now }

	if err := rl.Allow("a"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow("a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit for a, got %v", err)
	}
	if err := rl.Allow("b"); err != nil {
		t.Fatalf("b should have its own bucket: %v", err)
	}
}

func TestRateLimiter_EvictsIdleCallers(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 6, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{IdleTTL: time.Minute})
	rl.now = func() time.Time { return now }

	_ = rl.Allow("a")
	_ = rl.Allow("b")
	now = now.Add(2 * time.Minute)
	_ = rl.Allow("c")

	if got := rl.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{InvocationsPerMin: 1, Burst: 50})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared") == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

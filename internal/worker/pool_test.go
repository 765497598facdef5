package worker

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestPoolRunPreservesOrderAndBoundsConcurrency(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	var inFlight, maxInFlight int32
	pool := NewPool[string](2)

	results := pool.Run(context.Background(), items, func(ctx context.Context, item string) string {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		atomic.AddInt32(&inFlight, -1)
		return item + "-done"
	})

	want := []string{"a-done", "b-done", "c-done", "d-done", "e-done"}
	for i, w := range want {
		if results[i] != w {
			t.Errorf("results[%d] = %q, want %q", i, results[i], w)
		}
	}

	if maxInFlight > 2 {
		t.Errorf("observed %d goroutines in flight, want at most 2", maxInFlight)
	}
}

func TestPoolRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPool[int](1)
	results := pool.Run(ctx, []string{"x"}, func(ctx context.Context, item string) int {
		return 1
	})

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
}

func TestNewPoolClampsNonPositiveWorkers(t *testing.T) {
	pool := NewPool[int](0)
	if pool.Workers != 1 {
		t.Errorf("Workers = %d, want 1", pool.Workers)
	}
}

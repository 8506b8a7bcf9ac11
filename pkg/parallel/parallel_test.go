package parallel

import (
	"sync/atomic"
	"testing"
)

func TestChunkedCoversEveryItemOnce(t *testing.T) {
	const items = 1000
	var touched [items]int32

	Chunked(items, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&touched[i], 1)
		}
	})

	for i, n := range touched {
		if n != 1 {
			t.Fatalf("item %d touched %d times, want 1", i, n)
		}
	}
}

func TestChunkedZeroItems(t *testing.T) {
	called := false
	Chunked(0, func(start, end int) { called = true })
	if called {
		t.Error("fn must not run for zero items")
	}
}

func TestChunkedWithThresholdSequential(t *testing.T) {
	var calls int32
	ChunkedWithThreshold(10, 100, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 10 {
			t.Errorf("sequential range = [%d, %d), want [0, 10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("fn called %d times below threshold, want 1", calls)
	}
}

// Package parallel provides chunked data parallelism for row-wise work such
// as batch scoring and attribution.
package parallel

import (
	"runtime"
	"sync"
)

// Chunked splits items into contiguous [start, end) ranges, one per worker,
// and runs fn on each range concurrently. fn must not touch rows outside its
// range.
func Chunked(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	workers := runtime.NumCPU()
	if workers > items {
		workers = items
	}
	chunk := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunk
		end := start + chunk
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ChunkedWithThreshold runs sequentially below the threshold, where goroutine
// overhead outweighs the work.
func ChunkedWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Chunked(items, fn)
}

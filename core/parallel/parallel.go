// Package parallel provides the data-parallel row loop used by prediction
// and buffer maintenance. Rows are partitioned into contiguous chunks, one
// goroutine per chunk; callers rely on disjoint writes per row, so no
// synchronization beyond the final join is needed.
package parallel

import (
	"runtime"
	"sync"
)

// For executes fn over [0, items) split into per-worker ranges and waits
// for every worker to finish before returning.
func For(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division keeps chunks balanced
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
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

// ForWithThreshold runs sequentially when items is at or below threshold,
// avoiding goroutine overhead on small row counts.
func ForWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	For(items, fn)
}

// Package parallel splits a range of row indices into contiguous chunks and
// processes them on separate goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Chunks divides [0, items) into at most workers contiguous [start, end)
// ranges of nearly equal size, in ascending order.
func Chunks(items, workers int) [][2]int {
	if items <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > items {
		workers = items
	}

	size := (items + workers - 1) / workers
	chunks := make([][2]int, 0, workers)
	for start := 0; start < items; start += size {
		end := start + size
		if end > items {
			end = items
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}

// ParallelizeN runs fn once per chunk of [0, items) using at most workers
// goroutines and waits for all of them. fn must only write to state owned by
// its own range.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	chunks := Chunks(items, workers)
	if len(chunks) == 1 {
		fn(chunks[0][0], chunks[0][1])
		return
	}

	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(c[0], c[1])
	}
	wg.Wait()
}

// Parallelize is ParallelizeN with one worker per usable CPU.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, runtime.GOMAXPROCS(0), fn)
}

// ParallelizeWithThreshold calls fn(0, items) on the current goroutine when
// items <= threshold and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

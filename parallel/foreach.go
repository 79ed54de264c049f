// Package parallel contains the bounded worker pool and ordered hashing helpers
// used for concurrent training and evaluation.
package parallel

import (
	"context"
	"sync"
)

// ForEach runs body for every integer from 0 to length with at most limit
// goroutines in flight. The first error returned by body, or the context error,
// stops scheduling of further iterations and is returned.
func ForEach(ctx context.Context, length, limit int, body func(i int) error) error {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return ctx.Err()
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	sem := make(chan struct{}, limit)
loop:
	for i := 0; i < length; i++ {
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := body(i); err != nil {
				fail(err)
			}
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// Chunks splits [0, length) into consecutive ranges of at most size elements.
func Chunks(length, size int) (o [][2]int) {
	if size <= 0 {
		size = 1
	}
	for start := 0; start < length; start += size {
		end := start + size
		if end > length {
			end = length
		}
		o = append(o, [2]int{start, end})
	}
	return
}

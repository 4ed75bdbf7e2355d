package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchDownloader fetches many objects from object storage in parallel.
type BatchDownloader struct {
	storage     ObjectStorage
	concurrency int
}

// BatchResult contains the outcome of a batch download.
// Every requested path ends up in exactly one of the two maps.
type BatchResult struct {
	Objects map[string][]byte
	Errors  map[string]error
}

// NewBatchDownloader creates a new batch downloader.
// concurrency below one is treated as one.
func NewBatchDownloader(storage ObjectStorage, concurrency int) *BatchDownloader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchDownloader{
		storage:     storage,
		concurrency: concurrency,
	}
}

// Download fetches objectPaths with at most concurrency requests in flight.
// Per-object failures are collected in the result; the returned error is
// reserved for a cancelled context.
func (b *BatchDownloader) Download(ctx context.Context, objectPaths []string) (*BatchResult, error) {
	result := &BatchResult{
		Objects: make(map[string][]byte, len(objectPaths)),
		Errors:  make(map[string]error),
	}
	if len(objectPaths) == 0 {
		return result, nil
	}

	sem := semaphore.NewWeighted(int64(b.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range objectPaths {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[p] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(path string) {
			defer sem.Release(1)
			defer wg.Done()

			data, _, err := b.storage.GetObject(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[path] = err
				return
			}
			result.Objects[path] = data
		}(p)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

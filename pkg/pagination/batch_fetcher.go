package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single page of a paged listing
type PageFetcher interface {
	// FetchPage fetches a single page and returns data + total page count
	FetchPage(ctx context.Context, endpoint string, pageNum int) (data []byte, totalPages int, err error)
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	PageNumber int
	Data       []byte
	Error      error
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAllPages fetches every page of endpoint using a worker pool.
// The result holds one entry per page, keyed 1..totalPages. If any page
// fails the remaining work is cancelled and the first error is returned with
// no results.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, endpoint string) (map[int][]byte, error) {
	start := time.Now()

	// Fetch first page to get total page count
	firstPageData, totalPages, err := bf.fetcher.FetchPage(ctx, endpoint, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	results := map[int][]byte{1: firstPageData}

	// Single page optimization
	if totalPages <= 1 {
		log.Debug().
			Str("endpoint", endpoint).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return results, nil
	}

	log.Info().
		Str("endpoint", endpoint).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pageQueue := make(chan int)
	pageResults := make(chan PageResult)

	// Fill page queue (skip page 1, already fetched)
	go func() {
		defer close(pageQueue)
		for page := 2; page <= totalPages; page++ {
			select {
			case pageQueue <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	workers := bf.config.MaxConcurrency
	if workers > totalPages-1 {
		workers = totalPages - 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, endpoint, pageQueue, pageResults, &wg, i)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(pageResults)
	}()

	var firstErr error
	for result := range pageResults {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch page %d: %w", result.PageNumber, result.Error)
				cancel()
			}
			continue
		}
		results[result.PageNumber] = result.Data
	}

	if firstErr != nil {
		log.Warn().
			Err(firstErr).
			Str("endpoint", endpoint).
			Int("fetched_pages", len(results)).
			Int("total_pages", totalPages).
			Msg("Page fetch failed, discarding partial results")
		return nil, firstErr
	}

	if len(results) != totalPages {
		// Only reachable when the parent context was cancelled
		return nil, fmt.Errorf("fetched %d/%d pages: %w", len(results), totalPages, ctx.Err())
	}

	log.Info().
		Str("endpoint", endpoint).
		Int("pages", totalPages).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

// worker processes pages from the queue
func (bf *BatchFetcher) worker(ctx context.Context, endpoint string, pageQueue <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		// Fetch page with timeout
		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		data, _, err := bf.fetcher.FetchPage(pageCtx, endpoint, pageNum)
		cancel()

		// results is drained until every worker exits, so this send never blocks forever
		results <- PageResult{PageNumber: pageNum, Data: data, Error: err}
		if err != nil {
			log.Debug().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Worker stopping after page failure")
			return
		}
		pagesProcessed++
	}

	log.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", pagesProcessed).
		Msg("Worker completed")
}

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
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns a conservative configuration for the push API
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// pageResult represents the result of fetching a single page
type pageResult[T any] struct {
	pageNumber int
	items      []T
	err        error
}

// BatchFetcher fetches every page of a resource with a worker pool
type BatchFetcher[T any] struct {
	fetcher Fetcher[T]
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](fetcher Fetcher[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches page 1 to learn lastPage, then the remaining pages in
// parallel. Items are returned in page order. On a page failure the items of
// the contiguous prefix of pages fetched so far are returned with the error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, perPage int) ([]T, Meta, error) {
	start := time.Now()

	first, err := bf.fetchOne(ctx, 1, perPage)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("fetch first page: %w", err)
	}

	totalPages := first.Meta.LastPage
	log.Info().
		Int("total_pages", totalPages).
		Int("per_page", perPage).
		Msg("Starting parallel page fetch")

	if totalPages <= 1 {
		log.Info().
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Items, first.Meta, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := map[int][]T{1: first.Items}
	lastMeta := first.Meta

	pageQueue := make(chan int, totalPages-1)
	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	pageResults := make(chan pageResult[T], totalPages-1)

	workers := bf.config.MaxConcurrency
	if workers > totalPages-1 {
		workers = totalPages - 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, perPage, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	var firstErr error
	for result := range pageResults {
		if result.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch page %d: %w", result.pageNumber, result.err)
				cancel()
			}
			continue
		}
		results[result.pageNumber] = result.items
	}

	items := make([]T, 0, max(first.Meta.Total, 0))
	fetched := 0
	for page := 1; page <= totalPages; page++ {
		pageItems, ok := results[page]
		if !ok {
			break
		}
		items = append(items, pageItems...)
		fetched = page
	}
	if fetched == totalPages {
		lastMeta.Page = totalPages
		lastMeta.HasNext = false
		lastMeta.HasPrev = totalPages > 1
	}

	if firstErr != nil {
		log.Warn().
			Err(firstErr).
			Int("fetched_pages", fetched).
			Int("total_pages", totalPages).
			Msg("Page fetch failed - returning partial results")
		return items, lastMeta, fmt.Errorf("partial data (%d/%d pages): %w", fetched, totalPages, firstErr)
	}

	log.Info().
		Int("pages", totalPages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, lastMeta, nil
}

func (bf *BatchFetcher[T]) fetchOne(ctx context.Context, page, perPage int) (Page[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(pageCtx, page, perPage)
}

// worker processes pages from the queue
func (bf *BatchFetcher[T]) worker(ctx context.Context, perPage int, pageQueue <-chan int, results chan<- pageResult[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if ctx.Err() != nil {
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		page, err := bf.fetchOne(ctx, pageNum, perPage)
		results <- pageResult[T]{pageNumber: pageNum, items: page.Items, err: err}
		if err != nil {
			return
		}
		pagesProcessed++
	}

	log.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", pagesProcessed).
		Msg("Worker completed")
}

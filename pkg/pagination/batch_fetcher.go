package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration

	// MaxPages caps the number of pages fetched. Zero means no cap.
	MaxPages int
}

// DefaultConfig returns a configuration that stays well inside provider
// secondary rate limits.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		MaxPages:       100,
	}
}

// PageFetcher fetches a single page.
type PageFetcher interface {
	// FetchPage returns the items of page pageNum and the total page count.
	FetchPage(ctx context.Context, endpoint string, pageNum int) (data []byte, totalPages int, err error)
}

// BatchFetcher handles parallel fetching of multiple pages.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
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

// FetchAllPages fetches all pages of endpoint and returns pageNumber -> data.
// On error the pages fetched so far are returned with it.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, endpoint string) (map[int][]byte, error) {
	start := time.Now()

	firstPageData, totalPages, err := bf.fetchPage(ctx, endpoint, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	if bf.config.MaxPages > 0 && totalPages > bf.config.MaxPages {
		log.Warn().
			Str("endpoint", endpoint).
			Int("total_pages", totalPages).
			Int("max_pages", bf.config.MaxPages).
			Msg("Page count capped")
		totalPages = bf.config.MaxPages
	}

	results := map[int][]byte{1: firstPageData}
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

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for page := 2; page <= totalPages; page++ {
		g.Go(func() error {
			data, _, err := bf.fetchPage(gctx, endpoint, page)
			if err != nil {
				log.Warn().Err(err).Int("page", page).Msg("Page fetch failed")
				return fmt.Errorf("page %d: %w", page, err)
			}
			mu.Lock()
			results[page] = data
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("partial data: %d/%d pages: %w", len(results), totalPages, err)
	}

	log.Info().
		Str("endpoint", endpoint).
		Int("pages", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

func (bf *BatchFetcher) fetchPage(ctx context.Context, endpoint string, page int) ([]byte, int, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(pageCtx, endpoint, page)
}

// Ordered returns the page data sorted by page number.
func Ordered(pages map[int][]byte) [][]byte {
	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	out := make([][]byte, 0, len(nums))
	for _, n := range nums {
		out = append(out, pages[n])
	}
	return out
}

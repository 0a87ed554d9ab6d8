package scraper

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// DefaultPaths are the conventional pages tried on every site, base first.
var DefaultPaths = []string{"", "/about", "/services", "/products", "/contact"}

// DefaultWorkers bounds concurrent fetches.
const DefaultWorkers = 5

// Collector fetches the candidate pages of a site with a bounded worker pool.
type Collector struct {
	fetcher PageFetcher
	paths   []string
	workers int
	logger  *slog.Logger
}

// NewCollector creates a collector. Empty paths and non-positive workers use the defaults.
func NewCollector(fetcher PageFetcher, paths []string, workers int, logger *slog.Logger) *Collector {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		fetcher: fetcher,
		paths:   paths,
		workers: workers,
		logger:  logger,
	}
}

// NormalizeBaseURL adds https:// to scheme-less input and drops trailing slashes.
func NormalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}

// CandidateURLs returns the base URL joined with each path, in path order.
func CandidateURLs(base string, paths []string) []string {
	base = NormalizeBaseURL(base)
	urls := make([]string, len(paths))
	for i, p := range paths {
		urls[i] = base + p
	}
	return urls
}

// Collect fetches every candidate URL and returns the pages that succeeded,
// in completion order. It never fails; it returns once every fetch has
// finished or timed out.
func (c *Collector) Collect(ctx context.Context, base string) []PageResult {
	urls := CandidateURLs(base, c.paths)

	jobs := make(chan string)
	results := make(chan PageResult, len(urls))

	workers := c.workers
	if workers > len(urls) {
		workers = len(urls)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				if page, ok := c.fetcher.Fetch(ctx, u); ok {
					results <- page
				}
			}
		}()
	}

	for _, u := range urls {
		jobs <- u
	}
	close(jobs)

	wg.Wait()
	close(results)

	pages := make([]PageResult, 0, len(urls))
	for page := range results {
		pages = append(pages, page)
	}

	c.logger.Info("Collected site pages", "base", NormalizeBaseURL(base), "candidates", len(urls), "fetched", len(pages))
	return pages
}

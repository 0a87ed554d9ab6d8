// Package scraper fetches a fixed set of pages from a company website and
// reduces each one to its readable text.
package scraper

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/perbu/sitechat/pkg/telemetry"
)

// DefaultUserAgent is a conventional desktop browser identification.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// PageResult is the readable text of one fetched page.
type PageResult struct {
	URL  string
	Text string
}

// PageFetcher fetches one URL. The bool is false when the page should be skipped.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (PageResult, bool)
}

// FetcherConfig holds per-request limits.
type FetcherConfig struct {
	Timeout       time.Duration
	UserAgent     string
	MaxChars      int   // Maximum runes of text kept per page
	MinLineLength int   // Lines must be longer than this to be kept
	MaxBodyBytes  int64 // Maximum response body read
	StripChrome   bool  // Also drop nav, header, footer and aside
}

// DefaultFetcherConfig returns the stock fetch limits.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:       10 * time.Second,
		UserAgent:     DefaultUserAgent,
		MaxChars:      15000,
		MinLineLength: 25,
		MaxBodyBytes:  5 * 1024 * 1024,
	}
}

// Fetcher retrieves pages over plain HTTP(S) GET.
type Fetcher struct {
	client  *http.Client
	config  FetcherConfig
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client. The per-request timeout still applies.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a fetcher. Zero config fields fall back to defaults.
func NewFetcher(cfg FetcherConfig, opts ...FetcherOption) *Fetcher {
	def := DefaultFetcherConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.MinLineLength < 0 {
		cfg.MinLineLength = def.MinLineLength
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}

	f := &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch retrieves url and extracts its readable text.
// Transport errors, timeouts, non-2xx statuses and pages with no surviving
// text all return false. Nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, url string) (PageResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.skip(url, "error", "create request", err)
		return PageResult{}, false
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		f.skip(url, "error", "fetch", err)
		return PageResult{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Debug("Skipping page", "url", url, "status", resp.StatusCode)
		f.metrics.PageFetched("status")
		return PageResult{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		f.skip(url, "error", "read body", err)
		return PageResult{}, false
	}

	text := ExtractText(bytes.NewReader(body), ExtractOptions{
		MinLineLength: f.config.MinLineLength,
		MaxChars:      f.config.MaxChars,
		StripChrome:   f.config.StripChrome,
	})
	if text == "" {
		f.logger.Debug("Skipping page without readable text", "url", url)
		f.metrics.PageFetched("empty")
		return PageResult{}, false
	}

	f.logger.Debug("Fetched page", "url", url, "chars", len(text))
	f.metrics.PageFetched("ok")
	return PageResult{URL: url, Text: text}, true
}

func (f *Fetcher) skip(url, outcome, step string, err error) {
	f.logger.Debug("Skipping page", "url", url, "step", step, "error", err)
	f.metrics.PageFetched(outcome)
}

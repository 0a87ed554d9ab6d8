package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "https://example.com"},
		{"https://example.com/", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"  example.com/  ", "https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBaseURL(tt.in))
		})
	}
}

func TestCandidateURLs(t *testing.T) {
	urls := CandidateURLs("example.com", DefaultPaths)
	assert.Equal(t, []string{
		"https://example.com",
		"https://example.com/about",
		"https://example.com/services",
		"https://example.com/products",
		"https://example.com/contact",
	}, urls)
}

func TestCollector_OnlySuccessfulPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			time.Sleep(30 * time.Millisecond)
			fmt.Fprint(w, page("Welcome to the example company home page"))
		case "/contact":
			fmt.Fprint(w, page("Write to us at hello@example.com any time"))
		case "/services":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	transport := &countingTransport{next: http.DefaultTransport}
	fetcher := NewFetcher(FetcherConfig{Timeout: time.Second, MinLineLength: 25},
		WithHTTPClient(&http.Client{Transport: transport}))
	c := NewCollector(fetcher, nil, 0, nil)

	pages := c.Collect(context.Background(), srv.URL)

	assert.Equal(t, int32(len(DefaultPaths)), transport.requests.Load())
	require.Len(t, pages, 2)
	var got []string
	for _, p := range pages {
		got = append(got, p.URL)
	}
	sort.Strings(got)
	assert.Equal(t, []string{srv.URL, srv.URL + "/contact"}, got)
}

type countingTransport struct {
	next     http.RoundTripper
	requests atomic.Int32
}

func (t *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.requests.Add(1)
	return t.next.RoundTrip(r)
}

type stubFetcher struct {
	delays   map[string]time.Duration
	fail     map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	calls    []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (PageResult, bool) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		old := s.maxSeen.Load()
		if n <= old || s.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, url)
	s.mu.Unlock()

	select {
	case <-time.After(s.delays[url]):
	case <-ctx.Done():
		return PageResult{}, false
	}
	if s.fail[url] {
		return PageResult{}, false
	}
	return PageResult{URL: url, Text: "text of " + url}, true
}

func TestCollector_CompletionOrder(t *testing.T) {
	f := &stubFetcher{
		delays: map[string]time.Duration{
			"https://acme.test":         80 * time.Millisecond,
			"https://acme.test/about":   10 * time.Millisecond,
			"https://acme.test/contact": 40 * time.Millisecond,
		},
	}
	c := NewCollector(f, []string{"", "/about", "/contact"}, 3, nil)

	pages := c.Collect(context.Background(), "acme.test")

	require.Len(t, pages, 3)
	assert.Equal(t, "https://acme.test/about", pages[0].URL)
	assert.Equal(t, "https://acme.test/contact", pages[1].URL)
	assert.Equal(t, "https://acme.test", pages[2].URL)
}

func TestCollector_BoundedWorkers(t *testing.T) {
	paths := []string{"", "/a", "/b", "/c", "/d", "/e", "/f", "/g"}
	delays := map[string]time.Duration{}
	for _, u := range CandidateURLs("acme.test", paths) {
		delays[u] = 20 * time.Millisecond
	}
	f := &stubFetcher{
		delays: delays,
		fail:   map[string]bool{"https://acme.test/c": true},
	}
	c := NewCollector(f, paths, 2, nil)

	pages := c.Collect(context.Background(), "acme.test")

	assert.Len(t, pages, len(paths)-1)
	assert.Len(t, f.calls, len(paths))
	assert.LessOrEqual(t, f.maxSeen.Load(), int32(2))
	assert.Equal(t, int32(0), f.inFlight.Load())
}

func TestCollector_NothingSucceeds(t *testing.T) {
	f := &stubFetcher{fail: map[string]bool{}}
	for _, u := range CandidateURLs("acme.test", DefaultPaths) {
		f.fail[u] = true
	}
	c := NewCollector(f, nil, 0, nil)

	pages := c.Collect(context.Background(), "acme.test")

	assert.NotNil(t, pages)
	assert.Empty(t, pages)
}

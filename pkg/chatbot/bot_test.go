package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perbu/sitechat/pkg/generator"
	"github.com/perbu/sitechat/pkg/scraper"
)

type fakeCollector struct {
	pages []scraper.PageResult
	calls atomic.Int32
}

func (c *fakeCollector) Collect(ctx context.Context, base string) []scraper.PageResult {
	c.calls.Add(1)
	return c.pages
}

type recordingAnswerer struct {
	mu      sync.Mutex
	prompts []string
}

func (a *recordingAnswerer) Answer(ctx context.Context, prompt string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, prompt)
	return "generated answer"
}

func newBot(t *testing.T, pages []scraper.PageResult) (*Bot, *fakeCollector, *recordingAnswerer) {
	t.Helper()
	collector := &fakeCollector{pages: pages}
	answerer := &recordingAnswerer{}
	bot, err := New("Acme", "acme.test", Options{Collector: collector, Answerer: answerer, ChunkSize: 40})
	require.NoError(t, err)
	return bot, collector, answerer
}

var acmePages = []scraper.PageResult{
	{URL: "https://acme.test/about", Text: "Our return policy allows 30 days"},
	{URL: "https://acme.test/contact", Text: "Contact us at support@x.com"},
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "acme.test", Options{Collector: &fakeCollector{}, Answerer: &recordingAnswerer{}})
	assert.Error(t, err)
	_, err = New("Acme", "", Options{Collector: &fakeCollector{}, Answerer: &recordingAnswerer{}})
	assert.Error(t, err)
	_, err = New("Acme", "acme.test", Options{Answerer: &recordingAnswerer{}})
	assert.Error(t, err)
	_, err = New("Acme", "acme.test", Options{Collector: &fakeCollector{}})
	assert.Error(t, err)

	bot, err := New("Acme", "acme.test", Options{Collector: &fakeCollector{}, Answerer: &recordingAnswerer{}})
	require.NoError(t, err)
	assert.NotEmpty(t, bot.ID())
	assert.Equal(t, "Acme", bot.Company())
	assert.Equal(t, Uninitialized, bot.State())
}

func TestAsk_NotReady(t *testing.T) {
	bot, _, answerer := newBot(t, acmePages)

	assert.Equal(t, NotReadyAnswer, bot.Ask(context.Background(), "What is the return policy?"))
	assert.Empty(t, answerer.prompts)
}

func TestInitialize_EmptyCorpusFails(t *testing.T) {
	bot, _, answerer := newBot(t, nil)

	err := bot.Initialize(context.Background())

	require.ErrorIs(t, err, ErrEmptyCorpus)
	assert.Equal(t, Failed, bot.State())
	assert.Nil(t, bot.Corpus())
	assert.Equal(t, NotReadyAnswer, bot.Ask(context.Background(), "anything at all"))
	assert.Empty(t, answerer.prompts)
}

func TestAsk_GroundedPrompt(t *testing.T) {
	bot, _, answerer := newBot(t, acmePages)
	require.NoError(t, bot.Initialize(context.Background()))
	require.Equal(t, Ready, bot.State())

	answer := bot.Ask(context.Background(), "What is the return policy?")

	assert.Equal(t, "generated answer", answer)
	require.Len(t, answerer.prompts, 1)
	prompt := answerer.prompts[0]
	assert.Contains(t, prompt, "official AI assistant for Acme")
	assert.Contains(t, prompt, "WEBSITE CONTEXT:\nOur return policy allows 30 days\n")
	assert.NotContains(t, prompt, "support@x.com")
	assert.Contains(t, prompt, "QUESTION:\nWhat is the return policy?\n")
	assert.Contains(t, prompt, `"`+NotFoundAnswer+`"`)
}

func TestAsk_NoContextRefuses(t *testing.T) {
	bot, _, answerer := newBot(t, acmePages)
	require.NoError(t, bot.Initialize(context.Background()))

	answer := bot.Ask(context.Background(), "Do you ship to Antarctica?")

	assert.Equal(t, NotFoundAnswer, answer)
	assert.Empty(t, answerer.prompts)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	bot, _, answerer := newBot(t, acmePages)
	require.NoError(t, bot.Initialize(context.Background()))

	assert.Equal(t, EmptyQuestionAnswer, bot.Ask(context.Background(), "   "))
	assert.Empty(t, answerer.prompts)
}

func TestInitialize_Idempotent(t *testing.T) {
	long := []scraper.PageResult{
		{URL: "https://acme.test", Text: strings.Repeat("We make anvils and rockets. ", 10)},
		{URL: "https://acme.test/about", Text: strings.Repeat("Founded in the desert. ", 7)},
	}
	bot, collector, _ := newBot(t, long)

	require.NoError(t, bot.Initialize(context.Background()))
	first := bot.Corpus()
	require.NoError(t, bot.Initialize(context.Background()))
	second := bot.Corpus()

	assert.Equal(t, int32(2), collector.calls.Load())
	assert.NotSame(t, first, second)
	assert.Equal(t, first, second)
}

func TestInitialize_RecoversAfterFailure(t *testing.T) {
	bot, collector, _ := newBot(t, nil)
	require.Error(t, bot.Initialize(context.Background()))

	collector.pages = acmePages
	require.NoError(t, bot.Initialize(context.Background()))
	assert.Equal(t, Ready, bot.State())
	assert.Equal(t, 2, bot.Corpus().Len())
}

// gatedCollector blocks in Collect until release is closed.
type gatedCollector struct {
	pages   []scraper.PageResult
	started chan struct{}
	release chan struct{}
}

func (c *gatedCollector) Collect(ctx context.Context, base string) []scraper.PageResult {
	c.started <- struct{}{}
	<-c.release
	return c.pages
}

func TestInitialize_RefreshServesPreviousCorpus(t *testing.T) {
	collector := &gatedCollector{pages: acmePages, started: make(chan struct{}, 1), release: make(chan struct{})}
	answerer := &recordingAnswerer{}
	bot, err := New("Acme", "acme.test", Options{Collector: collector, Answerer: answerer})
	require.NoError(t, err)

	close(collector.release)
	require.NoError(t, bot.Initialize(context.Background()))
	<-collector.started
	previous := bot.Corpus()

	collector.release = make(chan struct{})
	collector.pages = []scraper.PageResult{{URL: "https://acme.test", Text: "We now sell rockets"}}
	done := make(chan error, 1)
	go func() { done <- bot.Initialize(context.Background()) }()
	<-collector.started

	assert.Equal(t, Ready, bot.State())
	assert.Same(t, previous, bot.Corpus())
	assert.Equal(t, "generated answer", bot.Ask(context.Background(), "What is the return policy?"))

	close(collector.release)
	require.NoError(t, <-done)
	assert.Equal(t, "We now sell rockets", bot.Corpus().Chunks[0].Content)
	assert.Equal(t, NotFoundAnswer, bot.Ask(context.Background(), "What is the return policy?"))
}

func TestInitialize_FirstRunIsNotReady(t *testing.T) {
	collector := &gatedCollector{pages: acmePages, started: make(chan struct{}, 1), release: make(chan struct{})}
	bot, err := New("Acme", "acme.test", Options{Collector: collector, Answerer: &recordingAnswerer{}})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- bot.Initialize(context.Background()) }()
	<-collector.started

	assert.Equal(t, Initializing, bot.State())
	assert.Equal(t, NotReadyAnswer, bot.Ask(context.Background(), "What is the return policy?"))

	close(collector.release)
	require.NoError(t, <-done)
	assert.Equal(t, Ready, bot.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(42).String())
}

// TestBot_EndToEnd wires the real scraper and generation cache against local servers.
func TestBot_EndToEnd(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><main><h1>Acme</h1><p>Acme builds rockets for coyotes since 1949.</p></main></body></html>`)
		case "/contact":
			fmt.Fprint(w, `<html><body><p>Call our rocket hotline at 555-0100 any day.</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer site.Close()

	var llmCalls atomic.Int32
	var lastPrompt atomic.Value
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llmCalls.Add(1)
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) > 0 {
			lastPrompt.Store(body.Messages[0].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Call 555-0100."}}]}`)
	}))
	defer llm.Close()

	fetcher := scraper.NewFetcher(scraper.FetcherConfig{Timeout: time.Second, MinLineLength: 25})
	collector := scraper.NewCollector(fetcher, nil, 5, nil)
	gen := generator.NewOpenAIGenerator(generator.OpenAIConfig{APIKey: "k", BaseURL: llm.URL, Temperature: 0.2, MaxTokens: 500})
	cache := generator.NewCache(gen, nil)

	bot, err := New("Acme", site.URL, Options{Collector: collector, Answerer: cache})
	require.NoError(t, err)
	require.NoError(t, bot.Initialize(context.Background()))
	assert.Equal(t, 2, bot.Corpus().Len())

	answer := bot.Ask(context.Background(), "what is the rocket hotline")
	assert.Equal(t, "Call 555-0100.", answer)
	assert.Contains(t, lastPrompt.Load().(string), "555-0100")

	again := bot.Ask(context.Background(), "what is the rocket hotline")
	assert.Equal(t, answer, again)
	assert.Equal(t, int32(1), llmCalls.Load())
}

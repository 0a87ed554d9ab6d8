// Package chatbot answers questions about one company from text scraped off
// its website. A Bot is initialized once (or again to refresh) and then serves
// any number of questions.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/perbu/sitechat/pkg/loader"
	"github.com/perbu/sitechat/pkg/rag"
	"github.com/perbu/sitechat/pkg/scraper"
	"github.com/perbu/sitechat/pkg/telemetry"
)

// Fixed answers
const (
	NotReadyAnswer      = "Bot not ready"
	EmptyQuestionAnswer = "Please enter a question."
)

// ErrEmptyCorpus is returned by Initialize when no page could be fetched.
var ErrEmptyCorpus = errors.New("no pages could be fetched from the website")

// State is the lifecycle position of a Bot.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Collector gathers page texts for a base URL.
type Collector interface {
	Collect(ctx context.Context, base string) []scraper.PageResult
}

// Answerer turns a prompt into answer text. Failures are reported in the text.
type Answerer interface {
	Answer(ctx context.Context, prompt string) string
}

// Options holds the collaborators of a Bot.
type Options struct {
	Collector Collector
	Retriever rag.Retriever
	Answerer  Answerer
	ChunkSize int
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
}

// Bot is one chat session for one company website.
// Ask is safe to call concurrently with itself and with Initialize.
type Bot struct {
	id      string
	company string
	baseURL string

	collector Collector
	retriever rag.Retriever
	answerer  Answerer
	chunkSize int
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	initMu sync.Mutex
	state  atomic.Int32
	corpus atomic.Pointer[rag.Corpus]
}

// New creates an uninitialized bot.
func New(company, baseURL string, opts Options) (*Bot, error) {
	if strings.TrimSpace(company) == "" || strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("company name and website URL are required")
	}
	if opts.Collector == nil {
		return nil, errors.New("collector is required")
	}
	if opts.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if opts.Retriever == nil {
		opts.Retriever = rag.NewLexicalRetriever()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = loader.DefaultChunkSize
	}

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bot{
		id:        id,
		company:   company,
		baseURL:   baseURL,
		collector: opts.Collector,
		retriever: opts.Retriever,
		answerer:  opts.Answerer,
		chunkSize: opts.ChunkSize,
		logger:    logger.With("session_id", id, "company", company),
		metrics:   opts.Metrics,
	}, nil
}

// ID returns the session identifier.
func (b *Bot) ID() string { return b.id }

// Company returns the company name.
func (b *Bot) Company() string { return b.company }

// State returns the current lifecycle state.
func (b *Bot) State() State { return State(b.state.Load()) }

// Corpus returns the current corpus, or nil before the first successful Initialize.
func (b *Bot) Corpus() *rag.Corpus { return b.corpus.Load() }

// Initialize collects the site, chunks it and swaps in the new corpus.
// With zero fetched pages the bot moves to Failed and ErrEmptyCorpus is returned.
// Calling it again rebuilds the corpus wholesale. While a refresh runs, Ask
// keeps answering from the previous corpus.
func (b *Bot) Initialize(ctx context.Context) error {
	b.initMu.Lock()
	defer b.initMu.Unlock()

	// A refresh keeps a Ready bot serving its current corpus until the swap
	previous := b.State()
	if previous != Ready {
		b.state.Store(int32(Initializing))
	}
	started := time.Now()

	pages := b.collector.Collect(ctx, b.baseURL)
	if len(pages) == 0 {
		b.corpus.Store(nil)
		b.state.Store(int32(Failed))
		b.logger.Warn("Initialization failed", "url", b.baseURL, "previous_state", previous)
		return fmt.Errorf("initialize %s: %w", b.baseURL, ErrEmptyCorpus)
	}

	corpus := loader.LoadAndChunkAll(pages, b.chunkSize)
	b.corpus.Store(corpus)
	b.state.Store(int32(Ready))

	b.logger.Info("Chatbot ready", "url", b.baseURL, "pages", len(pages), "chunks", corpus.Len(), "duration", time.Since(started))
	return nil
}

// Ask answers a question from the website context. It never fails; problems
// come back as fixed answers.
func (b *Bot) Ask(ctx context.Context, question string) string {
	started := time.Now()
	defer func() { b.metrics.ObserveAsk(time.Since(started)) }()

	if b.State() != Ready {
		return NotReadyAnswer
	}
	corpus := b.corpus.Load()
	if corpus == nil {
		return NotReadyAnswer
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return EmptyQuestionAnswer
	}

	siteContext := b.retriever.Retrieve(question, corpus)
	if siteContext == "" {
		b.logger.Debug("No context found", "question", question)
		return NotFoundAnswer
	}

	return b.answerer.Answer(ctx, BuildPrompt(b.company, siteContext, question))
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perbu/sitechat/pkg/chatbot"
	"github.com/perbu/sitechat/pkg/config"
	"github.com/perbu/sitechat/pkg/generator"
	"github.com/perbu/sitechat/pkg/loader"
	"github.com/perbu/sitechat/pkg/scraper"
)

func (a *app) newCollector() *scraper.Collector {
	fetcher := scraper.NewFetcher(a.cfg.FetcherConfig(),
		scraper.WithLogger(a.logger),
		scraper.WithMetrics(a.metrics),
	)
	return scraper.NewCollector(fetcher, a.cfg.Scraper.Paths, a.cfg.Scraper.Workers, a.logger)
}

// newCache builds the generation cache on the configured store. The returned
// func releases the store connection.
func (a *app) newCache(ctx context.Context) (*generator.Cache, func(), error) {
	var store generator.Store
	cleanup := func() {}

	switch a.cfg.Cache.Backend {
	case config.CacheRedis:
		r := a.cfg.Cache.Redis
		client, err := generator.DialRedis(ctx, r.Addr, r.Password, r.DB)
		if err != nil {
			return nil, nil, err
		}
		store = generator.NewRedisStore(client, r.Prefix, a.cfg.Cache.TTL)
		cleanup = func() { _ = client.Close() }
	default:
		store = generator.NewMemoryStore(a.cfg.Cache.Size, a.cfg.Cache.TTL)
	}

	gen := generator.NewOpenAIGenerator(a.cfg.OpenAIConfig())
	cache := generator.NewCache(gen, store,
		generator.WithTimeout(a.cfg.LLM.Timeout),
		generator.WithLogger(a.logger),
		generator.WithMetrics(a.metrics),
	)
	return cache, cleanup, nil
}

// newBot builds and initializes a bot for one company site.
func (a *app) newBot(ctx context.Context, company, url string) (*chatbot.Bot, func(), error) {
	cache, cleanup, err := a.newCache(ctx)
	if err != nil {
		return nil, nil, err
	}

	bot, err := chatbot.New(company, url, chatbot.Options{
		Collector: a.newCollector(),
		Retriever: a.cfg.Retriever(),
		Answerer:  cache,
		ChunkSize: a.cfg.Chunker.Size,
		Logger:    a.logger,
		Metrics:   a.metrics,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if err := bot.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return bot, cleanup, nil
}

func addSiteFlags(cmd *cobra.Command, company, url *string) {
	cmd.Flags().StringVar(company, "company", "", "company name")
	cmd.Flags().StringVar(url, "url", "", "company website URL")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("url")
}

func newChatCmd(a *app) *cobra.Command {
	var company, url string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Scrape a website, then answer questions read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Scraping %s...\n", url)
			bot, cleanup, err := a.newBot(ctx, company, url)
			if err != nil {
				return err
			}
			defer cleanup()
			fmt.Fprintf(out, "Chatbot ready (%d chunks). Ask about %s, empty line or Ctrl-D to quit.\n", bot.Corpus().Len(), company)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					break
				}
				fmt.Fprintln(out, bot.Ask(ctx, question))
				if ctx.Err() != nil {
					break
				}
			}
			fmt.Fprintln(out)
			return scanner.Err()
		},
	}
	addSiteFlags(cmd, &company, &url)
	return cmd
}

func newAskCmd(a *app) *cobra.Command {
	var company, url string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Scrape a website and answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, cleanup, err := a.newBot(cmd.Context(), company, url)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Fprintln(cmd.OutOrStdout(), bot.Ask(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
	addSiteFlags(cmd, &company, &url)
	return cmd
}

func newScrapeCmd(a *app) *cobra.Command {
	var url string
	var full bool
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Show which pages were collected and how they were chunked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			pages := a.newCollector().Collect(cmd.Context(), url)
			if len(pages) == 0 {
				return fmt.Errorf("scrape %s: %w", url, chatbot.ErrEmptyCorpus)
			}

			corpus := loader.LoadAndChunkAll(pages, a.cfg.Chunker.Size)
			fmt.Fprintf(out, "Fetched %d pages, %d chunks:\n\n", len(pages), corpus.Len())

			for _, page := range pages {
				chunks := loader.ChunkDocument(page.URL, page.Text, a.cfg.Chunker.Size)
				fmt.Fprintf(out, "%s | %d chars | %d chunks\n", page.URL, len([]rune(page.Text)), len(chunks))
				if !full {
					continue
				}
				for _, c := range chunks {
					fmt.Fprintf(out, "\n[offset %d]\n%s\n", c.Offset, c.Content)
				}
				fmt.Fprintln(out, "\n"+strings.Repeat("-", 80)+"\n")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "company website URL")
	cmd.Flags().BoolVar(&full, "full", false, "print every chunk")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

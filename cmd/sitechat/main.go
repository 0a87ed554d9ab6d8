package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/perbu/sitechat/pkg/config"
	"github.com/perbu/sitechat/pkg/telemetry"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	configPath string
	verbose    bool

	cfg     config.Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func main() {
	// Load .env file if it exists (for API key)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "sitechat",
		Short:         "Answer questions about a company from its own website",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: sitechat.yaml in . or ./config)")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(newChatCmd(a), newAskCmd(a), newScrapeCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	a.metrics = telemetry.NewMetrics()
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.Serve(cmd.Context(), addr, a.logger); err != nil {
				a.logger.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	return nil
}

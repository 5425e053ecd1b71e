package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/monitor"
	"github.com/blackdavinci/guinea-election-monitor/internal/storage"
)

var (
	cfgFile      string
	verbose      bool
	sourcesFile  string
	keywordsFile string
	envFile      string
)

// errRunFailed makes the process exit non-zero without printing usage.
var errRunFailed = errors.New("every source failed")

func main() {
	rootCmd := &cobra.Command{
		Use:   "electionwatch",
		Short: "electionwatch: Guinean election news monitor",
		Long: `electionwatch crawls Guinean news sites for election coverage.

It walks each source's category listings over a date window, extracts the
articles, scores them against a weighted keyword taxonomy or an election
vocabulary count, drops duplicates and stores what is new.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&sourcesFile, "sources", "", "sources file (overrides sources_file)")
	rootCmd.PersistentFlags().StringVar(&keywordsFile, "keywords", "", "keywords file (overrides keywords_file)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(testSourceCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the env file, the config file and the CLI overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if sourcesFile != "" {
		cfg.SourcesFile = sourcesFile
	}
	if keywordsFile != "" {
		cfg.KeywordsFile = keywordsFile
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app bundles what every crawling command needs.
type app struct {
	cfg     *config.Config
	catalog *config.Catalog
	store   storage.ArticleStore
	monitor *monitor.Monitor
	logger  *slog.Logger
}

func newApp(ctx context.Context, opts ...monitor.Option) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.Logging)

	catalog, err := config.LoadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	logger.Debug("storage ready", "backend", store.Name())

	return &app{
		cfg:     cfg,
		catalog: catalog,
		store:   store,
		monitor: monitor.New(cfg, catalog, store, logger, opts...),
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("storage close failed", "error", err)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// setupLogger creates a structured logger.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

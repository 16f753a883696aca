// Package main provides the crawler command: search note for a query,
// crawl every new author's notes and record the query's keys.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"notecrawl/internal/checkpoint"
	"notecrawl/internal/config"
	"notecrawl/internal/crawler"
	"notecrawl/internal/formatter"
	"notecrawl/internal/logger"
	"notecrawl/internal/output"
	"notecrawl/internal/pipeline"
	"notecrawl/internal/registry"
)

const defaultConfigPath = "configs/crawler.yaml"

type options struct {
	Config           string `short:"c" long:"config" env:"NOTECRAWL_CONFIG" description:"Path to YAML configuration file (default: configs/crawler.yaml when present)"`
	Query            string `short:"q" long:"query" env:"NOTECRAWL_QUERY" description:"Search query" required:"true"`
	DataDir          string `long:"data-dir" env:"NOTECRAWL_DATA_DIR" description:"Output base directory (overrides config)"`
	Registry         string `long:"registry" env:"NOTECRAWL_REGISTRY" choice:"csv" choice:"sqlite" description:"Query key registry backend (overrides config)"`
	LogLevel         string `long:"log-level" env:"NOTECRAWL_LOG_LEVEL" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level (overrides config)"`
	Size             int    `long:"size" env:"NOTECRAWL_PAGE_SIZE" description:"Search page size (overrides config)"`
	Batches          int    `long:"batches" env:"NOTECRAWL_MAX_BATCHES" description:"Maximum search pages (overrides config)"`
	MaxPages         int    `long:"max-pages" env:"NOTECRAWL_MAX_PAGES" description:"Maximum listing pages per author (overrides config)"`
	IntervalMs       int    `long:"interval-ms" env:"NOTECRAWL_INTERVAL_MS" default:"-1" description:"Wait between successful requests in ms (overrides config)"`
	StartAt          int    `long:"start-at" default:"-1" description:"Ignore the stored checkpoint and start at this author index"`
	ResolveQueryKeys bool   `long:"resolve-query-keys" description:"Also fetch every query article in full by key"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options

	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}

		return fmt.Errorf("failed to parse arguments: %w", err)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	log.Info("🕷️  note crawler", "query", opts.Query, "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := crawler.NewClient(cfg.Retry, cfg.API.UserAgent, log)
	resolver := crawler.NewResolver(client, cfg.API.NoteURL, log)

	reg, err := registry.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer reg.Close()

	orch := pipeline.NewOrchestrator(
		crawler.NewQueryFetcher(client, cfg.API.SearchURL, log),
		crawler.NewUserCrawler(client, resolver, cfg.API.CreatorURL, log),
		resolver,
		checkpoint.NewStore(cfg, log),
		reg,
		output.NewWriter(cfg),
		log,
	)

	res, err := orch.Run(ctx, pipeline.Options{
		Query:            opts.Query,
		PageSize:         cfg.Pacing.PageSize,
		MaxBatches:       cfg.Pacing.MaxBatches,
		MaxPages:         cfg.Pacing.MaxPages,
		Interval:         cfg.Pacing.RequestInterval(),
		CheckpointEvery:  cfg.Checkpoint.Every,
		StartAt:          opts.StartAt,
		ResolveQueryKeys: opts.ResolveQueryKeys,
		ClearOnComplete:  cfg.Checkpoint.ClearOnComplete,
	})

	if res != nil {
		fmt.Println(formatter.RenderSummary(res.Summary))
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted, rerun with the same query to resume: %w", err)
	}

	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	fmt.Printf("✅ Saved to: %s\n", cfg.QueryDir(opts.Query))

	return nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	path := opts.Config
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg := config.DefaultConfig()

	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}

		cfg = loaded
	}

	if opts.DataDir != "" {
		cfg.Output.BasePath = opts.DataDir
	}

	if opts.Registry != "" {
		cfg.Registry.Backend = opts.Registry
	}

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	if opts.Size > 0 {
		cfg.Pacing.PageSize = opts.Size
	}

	if opts.Batches > 0 {
		cfg.Pacing.MaxBatches = opts.Batches
	}

	if opts.MaxPages > 0 {
		cfg.Pacing.MaxPages = opts.MaxPages
	}

	if opts.IntervalMs >= 0 {
		cfg.Pacing.RequestIntervalMs = opts.IntervalMs
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

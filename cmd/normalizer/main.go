// Package main provides the normalizer command: replay a saved raw search
// snapshot into the normalized query table without touching the network.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"notecrawl/internal/config"
	"notecrawl/internal/logger"
	"notecrawl/internal/models"
	"notecrawl/internal/normalizer"
	"notecrawl/internal/output"
	"notecrawl/internal/registry"
)

type options struct {
	Config  string `short:"c" long:"config" env:"NOTECRAWL_CONFIG" description:"Path to YAML configuration file"`
	Query   string `short:"q" long:"query" required:"true" description:"Query whose raw snapshot is replayed"`
	Input   string `short:"i" long:"input" description:"Raw snapshot path (default: the query's saved snapshot)"`
	NewOnly bool   `long:"new-only" description:"Drop records whose key is already registered"`
	Authors bool   `long:"authors" description:"Print the authors a crawl of these records would visit"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options

	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}

		return err
	}

	cfg := config.DefaultConfig()

	if opts.Config != "" {
		loaded, err := config.LoadConfig(opts.Config)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg = loaded
	}

	log := logger.NewLogger(cfg.Logging.Level)
	writer := output.NewWriter(cfg)

	input := opts.Input
	if input == "" {
		input = writer.Path(opts.Query, output.RawQuerySuffix)
	}

	content, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("error reading snapshot: %w", err)
	}

	fmt.Printf("📂 Reading: %s (%d bytes)\n", input, len(content))

	var raw []json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return fmt.Errorf("error parsing snapshot: %w", err)
	}

	records, rejected := normalizer.NewProcessor().ProcessSearch(raw)
	fmt.Printf("📊 Parsed: %d records, %d skipped\n", len(records), len(rejected))

	for _, r := range rejected {
		log.Warn("skipped search item", "index", r.Index, "error", r.Err)
	}

	if opts.NewOnly {
		reg, err := registry.Open(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to open registry: %w", err)
		}
		defer reg.Close()

		known, err := reg.Load(context.Background())
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}

		records = registry.Filter(records, known)
		fmt.Printf("🔍 %d records not yet registered\n", len(records))
	}

	path, err := writer.WriteQueryRecords(opts.Query, records)
	if err != nil {
		return err
	}

	if opts.Authors {
		for i, handle := range models.DistinctAuthors(records) {
			fmt.Printf("%6d  %s\n", i, handle)
		}
	}

	fmt.Printf("✅ Saved to: %s\n", path)

	return nil
}

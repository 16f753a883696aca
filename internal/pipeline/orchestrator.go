// Package pipeline sequences one crawl: query batch, normalization,
// registry filtering, resumable author crawling and output.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notecrawl/internal/checkpoint"
	"notecrawl/internal/formatter"
	"notecrawl/internal/logger"
	"notecrawl/internal/models"
	"notecrawl/internal/normalizer"
	"notecrawl/internal/output"
	"notecrawl/internal/registry"
)

// Run errors.
var (
	ErrInvalidOptions    = errors.New("invalid crawl options")
	ErrCorruptCheckpoint = errors.New("checkpoint does not fit its author list")
)

// QueryFetcher pulls raw search items for a query.
type QueryFetcher interface {
	FetchBatches(ctx context.Context, query string, size, maxBatches int, interval time.Duration) ([]json.RawMessage, error)
}

// UserCrawler fetches every note of one author.
type UserCrawler interface {
	CrawlUser(ctx context.Context, handle string, maxPages int, interval time.Duration) ([]models.ArticleRecord, error)
}

// BulkResolver resolves many note keys in full.
type BulkResolver interface {
	ResolveAll(ctx context.Context, keys []string, interval time.Duration) ([]*models.Note, error)
}

// CheckpointStore persists author-loop progress per query.
type CheckpointStore interface {
	Save(query string, st checkpoint.State) error
	Load(query string) (checkpoint.State, error)
	Clear(query string) error
}

// Options parameterise one run.
type Options struct {
	Query            string
	PageSize         int
	MaxBatches       int
	MaxPages         int
	Interval         time.Duration
	CheckpointEvery  int
	StartAt          int // negative resumes from the stored checkpoint
	ResolveQueryKeys bool
	ClearOnComplete  bool
}

func (o Options) validate() error {
	switch {
	case o.Query == "":
		return fmt.Errorf("%w: empty query", ErrInvalidOptions)
	case o.PageSize < 1, o.MaxBatches < 1, o.MaxPages < 1:
		return fmt.Errorf("%w: page size, batches and pages must be positive", ErrInvalidOptions)
	case o.CheckpointEvery < 1:
		return fmt.Errorf("%w: checkpoint interval must be positive", ErrInvalidOptions)
	}

	return nil
}

// AuthorResult is the outcome of crawling one author.
type AuthorResult struct {
	Err     error
	Handle  string
	Records []models.ArticleRecord
}

// Result is what a run produced.
type Result struct {
	Matched []models.ArticleRecord
	All     []models.ArticleRecord
	Summary formatter.Summary
}

// Orchestrator wires the crawl components together. It holds no state
// between runs.
type Orchestrator struct {
	fetcher    QueryFetcher
	crawler    UserCrawler
	resolver   BulkResolver
	checkpoint CheckpointStore
	registry   registry.Registry
	writer     *output.Writer
	processor  *normalizer.Processor
	logger     *logger.Logger
}

// NewOrchestrator creates an orchestrator. resolver may be nil when query
// keys are never resolved.
func NewOrchestrator(
	fetcher QueryFetcher,
	crawler UserCrawler,
	resolver BulkResolver,
	checkpoint CheckpointStore,
	reg registry.Registry,
	writer *output.Writer,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		crawler:    crawler,
		resolver:   resolver,
		checkpoint: checkpoint,
		registry:   reg,
		writer:     writer,
		processor:  normalizer.NewProcessor(),
		logger:     log,
	}
}

// Run performs one crawl for opts.Query. When ctx is canceled during the
// author loop the checkpoint is saved, the registry is left untouched and
// the partial result is returned with ctx's error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.logger.With("run_id", runID, "query", opts.Query)

	result := &Result{Summary: formatter.Summary{RunID: runID, Query: opts.Query}}

	raw, err := o.fetcher.FetchBatches(ctx, opts.Query, opts.PageSize, opts.MaxBatches, opts.Interval)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if err != nil {
		log.Warn("query fetch incomplete, continuing with fetched items", "items", len(raw), "error", err)
	}

	if _, err := o.writer.WriteRawQuery(opts.Query, raw); err != nil {
		return nil, fmt.Errorf("save raw query: %w", err)
	}

	queryRecords, rejected := o.processor.ProcessSearch(raw)
	for _, r := range rejected {
		log.Warn("search item skipped", "index", r.Index, "error", r.Err)
	}

	if _, err := o.writer.WriteQueryRecords(opts.Query, queryRecords); err != nil {
		return nil, fmt.Errorf("save query records: %w", err)
	}

	result.Summary.QueryRecords = len(queryRecords)

	if opts.ResolveQueryKeys {
		if err := o.resolveQueryKeys(ctx, log, opts, queryRecords); err != nil {
			return nil, err
		}
	}

	known, err := o.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	fresh := registry.Filter(queryRecords, known)
	result.Summary.NewRecords = len(fresh)
	log.Info("query records filtered", "total", len(queryRecords), "new", len(fresh))

	authors := models.DistinctAuthors(fresh)
	fingerprint := models.AuthorsFingerprint(authors)

	accumulated, start, err := o.resumePoint(log, opts, authors, fingerprint)
	if err != nil {
		return nil, err
	}

	result.Summary.ResumedFrom = start

	accumulated, processed, interrupted := o.crawlAuthors(ctx, log, opts, authors, fingerprint, start, accumulated, &result.Summary)

	if len(authors) > 0 {
		st := checkpoint.State{Authors: fingerprint, Processed: processed, Records: accumulated}
		if err := o.checkpoint.Save(opts.Query, st); err != nil {
			return nil, fmt.Errorf("save checkpoint: %w", err)
		}
	}

	result.All = accumulated
	result.Matched = normalizer.MatchQuery(accumulated, fresh)
	result.Summary.UserRecords = len(result.All)
	result.Summary.Matched = len(result.Matched)

	if interrupted {
		result.Summary.Interrupted = true
		log.Warn("run interrupted", "processed", processed, "authors", len(authors))

		return result, ctx.Err()
	}

	added, err := o.registry.Append(ctx, models.Keys(fresh))
	if err != nil {
		return nil, fmt.Errorf("append registry: %w", err)
	}

	result.Summary.Registered = added

	if _, err := o.writer.WriteUserRecords(opts.Query, result.All); err != nil {
		return nil, fmt.Errorf("save user records: %w", err)
	}

	if _, err := o.writer.WriteMatchedRecords(opts.Query, result.Matched); err != nil {
		return nil, fmt.Errorf("save matched records: %w", err)
	}

	if opts.ClearOnComplete && len(authors) > 0 {
		if err := o.checkpoint.Clear(opts.Query); err != nil {
			log.Warn("failed to clear checkpoint", "error", err)
		}
	}

	log.Info("run complete", "authors", len(authors), "records", len(result.All), "matched", len(result.Matched), "registered", added)

	return result, nil
}

func (o *Orchestrator) resolveQueryKeys(ctx context.Context, log *logger.Logger, opts Options, records []models.ArticleRecord) error {
	if o.resolver == nil {
		return fmt.Errorf("%w: no resolver configured", ErrInvalidOptions)
	}

	notes, err := o.resolver.ResolveAll(ctx, models.Keys(records), opts.Interval)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if err != nil {
		log.Warn("query key resolution incomplete", "resolved", len(notes), "total", len(records), "error", err)
	}

	if _, err := o.writer.WriteResolvedNotes(opts.Query, notes); err != nil {
		return fmt.Errorf("save resolved notes: %w", err)
	}

	return nil
}

// resumePoint returns the records and author index to continue from. A
// stored checkpoint only counts when it was taken against the same author
// list; any other checkpoint is discarded.
func (o *Orchestrator) resumePoint(log *logger.Logger, opts Options, authors []string, fingerprint string) ([]models.ArticleRecord, int, error) {
	if opts.StartAt >= 0 {
		if err := o.checkpoint.Clear(opts.Query); err != nil {
			return nil, 0, fmt.Errorf("clear checkpoint: %w", err)
		}

		log.Info("starting at requested author index", "start", opts.StartAt, "authors", len(authors))

		return nil, min(opts.StartAt, len(authors)), nil
	}

	st, err := o.checkpoint.Load(opts.Query)
	if err != nil {
		return nil, 0, fmt.Errorf("load checkpoint: %w", err)
	}

	if st.Authors == "" && st.Processed == 0 && len(st.Records) == 0 {
		return nil, 0, nil
	}

	if st.Authors != fingerprint {
		log.Warn("checkpoint taken for a different author list, starting over",
			"processed", st.Processed, "records", len(st.Records), "authors", len(authors))

		if err := o.checkpoint.Clear(opts.Query); err != nil {
			return nil, 0, fmt.Errorf("clear checkpoint: %w", err)
		}

		return nil, 0, nil
	}

	if st.Processed > len(authors) {
		return nil, 0, fmt.Errorf("%w: processed %d of %d authors", ErrCorruptCheckpoint, st.Processed, len(authors))
	}

	log.Info("resuming from checkpoint", "processed", st.Processed, "authors", len(authors), "records", len(st.Records))

	return st.Records, st.Processed, nil
}

// crawlAuthors visits authors[start:] in order, saving a checkpoint once
// CheckpointEvery authors have finished since the last save. It returns the
// accumulated records, the index after the last completed author and
// whether ctx was canceled before the list was exhausted.
func (o *Orchestrator) crawlAuthors(
	ctx context.Context,
	log *logger.Logger,
	opts Options,
	authors []string,
	fingerprint string,
	start int,
	accumulated []models.ArticleRecord,
	summary *formatter.Summary,
) ([]models.ArticleRecord, int, bool) {
	processed := start
	lastSaved := start

	for i := start; i < len(authors); i++ {
		if ctx.Err() != nil {
			return accumulated, processed, true
		}

		log.Info("author start fetching", "index", i+1, "authors", len(authors), "author", authors[i])

		res := o.crawlAuthor(ctx, authors[i], opts)
		if res.Err != nil && ctx.Err() != nil {
			return accumulated, processed, true
		}

		processed = i + 1

		if res.Err != nil {
			log.Error("author crawl failed, skipping", "author", res.Handle, "error", res.Err)
			summary.Authors = append(summary.Authors, formatter.AuthorStatus{Handle: res.Handle, Status: "failed: " + res.Err.Error()})
		} else {
			accumulated = append(accumulated, res.Records...)
			summary.Authors = append(summary.Authors, formatter.AuthorStatus{Handle: res.Handle, Records: len(res.Records), Status: "ok"})
		}

		if processed-lastSaved < opts.CheckpointEvery {
			continue
		}

		st := checkpoint.State{Authors: fingerprint, Processed: processed, Records: accumulated}
		if err := o.checkpoint.Save(opts.Query, st); err != nil {
			log.Error("checkpoint save failed", "processed", processed, "error", err)

			continue
		}

		lastSaved = processed
		log.Info("checkpoint saved", "processed", processed, "records", len(accumulated))
	}

	return accumulated, processed, false
}

func (o *Orchestrator) crawlAuthor(ctx context.Context, handle string, opts Options) AuthorResult {
	records, err := o.crawler.CrawlUser(ctx, handle, opts.MaxPages, opts.Interval)
	if err != nil {
		return AuthorResult{Handle: handle, Err: err}
	}

	return AuthorResult{Handle: handle, Records: records}
}

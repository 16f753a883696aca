package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"notecrawl/internal/logger"
)

type searchEnvelope struct {
	Data *struct {
		Notes *struct {
			Contents []json.RawMessage `json:"contents"`
		} `json:"notes"`
	} `json:"data"`
}

// QueryFetcher pulls search result pages for a free-text query.
type QueryFetcher struct {
	client    JSONFetcher
	logger    *logger.Logger
	sleep     Sleeper
	searchURL string
}

// NewQueryFetcher creates a fetcher against the search endpoint.
func NewQueryFetcher(client JSONFetcher, searchURL string, log *logger.Logger) *QueryFetcher {
	return &QueryFetcher{
		client:    client,
		searchURL: searchURL,
		logger:    log,
		sleep:     SleepContext,
	}
}

// SetSleeper replaces the wait used between pages.
func (f *QueryFetcher) SetSleeper(s Sleeper) {
	f.sleep = s
}

// PageURL builds the search URL for one page.
func (f *QueryFetcher) PageURL(query string, size, start int) string {
	params := url.Values{}
	params.Set("context", "note")
	params.Set("q", query)
	params.Set("size", strconv.Itoa(size))
	params.Set("start", strconv.Itoa(start))

	return f.searchURL + "?" + params.Encode()
}

// FetchPage fetches one page of raw search items starting at offset start.
// An empty, non-nil slice means the query has no more results.
func (f *QueryFetcher) FetchPage(ctx context.Context, query string, size, start int) ([]json.RawMessage, error) {
	u := f.PageURL(query, size, start)

	var env searchEnvelope
	if err := f.client.FetchJSON(ctx, u, &env); err != nil {
		return nil, err
	}

	if env.Data == nil || env.Data.Notes == nil {
		return nil, fmt.Errorf("%w: %s: missing data.notes", ErrMalformedResponse, u)
	}

	if env.Data.Notes.Contents == nil {
		return []json.RawMessage{}, nil
	}

	return env.Data.Notes.Contents, nil
}

// FetchBatches fetches up to maxBatches consecutive pages of size items,
// sleeping interval between pages. It stops at the first empty page. On
// error the items accumulated so far are returned together with the error.
func (f *QueryFetcher) FetchBatches(ctx context.Context, query string, size, maxBatches int, interval time.Duration) ([]json.RawMessage, error) {
	var all []json.RawMessage

	for i := 0; i < maxBatches; i++ {
		start := i * size

		page, err := f.FetchPage(ctx, query, size, start)
		if err != nil {
			f.logger.Error("query batch aborted",
				"query", query,
				"batch", i,
				"start", start,
				"fetched", len(all),
				"error", err,
			)

			return all, fmt.Errorf("batch %d: %w", i, err)
		}

		if len(page) == 0 {
			f.logger.Info("query exhausted", "query", query, "batches", i, "items", len(all))

			return all, nil
		}

		all = append(all, page...)
		f.logger.Info("query batch fetched", "query", query, "batch", i+1, "max_batches", maxBatches, "items", len(page))

		if i < maxBatches-1 {
			if err := f.sleep(ctx, interval); err != nil {
				return all, err
			}
		}
	}

	f.logger.Info("query batch limit reached", "query", query, "batches", maxBatches, "items", len(all))

	return all, nil
}

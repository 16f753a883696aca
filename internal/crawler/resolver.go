package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"notecrawl/internal/logger"
	"notecrawl/internal/models"
)

const progressEvery = 10

type noteEnvelope struct {
	Data *models.Note `json:"data"`
}

// Resolver fetches the full payload of a note by its key. Search results
// carry truncated bodies; the by-key endpoint returns the complete note.
type Resolver struct {
	client  JSONFetcher
	logger  *logger.Logger
	sleep   Sleeper
	noteURL string
}

// NewResolver creates a resolver against the by-key endpoint.
func NewResolver(client JSONFetcher, noteURL string, log *logger.Logger) *Resolver {
	return &Resolver{
		client:  client,
		noteURL: strings.TrimRight(noteURL, "/"),
		logger:  log,
		sleep:   SleepContext,
	}
}

// SetSleeper replaces the wait used between bulk resolutions.
func (r *Resolver) SetSleeper(s Sleeper) {
	r.sleep = s
}

// ResolveFull issues one GET for key and returns the decoded note.
func (r *Resolver) ResolveFull(ctx context.Context, key string) (*models.Note, error) {
	u := r.noteURL + "/" + url.PathEscape(key)

	var env noteEnvelope
	if err := r.client.FetchJSON(ctx, u, &env); err != nil {
		return nil, err
	}

	if env.Data == nil {
		return nil, fmt.Errorf("%w: %s: missing data", ErrMalformedResponse, u)
	}

	return env.Data, nil
}

// ResolveAll resolves keys in order, sleeping interval after every call.
// The first failure stops the run and is returned with the notes resolved
// so far.
func (r *Resolver) ResolveAll(ctx context.Context, keys []string, interval time.Duration) ([]*models.Note, error) {
	notes := make([]*models.Note, 0, len(keys))

	for i, key := range keys {
		note, err := r.ResolveFull(ctx, key)
		if err != nil {
			return notes, fmt.Errorf("resolve %s: %w", key, err)
		}

		notes = append(notes, note)

		if (i+1)%progressEvery == 0 {
			r.logger.Info("resolve progress", "done", i+1, "total", len(keys))
		}

		if err := r.sleep(ctx, interval); err != nil {
			return notes, err
		}
	}

	return notes, nil
}

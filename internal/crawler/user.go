package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"notecrawl/internal/logger"
	"notecrawl/internal/models"
	"notecrawl/internal/normalizer"
)

type contentsEnvelope struct {
	Data *struct {
		Contents []struct {
			Key string `json:"key"`
		} `json:"contents"`
	} `json:"data"`
}

// KeyResolver resolves a note key to its full payload.
type KeyResolver interface {
	ResolveFull(ctx context.Context, key string) (*models.Note, error)
}

// UserCrawler walks one author's content listing and resolves every listed
// note in full.
type UserCrawler struct {
	client     JSONFetcher
	resolver   KeyResolver
	processor  *normalizer.Processor
	logger     *logger.Logger
	sleep      Sleeper
	creatorURL string
}

// NewUserCrawler creates a crawler against the creator contents endpoint.
func NewUserCrawler(client JSONFetcher, resolver KeyResolver, creatorURL string, log *logger.Logger) *UserCrawler {
	return &UserCrawler{
		client:     client,
		resolver:   resolver,
		processor:  normalizer.NewProcessor(),
		creatorURL: strings.TrimRight(creatorURL, "/"),
		logger:     log,
		sleep:      SleepContext,
	}
}

// SetSleeper replaces the wait used between pages.
func (c *UserCrawler) SetSleeper(s Sleeper) {
	c.sleep = s
}

// PageURL builds the listing URL for one page of handle's notes.
func (c *UserCrawler) PageURL(handle string, page int) string {
	params := url.Values{}
	params.Set("kind", "note")
	params.Set("page", strconv.Itoa(page))

	return c.creatorURL + "/" + url.PathEscape(handle) + "/contents?" + params.Encode()
}

// CrawlUser pages through handle's listing starting at page 1 until an
// empty page or maxPages, resolving each listed key. Any failure discards
// the records gathered for this user and is returned as is.
func (c *UserCrawler) CrawlUser(ctx context.Context, handle string, maxPages int, interval time.Duration) ([]models.ArticleRecord, error) {
	var records []models.ArticleRecord

	for page := 1; page <= maxPages; page++ {
		u := c.PageURL(handle, page)

		var env contentsEnvelope
		if err := c.client.FetchJSON(ctx, u, &env); err != nil {
			return nil, fmt.Errorf("user %s page %d: %w", handle, page, err)
		}

		if env.Data == nil {
			return nil, fmt.Errorf("%w: %s: missing data", ErrMalformedResponse, u)
		}

		if len(env.Data.Contents) == 0 {
			c.logger.Debug("user listing exhausted", "user", handle, "pages", page-1, "records", len(records))

			return records, nil
		}

		for _, item := range env.Data.Contents {
			if item.Key == "" {
				return nil, fmt.Errorf("%w: %s: listing item without key", ErrMalformedResponse, u)
			}

			note, err := c.resolver.ResolveFull(ctx, item.Key)
			if err != nil {
				return nil, fmt.Errorf("user %s note %s: %w", handle, item.Key, err)
			}

			rec, err := c.processor.ProcessNote(note, handle)
			if err != nil {
				return nil, fmt.Errorf("user %s note %s: %w", handle, item.Key, err)
			}

			records = append(records, rec)
		}

		c.logger.Debug("user page fetched", "user", handle, "page", page, "items", len(env.Data.Contents))

		if err := c.sleep(ctx, interval); err != nil {
			return nil, err
		}
	}

	c.logger.Warn("user page limit reached", "user", handle, "max_pages", maxPages, "records", len(records))

	return records, nil
}

package pipeline_test

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notecrawl/internal/checkpoint"
	"notecrawl/internal/config"
	"notecrawl/internal/crawler"
	"notecrawl/internal/logger"
	"notecrawl/internal/output"
	"notecrawl/internal/pipeline"
	"notecrawl/internal/registry"
)

// fakeNote serves the three note endpoints. alice has one listing page,
// bob's listing always fails.
type fakeNote struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeNote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.Path+"?"+r.URL.RawQuery)
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/v3/searches":
		if r.URL.Query().Get("start") != "0" {
			_, _ = w.Write([]byte(`{"data":{"notes":{"contents":[]}}}`))

			return
		}

		_, _ = w.Write([]byte(`{"data":{"notes":{"contents":[
			{"id":11,"key":"na1","name":"猫と暮らす","publish_at":"2024-01-01T09:00:00+09:00","can_read":true,"user":{"id":1,"urlname":"alice","name":"Alice"}},
			{"id":21,"key":"nb1","name":"猫の写真","publish_at":"2024-01-02T09:00:00+09:00","can_read":true,"user":{"id":2,"urlname":"bob","name":"Bob"}},
			{"id":12,"key":"na2","name":"また猫","publish_at":"2024-01-03T09:00:00+09:00","can_read":true,"user":{"id":1,"urlname":"alice","name":"Alice"}}
		]}}}`))
	case r.URL.Path == "/api/v2/creators/alice/contents":
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"data":{"contents":[{"key":"na1"},{"key":"na2"},{"key":"na3"}]}}`))

			return
		}

		_, _ = w.Write([]byte(`{"data":{"contents":[]}}`))
	case strings.HasPrefix(r.URL.Path, "/api/v3/notes/"):
		key := strings.TrimPrefix(r.URL.Path, "/api/v3/notes/")
		id := map[string]int{"na1": 11, "na2": 12, "na3": 13}[key]
		fmt.Fprintf(w, `{"data":{"id":%d,"key":%q,"name":"full %s","body":"<p>full</p>","status":"published","type":"TextNote","created_at":"2024-01-01T00:00:00+09:00","can_read":true,"user_id":1,"user":{"id":1,"key":"uk1","urlname":"alice","nickname":"アリス","note_count":3}}}`, id, key, key)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (f *fakeNote) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}

	return n
}

func newPipeline(t *testing.T, cfg *config.Config) (*pipeline.Orchestrator, func()) {
	t.Helper()

	log := logger.Discard()
	client := crawler.NewClient(cfg.Retry, cfg.API.UserAgent, log)
	resolver := crawler.NewResolver(client, cfg.API.NoteURL, log)

	reg, err := registry.Open(cfg, log)
	require.NoError(t, err)

	orch := pipeline.NewOrchestrator(
		crawler.NewQueryFetcher(client, cfg.API.SearchURL, log),
		crawler.NewUserCrawler(client, resolver, cfg.API.CreatorURL, log),
		resolver,
		checkpoint.NewStore(cfg, log),
		reg,
		output.NewWriter(cfg),
		log,
	)

	return orch, func() { _ = reg.Close() }
}

func TestPipeline_EndToEnd(t *testing.T) {
	api := &fakeNote{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.API.SearchURL = srv.URL + "/api/v3/searches"
	cfg.API.NoteURL = srv.URL + "/api/v3/notes"
	cfg.API.CreatorURL = srv.URL + "/api/v2/creators"
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.DelayMs = 0
	cfg.Pacing.RequestIntervalMs = 0
	cfg.Registry.Backend = config.RegistrySQLite
	cfg.Output.BasePath = t.TempDir()
	require.NoError(t, cfg.Validate())

	opts := pipeline.Options{
		Query:           "猫",
		PageSize:        3,
		MaxBatches:      10,
		MaxPages:        5,
		CheckpointEvery: 10,
		StartAt:         -1,
		ClearOnComplete: true,
	}

	orch, closeReg := newPipeline(t, cfg)

	res, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)
	closeReg()

	assert.Equal(t, 2, api.count("/api/v3/searches"))
	assert.Equal(t, 2, api.count("/api/v2/creators/bob/contents"), "bob is retried then skipped")
	assert.Equal(t, 2, api.count("/api/v2/creators/alice/contents"))

	require.Len(t, res.All, 3)
	assert.Equal(t, "アリス", res.All[0].AuthorName)
	assert.Equal(t, "<p>full</p>", res.All[0].Body)
	assert.Len(t, res.Matched, 2, "na1 and na2 were query hits")
	assert.Equal(t, 3, res.Summary.Registered)

	f, err := os.Open(filepath.Join(cfg.QueryDir("猫"), "猫_user_all_post_df.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	// a second run finds every query key registered and crawls nobody
	orch, closeReg = newPipeline(t, cfg)
	defer closeReg()

	res, err = orch.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Zero(t, res.Summary.NewRecords)
	assert.Equal(t, 2, api.count("/api/v2/creators/alice/contents"))
	assert.Equal(t, 2, api.count("/api/v2/creators/bob/contents"))
}

package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notecrawl/internal/logger"
	"notecrawl/internal/models"
)

type dirLayout string

func (d dirLayout) QueryDir(query string) string {
	return filepath.Join(string(d), query)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir := t.TempDir()

	return NewStore(dirLayout(dir), logger.Discard()), dir
}

func sampleRecords() []models.ArticleRecord {
	return []models.ArticleRecord{
		{
			ID:              1,
			AuthorID:        10,
			Key:             "n1",
			Title:           "title, with comma",
			Body:            "line one\r\nline \"two\"\n<p>three</p>",
			PublishedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			CreatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			CanRead:         true,
			AuthorHandle:    "alice",
			AuthorName:      "アリス",
			AuthorNoteCount: 12,
		},
		{ID: 2, Key: "n2", AuthorHandle: "bob"},
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	st, err := store.Load("cats")

	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	want := sampleRecords()

	require.NoError(t, store.Save("cats", State{Authors: "fp", Processed: 10, Records: want}))

	st, err := store.Load("cats")
	require.NoError(t, err)
	assert.Equal(t, 10, st.Processed)
	assert.Equal(t, "fp", st.Authors)
	require.Len(t, st.Records, 2)
	assert.Equal(t, want[0].Body, st.Records[0].Body, "bodies survive byte for byte, CRLF included")
	assert.Equal(t, want[0].Title, st.Records[0].Title)
	assert.True(t, want[0].PublishedAt.Equal(st.Records[0].PublishedAt))
	assert.True(t, st.Records[1].PublishedAt.IsZero())
	assert.Equal(t, want[0].AuthorName, st.Records[0].AuthorName)
	assert.Equal(t, want[1].Key, st.Records[1].Key)
}

func TestStore_SaveOverwritesPreviousSnapshot(t *testing.T) {
	store, dir := newTestStore(t)
	records := sampleRecords()

	require.NoError(t, store.Save("cats", State{Processed: 10, Records: records[:1]}))
	require.NoError(t, store.Save("cats", State{Processed: 20, Records: records}))

	assert.NoFileExists(t, store.SnapshotPath("cats", 10))
	assert.FileExists(t, store.SnapshotPath("cats", 20))

	counter, err := os.ReadFile(filepath.Join(dir, "cats", "checkpoint"))
	require.NoError(t, err)
	assert.Equal(t, "20", string(counter))

	st, err := store.Load("cats")
	require.NoError(t, err)
	assert.Equal(t, 20, st.Processed)
	assert.Len(t, st.Records, 2)
}

func TestStore_SaveSameCountReplaces(t *testing.T) {
	store, _ := newTestStore(t)
	records := sampleRecords()

	require.NoError(t, store.Save("cats", State{Processed: 3, Records: records}))
	require.NoError(t, store.Save("cats", State{Processed: 3, Records: records[:1]}))

	st, err := store.Load("cats")
	require.NoError(t, err)
	assert.Len(t, st.Records, 1)
}

func TestStore_SaveRejectsRegression(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("cats", State{Processed: 5}))
	require.ErrorIs(t, store.Save("cats", State{Processed: 4}), ErrCounterRegression)
}

func TestStore_ScopedPerQuery(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("cats", State{Processed: 5, Records: sampleRecords()}))

	st, err := store.Load("dogs")
	require.NoError(t, err)
	assert.Zero(t, st.Processed)
}

func TestStore_LoadErrors(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cats"), 0755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cats", "checkpoint"), []byte("ten"), 0644))
	_, err := store.Load("cats")
	require.ErrorIs(t, err, ErrBadCounter)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cats", "checkpoint"), []byte("7\n"), 0644))
	_, err = store.Load("cats")
	require.ErrorIs(t, err, ErrMissingSnapshot)

	require.NoError(t, os.WriteFile(store.SnapshotPath("cats", 7), []byte("{\"key\":\"n1\"}\nnot json\n"), 0644))
	_, err = store.Load("cats")
	require.ErrorIs(t, err, ErrBadSnapshot)
}

func TestStore_Clear(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, store.Clear("cats"), "clearing an absent checkpoint is a no-op")
	require.NoError(t, store.Save("cats", State{Authors: "fp", Processed: 2, Records: sampleRecords()}))
	require.NoError(t, store.Clear("cats"))

	assert.NoFileExists(t, store.SnapshotPath("cats", 2))
	assert.NoFileExists(t, filepath.Join(dir, "cats", "checkpoint_authors"))

	st, err := store.Load("cats")
	require.NoError(t, err)
	assert.Zero(t, st.Processed)

	require.NoError(t, store.Save("cats", State{Authors: "other", Processed: 1}), "a cleared scope accepts a lower count")
}

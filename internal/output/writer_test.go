package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notecrawl/internal/models"
	"notecrawl/internal/normalizer"
)

type dirLayout string

func (d dirLayout) QueryDir(query string) string {
	return filepath.Join(string(d), query)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	return rows
}

func TestWriter_WriteRawQuery(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dirLayout(dir))

	path, err := w.WriteRawQuery("cats", []json.RawMessage{json.RawMessage(`{"key":"n1"}`)})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cats", "cats_fetched_query_raw.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"key":"n1"}]`, string(data))

	path, err = w.WriteRawQuery("empty", nil)
	require.NoError(t, err)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestWriter_WriteRawQueryKeepsItemBytes(t *testing.T) {
	w := NewWriter(dirLayout(t.TempDir()))

	items := []json.RawMessage{
		json.RawMessage(`{"key":"n1",  "name":"a\u003cb>"}`),
		json.RawMessage("{\n\t\"key\": \"n2\",\"count\":1.50}"),
	}

	path, err := w.WriteRawQuery("cats", items)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "[\n" + string(items[0]) + ",\n" + string(items[1]) + "\n]\n"
	assert.Equal(t, want, string(data))

	var decoded []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, items, decoded)

	_, err = w.WriteRawQuery("cats", []json.RawMessage{json.RawMessage(`{"key":`)})
	require.Error(t, err)
}

func TestWriter_WriteUserRecords(t *testing.T) {
	w := NewWriter(dirLayout(t.TempDir()))

	path, err := w.WriteUserRecords("cats", []models.ArticleRecord{
		{ID: 1, Key: "n1", Body: "multi\nline, body", AuthorHandle: "alice"},
	})
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, normalizer.SelectedColumns, rows[0])
	assert.Equal(t, "multi\nline, body", rows[1][7])
}

func TestWriter_WriteQueryAndMatched(t *testing.T) {
	w := NewWriter(dirLayout(t.TempDir()))

	path, err := w.WriteQueryRecords("cats", []models.ArticleRecord{{ID: 3, Key: "n3"}})
	require.NoError(t, err)
	assert.Equal(t, normalizer.SearchColumns, readCSV(t, path)[0])

	path, err = w.WriteMatchedRecords("cats", nil)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, path), 1, "header only")
}

func TestWriter_WriteResolvedNotes(t *testing.T) {
	w := NewWriter(dirLayout(t.TempDir()))

	path, err := w.WriteResolvedNotes("cats", []*models.Note{{Key: "n1", Body: "full"}})
	require.NoError(t, err)

	var notes []models.Note

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "full", notes[0].Body)
}

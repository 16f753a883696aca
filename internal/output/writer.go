// Package output writes run artifacts under each query's directory.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"notecrawl/internal/models"
	"notecrawl/internal/normalizer"
	"notecrawl/pkg/utils"
)

// Artifact file suffixes, prefixed by the query.
const (
	RawQuerySuffix       = "_fetched_query_raw.json"
	QueryRecordsSuffix   = "_fetched_df.csv"
	ResolvedRawSuffix    = "_fetched_query_keys_all_raw.json"
	UserRecordsSuffix    = "_user_all_post_df.csv"
	MatchedRecordsSuffix = "_fetched_query_keys_all_df.csv"
)

// Layout maps a query to the directory that holds its artifacts.
type Layout interface {
	QueryDir(query string) string
}

// Writer persists raw payloads and record tables.
type Writer struct {
	layout  Layout
	strings *utils.StringHelper
}

// NewWriter creates a writer for layout.
func NewWriter(layout Layout) *Writer {
	return &Writer{
		layout:  layout,
		strings: utils.NewStringHelper(),
	}
}

// Path returns the artifact path for query with the given suffix.
func (w *Writer) Path(query, suffix string) string {
	return filepath.Join(w.layout.QueryDir(query), w.strings.PathSegment(query)+suffix)
}

// WriteRawQuery stores the raw search items as a JSON array. Each item is
// written byte for byte as fetched, one per line.
func (w *Writer) WriteRawQuery(query string, raw []json.RawMessage) (string, error) {
	var buf bytes.Buffer

	buf.WriteByte('[')

	for i, item := range raw {
		if !json.Valid(item) {
			return "", fmt.Errorf("failed to write raw item %d: invalid JSON", i)
		}

		if i > 0 {
			buf.WriteByte(',')
		}

		buf.WriteString("\n")
		buf.Write(item)
	}

	if len(raw) > 0 {
		buf.WriteByte('\n')
	}

	buf.WriteString("]\n")

	return w.writeFile(w.Path(query, RawQuerySuffix), buf.Bytes())
}

// WriteResolvedNotes stores notes resolved by key.
func (w *Writer) WriteResolvedNotes(query string, notes []*models.Note) (string, error) {
	if notes == nil {
		notes = []*models.Note{}
	}

	return w.writeJSON(w.Path(query, ResolvedRawSuffix), notes)
}

// WriteQueryRecords stores the normalized search records.
func (w *Writer) WriteQueryRecords(query string, records []models.ArticleRecord) (string, error) {
	return w.writeCSV(w.Path(query, QueryRecordsSuffix), normalizer.SearchColumns, normalizer.SearchRows(records))
}

// WriteUserRecords stores every record crawled from authors.
func (w *Writer) WriteUserRecords(query string, records []models.ArticleRecord) (string, error) {
	return w.writeCSV(w.Path(query, UserRecordsSuffix), normalizer.SelectedColumns, normalizer.SelectColumns(records))
}

// WriteMatchedRecords stores the crawled records that match the query.
func (w *Writer) WriteMatchedRecords(query string, records []models.ArticleRecord) (string, error) {
	return w.writeCSV(w.Path(query, MatchedRecordsSuffix), normalizer.SelectedColumns, normalizer.SelectColumns(records))
}

func (w *Writer) writeJSON(path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return w.writeFile(path, data)
}

func (w *Writer) writeFile(path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}

func (w *Writer) writeCSV(path string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)

	if err := cw.Write(header); err != nil {
		return "", err
	}

	if err := cw.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}

// Package checkpoint persists per-query crawl progress: a count of authors
// processed, a snapshot of every record gathered so far and the fingerprint
// of the author list the count indexes into.
//
// Each query directory holds a counter file named "checkpoint", the author
// fingerprint in "checkpoint_authors" and one snapshot
// "<query>_checkpoint_<count>.jsonl". A save replaces all three.
package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"notecrawl/internal/logger"
	"notecrawl/internal/models"
	"notecrawl/pkg/utils"
)

const (
	counterFile     = "checkpoint"
	fingerprintFile = "checkpoint_authors"
)

// Checkpoint errors.
var (
	ErrCounterRegression = errors.New("checkpoint counter cannot decrease")
	ErrBadCounter        = errors.New("bad checkpoint counter")
	ErrMissingSnapshot   = errors.New("checkpoint snapshot missing")
)

// Layout maps a query to the directory that holds its artifacts.
type Layout interface {
	QueryDir(query string) string
}

// State is one saved checkpoint. Processed indexes into the author list
// identified by Authors.
type State struct {
	Authors   string
	Records   []models.ArticleRecord
	Processed int
}

// Store reads and writes checkpoints under a Layout.
type Store struct {
	layout  Layout
	logger  *logger.Logger
	strings *utils.StringHelper
}

// NewStore creates a checkpoint store.
func NewStore(layout Layout, log *logger.Logger) *Store {
	return &Store{
		layout:  layout,
		logger:  log,
		strings: utils.NewStringHelper(),
	}
}

// SnapshotPath returns the snapshot file for query at the given count.
func (s *Store) SnapshotPath(query string, processed int) string {
	name := fmt.Sprintf("%s_checkpoint_%d.jsonl", s.strings.PathSegment(query), processed)

	return filepath.Join(s.layout.QueryDir(query), name)
}

func (s *Store) counterPath(query string) string {
	return filepath.Join(s.layout.QueryDir(query), counterFile)
}

func (s *Store) fingerprintPath(query string) string {
	return filepath.Join(s.layout.QueryDir(query), fingerprintFile)
}

// Save overwrites the checkpoint for query. The snapshot and fingerprint
// are written before the counter so a crash never leaves a counter
// pointing at a missing file. Saving a different author list requires a
// Clear first.
func (s *Store) Save(query string, st State) error {
	prev, found, err := s.readCounter(query)
	if err != nil {
		return err
	}

	if found && st.Processed < prev {
		return fmt.Errorf("%w: %d < %d", ErrCounterRegression, st.Processed, prev)
	}

	if err := os.MkdirAll(s.layout.QueryDir(query), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	var buf bytes.Buffer
	if err := encodeRecords(&buf, st.Records); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := writeAtomic(s.SnapshotPath(query, st.Processed), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := writeAtomic(s.fingerprintPath(query), []byte(st.Authors)); err != nil {
		return fmt.Errorf("failed to write author fingerprint: %w", err)
	}

	if err := writeAtomic(s.counterPath(query), []byte(strconv.Itoa(st.Processed))); err != nil {
		return fmt.Errorf("failed to write counter: %w", err)
	}

	if found && prev != st.Processed {
		if err := os.Remove(s.SnapshotPath(query, prev)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove stale snapshot", "query", query, "count", prev, "error", err)
		}
	}

	s.logger.Debug("checkpoint saved", "query", query, "processed", st.Processed, "records", len(st.Records))

	return nil
}

// Load returns the saved state for query. A query with no checkpoint
// yields the zero State.
func (s *Store) Load(query string) (State, error) {
	processed, found, err := s.readCounter(query)
	if err != nil || !found {
		return State{}, err
	}

	authors, err := os.ReadFile(s.fingerprintPath(query))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return State{}, fmt.Errorf("failed to read author fingerprint: %w", err)
	}

	f, err := os.Open(s.SnapshotPath(query, processed))
	if errors.Is(err, os.ErrNotExist) {
		return State{}, fmt.Errorf("%w: count %d", ErrMissingSnapshot, processed)
	}

	if err != nil {
		return State{}, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	records, err := decodeRecords(f)
	if err != nil {
		return State{}, err
	}

	s.logger.Info("checkpoint loaded", "query", query, "processed", processed, "records", len(records))

	return State{Authors: string(authors), Records: records, Processed: processed}, nil
}

// Clear removes the counter, fingerprint and current snapshot for query.
func (s *Store) Clear(query string) error {
	processed, found, err := s.readCounter(query)
	if err != nil {
		return err
	}

	if found {
		if err := os.Remove(s.counterPath(query)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove counter: %w", err)
		}

		if err := os.Remove(s.SnapshotPath(query, processed)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove snapshot: %w", err)
		}
	}

	if err := os.Remove(s.fingerprintPath(query)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove author fingerprint: %w", err)
	}

	return nil
}

func (s *Store) readCounter(query string) (int, bool, error) {
	data, err := os.ReadFile(s.counterPath(query))
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to read counter: %w", err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%w: %q", ErrBadCounter, data)
	}

	return n, true, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return err
	}

	return os.Rename(tmpName, path)
}

package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrBadRegistryFile is returned when the CSV registry has an unexpected shape.
var ErrBadRegistryFile = errors.New("bad registry file")

const keyColumn = "key"

// CSVRegistry keeps keys in a single-column CSV file with a "key" header.
// The file is created on first append.
type CSVRegistry struct {
	path string
}

// NewCSVRegistry returns a registry backed by the file at path.
func NewCSVRegistry(path string) *CSVRegistry {
	return &CSVRegistry{path: path}
}

// Load reads every registered key. A missing file is an empty registry.
func (r *CSVRegistry) Load(_ context.Context) (KeySet, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return KeySet{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return KeySet{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRegistryFile, err)
	}

	if header[0] != keyColumn {
		return nil, fmt.Errorf("%w: header %q", ErrBadRegistryFile, header[0])
	}

	keys := KeySet{}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return keys, nil
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRegistryFile, err)
		}

		keys[row[0]] = struct{}{}
	}
}

// Append adds keys not yet registered and returns how many were written.
func (r *CSVRegistry) Append(ctx context.Context, keys []string) (int, error) {
	known, err := r.Load(ctx)
	if err != nil {
		return 0, err
	}

	fresh := dedupe(keys, known)
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create registry directory: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open registry: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat registry: %w", err)
	}

	cw := csv.NewWriter(f)

	if info.Size() == 0 {
		if err := cw.Write([]string{keyColumn}); err != nil {
			return 0, err
		}
	}

	for _, k := range fresh {
		if err := cw.Write([]string{k}); err != nil {
			return 0, err
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to write registry: %w", err)
	}

	return len(fresh), nil
}

// Close is a no-op; the file is opened per call.
func (r *CSVRegistry) Close() error {
	return nil
}

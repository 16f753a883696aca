package checkpoint

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"notecrawl/internal/models"
)

// ErrBadSnapshot is returned when a snapshot file cannot be decoded.
var ErrBadSnapshot = errors.New("bad checkpoint snapshot")

// encodeRecords writes one JSON object per line.
func encodeRecords(w io.Writer, records []models.ArticleRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return err
		}
	}

	return nil
}

func decodeRecords(r io.Reader) ([]models.ArticleRecord, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.DisallowUnknownFields()

	var records []models.ArticleRecord

	for n := 1; ; n++ {
		var rec models.ArticleRecord

		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrBadSnapshot, n, err)
		}

		records = append(records, rec)
	}
}

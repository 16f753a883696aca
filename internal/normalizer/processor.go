// Package normalizer turns raw note API payloads into ArticleRecords and
// projects crawled records onto the output columns.
package normalizer

import (
	"encoding/json"
	"fmt"

	"notecrawl/internal/models"
)

// Processor validates and transforms raw payloads.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
	}
}

// Rejected describes a raw search item that could not be normalized.
type Rejected struct {
	Err   error
	Index int
}

// ProcessSearch normalizes raw search result items. Items that fail
// validation are returned in rejected and never contribute a record.
func (p *Processor) ProcessSearch(raw []json.RawMessage) ([]models.ArticleRecord, []Rejected) {
	records := make([]models.ArticleRecord, 0, len(raw))

	var rejected []Rejected

	for i, item := range raw {
		var note models.Note
		if err := json.Unmarshal(item, &note); err != nil {
			rejected = append(rejected, Rejected{Index: i, Err: fmt.Errorf("decode: %w", err)})

			continue
		}

		if err := p.validator.ValidateSearchNote(&note); err != nil {
			rejected = append(rejected, Rejected{Index: i, Err: err})

			continue
		}

		rec, err := p.transformer.Transform(&note, "")
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Err: err})

			continue
		}

		records = append(records, rec)
	}

	return records, rejected
}

// ProcessNote normalizes one by-key payload. fallbackHandle fills in the
// author when the payload has none.
func (p *Processor) ProcessNote(note *models.Note, fallbackHandle string) (models.ArticleRecord, error) {
	if err := p.validator.ValidateNote(note); err != nil {
		return models.ArticleRecord{}, fmt.Errorf("validation failed: %w", err)
	}

	rec, err := p.transformer.Transform(note, fallbackHandle)
	if err != nil {
		return models.ArticleRecord{}, fmt.Errorf("transformation failed: %w", err)
	}

	return rec, nil
}

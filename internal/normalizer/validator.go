package normalizer

import (
	"errors"

	"notecrawl/internal/models"
)

// Validation errors.
var (
	ErrNilNote           = errors.New("note payload is null")
	ErrMissingKey        = errors.New("note missing key")
	ErrMissingUser       = errors.New("note missing user")
	ErrMissingAuthorName = errors.New("note user missing urlname")
)

// Validator checks that API payloads carry the fields the crawl depends on.
// Missing fields are reported, never defaulted.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateNote checks a by-key note payload.
func (v *Validator) ValidateNote(n *models.Note) error {
	if n == nil {
		return ErrNilNote
	}

	if n.Key == "" {
		return ErrMissingKey
	}

	return nil
}

// ValidateSearchNote checks a search result item, which must name its author
// because authors are the unit of the user crawl.
func (v *Validator) ValidateSearchNote(n *models.Note) error {
	if err := v.ValidateNote(n); err != nil {
		return err
	}

	if n.User == nil {
		return ErrMissingUser
	}

	if n.User.URLName == "" {
		return ErrMissingAuthorName
	}

	return nil
}

// Package models defines data structures shared by the crawler, normalizer and pipeline.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimestamp is returned when an API timestamp cannot be parsed.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// ArticleRecord is one note as seen by the crawler. Records built from
// search results only carry the search fields; records resolved by key
// additionally carry the detail fields.
type ArticleRecord struct {
	PublishedAt     time.Time `json:"publishAt"`
	CreatedAt       time.Time `json:"createdAt"`
	AuthorCreatedAt time.Time `json:"authorCreatedAt"`
	Key             string    `json:"key"`
	Title           string    `json:"name"`
	Body            string    `json:"body"`
	Status          string    `json:"status"`
	Type            string    `json:"type"`
	Slug            string    `json:"slug"`
	AuthorHandle    string    `json:"urlname"`
	AuthorName      string    `json:"userName"`
	AuthorKey       string    `json:"userKey"`
	ID              int64     `json:"id"`
	AuthorID        int64     `json:"userId"`
	AuthorNoteCount int       `json:"noteCount"`
	CanRead         bool      `json:"canRead"`
}

// NoteUser is the author block embedded in API note payloads.
type NoteUser struct {
	Key       string `json:"key"`
	URLName   string `json:"urlname"`
	Name      string `json:"name"`
	Nickname  string `json:"nickname"`
	CreatedAt string `json:"created_at"`
	ID        int64  `json:"id"`
	NoteCount int    `json:"note_count"`
}

// Note is a note payload as returned by the search and by-key endpoints.
type Note struct {
	User      *NoteUser `json:"user"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	Slug      string    `json:"slug"`
	PublishAt string    `json:"publish_at"`
	CreatedAt string    `json:"created_at"`
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CanRead   bool      `json:"can_read"`
}

// ParseTimestamp parses an API timestamp. Empty input yields the zero time.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}

	return t, nil
}

// FormatTimestamp is the inverse of ParseTimestamp.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339)
}

package normalizer

import (
	"fmt"

	"notecrawl/internal/models"
)

// Transformer converts API payloads into ArticleRecords.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform maps a note payload onto a record. fallbackHandle is used as
// the author handle when the payload carries no user block.
func (t *Transformer) Transform(n *models.Note, fallbackHandle string) (models.ArticleRecord, error) {
	publishedAt, err := models.ParseTimestamp(n.PublishAt)
	if err != nil {
		return models.ArticleRecord{}, fmt.Errorf("note %s publish_at: %w", n.Key, err)
	}

	createdAt, err := models.ParseTimestamp(n.CreatedAt)
	if err != nil {
		return models.ArticleRecord{}, fmt.Errorf("note %s created_at: %w", n.Key, err)
	}

	if publishedAt.IsZero() {
		publishedAt = createdAt
	}

	rec := models.ArticleRecord{
		ID:           n.ID,
		Title:        n.Name,
		Key:          n.Key,
		PublishedAt:  publishedAt,
		CreatedAt:    createdAt,
		CanRead:      n.CanRead,
		Body:         n.Body,
		Status:       n.Status,
		Type:         n.Type,
		Slug:         n.Slug,
		AuthorID:     n.UserID,
		AuthorHandle: fallbackHandle,
	}

	if u := n.User; u != nil {
		userCreatedAt, err := models.ParseTimestamp(u.CreatedAt)
		if err != nil {
			return models.ArticleRecord{}, fmt.Errorf("note %s user created_at: %w", n.Key, err)
		}

		if u.ID != 0 {
			rec.AuthorID = u.ID
		}

		if u.URLName != "" {
			rec.AuthorHandle = u.URLName
		}

		rec.AuthorName = u.Nickname
		if rec.AuthorName == "" {
			rec.AuthorName = u.Name
		}

		rec.AuthorKey = u.Key
		rec.AuthorNoteCount = u.NoteCount
		rec.AuthorCreatedAt = userCreatedAt
	}

	return rec, nil
}

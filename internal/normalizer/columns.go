package normalizer

import (
	"strconv"

	"notecrawl/internal/models"
)

// SelectedColumns is the header of the per-author output table.
var SelectedColumns = []string{
	"id", "user_id", "status", "type", "key", "slug", "name", "body", "created_at", "can_read",
	"user_key", "urlname", "nickname", "note_count", "user_created_at",
}

// SearchColumns is the header of the normalized query table.
var SearchColumns = []string{
	"note_id", "name", "key", "publish_at", "can_read", "user_id", "urlname", "user_name", "body",
}

// SelectColumns projects crawled records onto SelectedColumns.
func SelectColumns(records []models.ArticleRecord) [][]string {
	rows := make([][]string, 0, len(records))

	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.AuthorID, 10),
			r.Status,
			r.Type,
			r.Key,
			r.Slug,
			r.Title,
			r.Body,
			models.FormatTimestamp(r.CreatedAt),
			strconv.FormatBool(r.CanRead),
			r.AuthorKey,
			r.AuthorHandle,
			r.AuthorName,
			strconv.Itoa(r.AuthorNoteCount),
			models.FormatTimestamp(r.AuthorCreatedAt),
		})
	}

	return rows
}

// SearchRows projects query records onto SearchColumns.
func SearchRows(records []models.ArticleRecord) [][]string {
	rows := make([][]string, 0, len(records))

	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Title,
			r.Key,
			models.FormatTimestamp(r.PublishedAt),
			strconv.FormatBool(r.CanRead),
			strconv.FormatInt(r.AuthorID, 10),
			r.AuthorHandle,
			r.AuthorName,
			r.Body,
		})
	}

	return rows
}

// MatchQuery returns the crawled records whose ID appears among the query
// records, preserving crawled order.
func MatchQuery(crawled, query []models.ArticleRecord) []models.ArticleRecord {
	ids := make(map[int64]struct{}, len(query))
	for _, q := range query {
		ids[q.ID] = struct{}{}
	}

	var matched []models.ArticleRecord

	for _, r := range crawled {
		if _, ok := ids[r.ID]; ok {
			matched = append(matched, r)
		}
	}

	return matched
}

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// DistinctAuthors returns the deduplicated author handles of records in
// ascending byte order. The order must be identical across runs because a
// checkpoint stores an index into this list.
func DistinctAuthors(records []ArticleRecord) []string {
	seen := make(map[string]struct{}, len(records))
	handles := make([]string, 0, len(records))

	for _, r := range records {
		if r.AuthorHandle == "" {
			continue
		}

		if _, ok := seen[r.AuthorHandle]; ok {
			continue
		}

		seen[r.AuthorHandle] = struct{}{}
		handles = append(handles, r.AuthorHandle)
	}

	slices.Sort(handles)

	return handles
}

// Keys returns the article keys of records in input order.
func Keys(records []ArticleRecord) []string {
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}

	return keys
}

// AuthorsFingerprint identifies an ordered author list. A checkpoint index
// is only meaningful against the list with the same fingerprint.
func AuthorsFingerprint(handles []string) string {
	h := sha256.New()
	for _, handle := range handles {
		h.Write([]byte(handle))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

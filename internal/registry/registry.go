// Package registry records every article key ever ingested so that later
// crawls do not re-trigger author crawling for articles already seen.
package registry

import (
	"context"
	"fmt"

	"notecrawl/internal/config"
	"notecrawl/internal/logger"
	"notecrawl/internal/models"
)

// KeySet is a set of article keys.
type KeySet map[string]struct{}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]

	return ok
}

// Registry is an append-only store of article keys. Append must ignore
// keys already registered.
type Registry interface {
	Load(ctx context.Context) (KeySet, error)
	Append(ctx context.Context, keys []string) (int, error)
	Close() error
}

// Open returns the registry backend selected by cfg.
func Open(cfg *config.Config, log *logger.Logger) (Registry, error) {
	switch cfg.Registry.Backend {
	case config.RegistryCSV:
		return NewCSVRegistry(cfg.RegistryPath()), nil
	case config.RegistrySQLite:
		return OpenSQLite(cfg.RegistryPath(), log)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidRegistryBackend, cfg.Registry.Backend)
	}
}

// Filter drops records whose key is in known, preserving order.
func Filter(records []models.ArticleRecord, known KeySet) []models.ArticleRecord {
	kept := make([]models.ArticleRecord, 0, len(records))

	for _, r := range records {
		if !known.Has(r.Key) {
			kept = append(kept, r)
		}
	}

	return kept
}

func dedupe(keys []string, known KeySet) []string {
	seen := make(KeySet, len(keys))
	fresh := make([]string, 0, len(keys))

	for _, k := range keys {
		if k == "" || known.Has(k) || seen.Has(k) {
			continue
		}

		seen[k] = struct{}{}
		fresh = append(fresh, k)
	}

	return fresh
}

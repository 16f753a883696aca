package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"notecrawl/internal/logger"
)

// ErrDirtyRegistry is returned when the registry schema is mid-migration.
var ErrDirtyRegistry = errors.New("registry database has a dirty migration")

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteRegistry keeps keys in the query_keys table of a SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations. A database left dirty by a failed migration is refused.
func OpenSQLite(path string, log *logger.Logger) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	// a single writer keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	version, dirty, err := runMigrations(db)
	if err != nil {
		db.Close()

		return nil, err
	}

	if dirty {
		db.Close()

		return nil, fmt.Errorf("%w: version %d", ErrDirtyRegistry, version)
	}

	log.Debug("registry migrated", "path", path, "version", version)

	return &SQLiteRegistry{db: db}, nil
}

func runMigrations(db *sql.DB) (uint, bool, error) {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			return uint(dirtyErr.Version), true, nil
		}

		return 0, false, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return version, dirty, nil
}

// Load reads every registered key.
func (r *SQLiteRegistry) Load(ctx context.Context) (KeySet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM query_keys`)
	if err != nil {
		return nil, fmt.Errorf("failed to query registry: %w", err)
	}
	defer rows.Close()

	keys := KeySet{}

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}

		keys[k] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	return keys, nil
}

// Append inserts keys in one transaction, ignoring ones already present,
// and returns how many were new.
func (r *SQLiteRegistry) Append(ctx context.Context, keys []string) (int, error) {
	fresh := dedupe(keys, nil)
	if len(fresh) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO query_keys (key, registered_at) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	added := 0

	for _, k := range fresh {
		res, err := stmt.ExecContext(ctx, k, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert key %s: %w", k, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}

		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return added, nil
}

// Close closes the database.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

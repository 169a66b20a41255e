// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides ledger and artifact persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS ledger_events (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id     TEXT NOT NULL UNIQUE,
			topic        TEXT NOT NULL,
			kind         TEXT NOT NULL,
			call_id      TEXT,
			text         TEXT,
			payload_json TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ledger_topic ON ledger_events(topic, seq);
		CREATE INDEX IF NOT EXISTS idx_ledger_call ON ledger_events(call_id);
		CREATE INDEX IF NOT EXISTS idx_ledger_created ON ledger_events(created_at);

		CREATE TABLE IF NOT EXISTS artifacts (
			artifact_id    TEXT PRIMARY KEY,
			upload_id      TEXT,
			filename       TEXT NOT NULL,
			content_type   TEXT NOT NULL,
			purpose        TEXT,
			extracted_text TEXT NOT NULL DEFAULT '',
			summary        TEXT,
			size           INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_upload ON artifacts(upload_id);
		CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('artifacts') WHERE name = 'source'`,
			apply:  `ALTER TABLE artifacts ADD COLUMN source TEXT`,
			column: "artifacts.source",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking column %s: %w", m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding column %s: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// nullString converts empty strings to NULL
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

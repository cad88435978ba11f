package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/strackan/cmdrouter/internal/config"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file created under the base directory.
const FileName = "router.db"

// Init initializes the SQLite database at baseDir/router.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cmdrouter.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Catalog exports land here unless a path is given
	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the DSN apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: pattern registry and execution trace log
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS command_patterns (
		  id                         TEXT PRIMARY KEY,
		  pattern_raw                TEXT NOT NULL,
		  pattern_norm               TEXT NOT NULL,
		  description                TEXT,
		  scope                      TEXT NOT NULL,
		  context_tags_json          TEXT,
		  execution_mode_hint        TEXT,
		  required_capabilities_json TEXT,
		  actions_json               TEXT,
		  priority                   INTEGER NOT NULL,
		  enabled                    INTEGER NOT NULL DEFAULT 1,
		  usage_count                INTEGER NOT NULL DEFAULT 0,
		  last_used_at               INTEGER,
		  pattern_embedding          BLOB,
		  created_at                 INTEGER NOT NULL,
		  updated_at                 INTEGER NOT NULL,
		  deleted_at                 INTEGER
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_patterns_scope_norm
		ON command_patterns(scope, pattern_norm)
		WHERE deleted_at IS NULL;

		CREATE INDEX IF NOT EXISTS idx_patterns_enabled
		ON command_patterns(enabled, priority)
		WHERE deleted_at IS NULL;

		CREATE TABLE IF NOT EXISTS execution_traces (
		  id                       TEXT PRIMARY KEY,
		  matched_pattern_id       TEXT,
		  pattern_text_copy        TEXT,
		  input_request            TEXT NOT NULL,
		  extracted_variables_json TEXT,
		  match_type               TEXT,
		  steps_json               TEXT,
		  result_summary           TEXT,
		  success                  INTEGER NOT NULL,
		  error_message            TEXT,
		  referenced_entities_json TEXT,
		  embedding                BLOB,
		  scope                    TEXT NOT NULL,
		  actor_id                 TEXT,
		  duration_ms              INTEGER NOT NULL DEFAULT 0,
		  resource_units_used      REAL NOT NULL DEFAULT 0,
		  created_at               INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_traces_recall
		ON execution_traces(success, scope, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_traces_pattern
		ON execution_traces(matched_pattern_id, created_at DESC)
		WHERE matched_pattern_id IS NOT NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

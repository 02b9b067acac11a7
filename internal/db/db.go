package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite run store at baseDir/foldsat.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.foldsat.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Rendered reports land next to the database
	reportsDir := filepath.Join(baseDir, "reports")
	if err := os.MkdirAll(reportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "foldsat.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: runs and their probe traces
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS runs (
		  id                TEXT PRIMARY KEY,
		  sequence          TEXT NOT NULL,
		  labels            TEXT NOT NULL,
		  length            INTEGER NOT NULL,
		  dims              INTEGER NOT NULL,
		  variant           INTEGER NOT NULL,
		  count_encoding    TEXT,
		  solver            TEXT NOT NULL,
		  policy            TEXT NOT NULL,
		  max_contacts      INTEGER NOT NULL,
		  upper_bound       INTEGER NOT NULL,
		  queries           INTEGER NOT NULL,
		  total_solve_ns    INTEGER NOT NULL,
		  feasible_solve_ns INTEGER NOT NULL,
		  total_encode_ns   INTEGER NOT NULL,
		  variables         INTEGER,
		  clauses           INTEGER,
		  error_code        TEXT,
		  created_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_sequence
		ON runs(sequence, dims, variant, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_runs_solver_policy
		ON runs(solver, policy);

		CREATE TABLE IF NOT EXISTS probes (
		  run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		  ord        INTEGER NOT NULL,
		  objective  INTEGER NOT NULL,
		  verdict    TEXT NOT NULL,
		  solve_ns   INTEGER NOT NULL,
		  encode_ns  INTEGER NOT NULL,
		  cached     INTEGER NOT NULL,
		  variables  INTEGER NOT NULL,
		  clauses    INTEGER NOT NULL,
		  PRIMARY KEY (run_id, ord)
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

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

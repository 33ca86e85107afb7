package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/moodtrace/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// FileName is the database file inside the base directory.
const FileName = "moodtrace.db"

// Init initializes the SQLite database at baseDir/moodtrace.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.moodtrace.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Create exports subdirectory
	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	db, err := open(filepath.Join(baseDir, FileName))
	if err != nil {
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db, CurrentSchemaVersion); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(filepath.Join(baseDir, FileName), 0600)

	return db, nil
}

// open opens the database with pragmas in the connection string so they apply
// to every pooled connection.
func open(dbPath string) (*sql.DB, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
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

// migrations[i] upgrades a database from version i to i+1.
var migrations = []string{
	// 0 -> 1: captures table and lookup indices
	`
	CREATE TABLE IF NOT EXISTS captures (
	  id              INTEGER PRIMARY KEY AUTOINCREMENT,
	  timestamp       INTEGER NOT NULL,
	  session_id      TEXT NOT NULL,
	  emotion         TEXT NOT NULL,
	  angle           REAL NOT NULL,
	  intensity       REAL NOT NULL,
	  intensity_level TEXT NOT NULL,
	  transcript      TEXT NOT NULL DEFAULT '',
	  video_blob      BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_captures_timestamp ON captures(timestamp);
	CREATE INDEX IF NOT EXISTS idx_captures_emotion ON captures(emotion);
	CREATE INDEX IF NOT EXISTS idx_captures_session_id ON captures(session_id);
	`,
	// 1 -> 2: container type of the stored blob
	`
	ALTER TABLE captures ADD COLUMN video_mime TEXT;
	UPDATE captures SET video_mime = 'video/webm' WHERE video_blob IS NOT NULL;
	`,
}

// migrate applies schema migrations based on user_version, up to target.
func migrate(db *sql.DB, target int) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	for v := version; v < target && v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set user_version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
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

// Migrate brings an open database up to CurrentSchemaVersion. It is a no-op
// on an up-to-date database.
func Migrate(db *sql.DB) error {
	return migrate(db, CurrentSchemaVersion)
}

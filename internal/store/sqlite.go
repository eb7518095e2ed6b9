package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/calvinalkan/tasktree/internal/task"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// schemaVersion is stored in SQLite's user_version pragma.
// The SQLite store is a system of record, so a mismatch is an error rather
// than a trigger for rebuilding.
const schemaVersion = 1

// sqliteBusyTimeout is the time SQLite waits when the database is locked.
const sqliteBusyTimeout = 10000 // milliseconds

var errSchemaVersion = errors.New("unsupported schema version")

// SQLite is a local task store kept in a single SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// SQLiteOptions configures OpenSQLite.
type SQLiteOptions struct {
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// OpenSQLite opens (and if needed creates) the store at path.
func OpenSQLite(ctx context.Context, path string, opts SQLiteOptions) (*SQLite, error) {
	if ctx == nil {
		return nil, errors.New("open sqlite store: context is nil")
	}

	if path == "" {
		return nil, errors.New("open sqlite store: path is empty")
	}

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite store: %w", task.ErrStore, err)
	}

	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite store: %w", task.ErrStore, err)
	}

	err = ensureSchema(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: open sqlite store: %w", task.ErrStore, err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &SQLite{db: db, now: now}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return fmt.Errorf("close sqlite store: %w", err)
	}

	return nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One writer; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	err = applyPragmas(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	statements := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}

	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}

	return nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, "PRAGMA user_version")

	var version int

	err := row.Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

// ensureSchema creates the schema in a fresh database and refuses databases
// written by another schema version.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	version, err := userVersion(ctx, db)
	if err != nil {
		return err
	}

	switch version {
	case schemaVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: %d (want %d)", errSchemaVersion, version, schemaVersion)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema txn: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	statements := []string{
		`CREATE TABLE tasks (
			uuid TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			description TEXT NOT NULL,
			partof TEXT,
			entry INTEGER NOT NULL,
			modified INTEGER,
			due INTEGER,
			wait INTEGER,
			project TEXT NOT NULL DEFAULT '',
			annotations TEXT
		) WITHOUT ROWID`,
		`CREATE TABLE task_tags (
			task_uuid TEXT NOT NULL REFERENCES tasks(uuid) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (task_uuid, position)
		) WITHOUT ROWID`,
		"CREATE INDEX idx_status ON tasks(status)",
		"CREATE INDEX idx_partof ON tasks(partof)",
		"CREATE INDEX idx_tag ON task_tags(tag)",
		fmt.Sprintf("PRAGMA user_version = %d", schemaVersion),
	}

	for _, stmt := range statements {
		_, err = tx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply schema statement %q: %w", stmt, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit schema txn: %w", err)
	}

	committed = true

	return nil
}

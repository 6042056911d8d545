package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Open opens (creating if needed) the SQLite database at cfg.Path, applies
// the pragmas from cfg and migrates the schema. The caller owns the returned
// *sql.DB and must close it.
//
// The pool is limited to a single connection: SQLite serialises writes and
// the pragmas are per-connection.
func Open(ctx context.Context, cfg Config) (*Adapter, *sql.DB, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf("sqlite: path is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return NewAdapter(db), db, nil
}

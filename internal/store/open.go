package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and locates a backend.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, opts Options) (DB, error) {
	var (
		db  DB
		err error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		if opts.SQLitePath != ":memory:" {
			if dir := filepath.Dir(opts.SQLitePath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("store: create data dir: %w", err)
				}
			}
		}
		db, err = NewSQLiteDB(opts.SQLitePath)
	case DriverPostgres:
		db, err = NewPostgresDB(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

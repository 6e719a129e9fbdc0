package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Migrate brings the ledger schema up to date and returns how many
// migrations were applied.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	fsys, err := fs.Sub(EmbedMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("ledger migrations: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("ledger migrations: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("migrate ledger: %w", err)
	}
	return len(results), nil
}

// SchemaVersion returns the latest applied ledger migration.
func SchemaVersion(ctx context.Context, db *sql.DB) (int64, error) {
	fsys, err := fs.Sub(EmbedMigrations, "migrations")
	if err != nil {
		return 0, err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

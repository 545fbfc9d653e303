package utils

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// MigrationResult summarizes one applied migration.
type MigrationResult struct {
	Version int64
	Source  string
}

// Migrate applies every pending goose migration found in fsys (root directory).
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS) ([]MigrationResult, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrations up: %w", err)
	}
	out := make([]MigrationResult, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, MigrationResult{Version: r.Source.Version, Source: r.Source.Path})
	}
	return out, nil
}

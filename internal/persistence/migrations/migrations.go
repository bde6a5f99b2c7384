// Package migrations embeds the SQL schema for every supported store and
// applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Dialect names a schema directory and its goose dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case SQLite:
		return goose.DialectSQLite3, nil
	case Postgres:
		return goose.DialectPostgres, nil
	}
	return "", fmt.Errorf("migrations: unsupported dialect %q", d)
}

// Up applies every pending migration for dialect and logs each applied version.
func Up(ctx context.Context, db *sql.DB, dialect Dialect, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	gooseDialect, err := dialect.goose()
	if err != nil {
		return err
	}
	dir, err := fs.Sub(files, string(dialect))
	if err != nil {
		return fmt.Errorf("open %s migrations: %w", dialect, err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, dir)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, result := range results {
		logger.Info("migration applied",
			zap.String("dialect", string(dialect)),
			zap.Int64("version", result.Source.Version),
			zap.Duration("duration", result.Duration),
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	logger.Info("schema up to date", zap.String("dialect", string(dialect)), zap.Int64("version", version))
	return nil
}

// Package migrations holds the versioned schema and a small goose runner.
package migrations

import (
	"context"
	"database/sql"
	"embed"

	"github.com/go-faster/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var fs embed.FS

// Up applies all pending migrations to the database at dsn.
func Up(ctx context.Context, dsn string) error {
	return run(ctx, dsn, func(ctx context.Context, db *sql.DB) error {
		return goose.UpContext(ctx, db, ".")
	})
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, dsn string) error {
	return run(ctx, dsn, func(ctx context.Context, db *sql.DB) error {
		return goose.DownContext(ctx, db, ".")
	})
}

func run(ctx context.Context, dsn string, fn func(context.Context, *sql.DB) error) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(fs)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "failed to set goose dialect")
	}
	if err := fn(ctx, db); err != nil {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}

// Package store provides the durable Postgres-backed stores behind the
// ports interfaces, plus in-memory equivalents for tests and single-node
// development. Everything here must stay correct across multiple stateless
// backend instances: atomicity lives in the SQL, never in process memory.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sproutgame/sprout-server/adapters/store/migrations"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// stores work inside and outside transactions.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to Postgres through the pgx stdlib driver, verifies the
// connection and applies embedded migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// dayWindow returns the UTC calendar-day interval [start, end) containing
// at. Daily-bonus uniqueness is defined over this window.
func dayWindow(at time.Time) (time.Time, time.Time) {
	start := at.UTC().Truncate(24 * time.Hour)
	return start, start.Add(24 * time.Hour)
}

// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Open connects to postgres and pings it.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	logger.Info("connected to database")
	return conn, nil
}

// RunMigrations applies every *.sql file of dir in lexical order, skipping
// files already recorded in schema_migrations. Each file runs in its own
// transaction.
func RunMigrations(ctx context.Context, conn *sql.DB, dir fs.FS, logger *zap.Logger) (int, error) {
	if _, err := conn.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            name TEXT PRIMARY KEY,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(dir, "*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		var exists bool
		err := conn.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name=$1)`, name).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("check %s: %w", name, err)
		}
		if exists {
			continue
		}

		body, err := fs.ReadFile(dir, name)
		if err != nil {
			return applied, err
		}
		if err := applyOne(ctx, conn, name, string(body)); err != nil {
			return applied, err
		}
		logger.Info("applied migration", zap.String("name", name))
		applied++
	}
	return applied, nil
}

func applyOne(ctx context.Context, conn *sql.DB, name, body string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		tx.Rollback()
		return fmt.Errorf("apply %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("record %s: %w", name, err)
	}
	return tx.Commit()
}

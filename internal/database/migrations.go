package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptdeck/promptdeck/internal/models"
)

// RunMigrations applies any .sql files under migrationsPath that the
// schema_migrations ledger has not seen yet, in filename order, one
// transaction per file.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrationsPath string) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`)
	if err != nil {
		return &models.StoreError{Op: "create migrations table", Err: err}
	}

	files, err := filepath.Glob(filepath.Join(migrationsPath, "*.sql"))
	if err != nil {
		return &models.StoreError{Op: "glob migration files", Err: err}
	}
	sort.Strings(files)

	applied := 0
	for _, f := range files {
		version := filepath.Base(f)

		var exists bool
		err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)", version).Scan(&exists)
		if err != nil {
			return &models.StoreError{Op: fmt.Sprintf("check migration %s", version), Err: err}
		}
		if exists {
			continue
		}

		if err := applyMigration(ctx, pool, f, version); err != nil {
			return err
		}
		slog.Info("applied migration", "version", version)
		applied++
	}

	if applied > 0 {
		slog.Info("migrations complete", "applied", applied, "total", len(files))
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, path, version string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return &models.StoreError{Op: fmt.Sprintf("read migration %s", version), Err: err}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return &models.StoreError{Op: fmt.Sprintf("begin tx for %s", version), Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(sql)); err != nil {
		return &models.StoreError{Op: fmt.Sprintf("execute migration %s", version), Err: err}
	}

	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return &models.StoreError{Op: fmt.Sprintf("record migration %s", version), Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &models.StoreError{Op: fmt.Sprintf("commit migration %s", version), Err: err}
	}
	return nil
}

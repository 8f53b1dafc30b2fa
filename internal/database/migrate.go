package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one versioned schema change
type Migration struct {
	Version string
	Name    string
	Applied bool
}

// Migrator applies the embedded document-store migrations
type Migrator struct {
	pool *pgxpool.Pool
	fsys fs.FS
}

// NewMigrator creates a new migrator
func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool, fsys: migrationsFS}
}

// Up runs all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := migrationFiles(m.fsys, ".up.sql")
	if err != nil {
		return err
	}

	for _, file := range files {
		version := migrationVersion(file)

		applied, err := m.isMigrationApplied(ctx, version)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(m.fsys, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		log.Printf("Applying migration: %s", file)
		tx, err := m.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", file, err)
		}
	}

	log.Println("Document store schema is up to date")
	return nil
}

// Down rolls back the last applied migration
func (m *Migrator) Down(ctx context.Context) error {
	var version string
	err := m.pool.QueryRow(ctx, `
		SELECT version FROM schema_migrations
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get last migration: %w", err)
	}

	files, err := migrationFiles(m.fsys, ".down.sql")
	if err != nil {
		return err
	}
	var downFile string
	for _, file := range files {
		if migrationVersion(file) == version {
			downFile = file
			break
		}
	}
	if downFile == "" {
		return fmt.Errorf("down migration file not found for version %s", version)
	}

	content, err := fs.ReadFile(m.fsys, "migrations/"+downFile)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", downFile, err)
	}

	log.Printf("Rolling back migration: %s", downFile)
	if _, err := m.pool.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", downFile, err)
	}
	if _, err := m.pool.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}
	return nil
}

// Status lists every embedded migration and whether it has been applied
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	files, err := migrationFiles(m.fsys, ".up.sql")
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(files))
	for _, file := range files {
		version := migrationVersion(file)
		applied, err := m.isMigrationApplied(ctx, version)
		if err != nil {
			return nil, fmt.Errorf("failed to check migration status: %w", err)
		}
		out = append(out, Migration{
			Version: version,
			Name:    strings.TrimSuffix(file, ".up.sql"),
			Applied: applied,
		})
	}
	return out, nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW() NOT NULL
		)
	`
	_, err := m.pool.Exec(ctx, query)
	return err
}

func (m *Migrator) isMigrationApplied(ctx context.Context, version string) (bool, error) {
	var count int
	err := m.pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// migrationFiles returns the sorted migration file names with the suffix
func migrationFiles(fsys fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// migrationVersion extracts "001" from "001_create_documents.up.sql"
func migrationVersion(file string) string {
	return strings.SplitN(file, "_", 2)[0]
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"supplychat/dbpool"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// GetMigrations returns all conversation-store migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create conversation_turns table",
			Up: `
				CREATE TABLE IF NOT EXISTS conversation_turns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					thread_id TEXT NOT NULL,
					role TEXT NOT NULL,
					content TEXT NOT NULL DEFAULT '',
					tool_calls TEXT,
					tool_call_id TEXT,
					tool_name TEXT,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
			`,
			Down: `
				DROP TABLE IF EXISTS conversation_turns;
			`,
		},
		{
			Version:     2,
			Description: "Index conversation_turns by thread",
			Up: `
				CREATE INDEX IF NOT EXISTS idx_turns_thread ON conversation_turns(thread_id, id);
			`,
			Down: `
				DROP INDEX IF EXISTS idx_turns_thread;
			`,
		},
	}
}

// InitDB opens the conversation database at dbPath and runs migrations
func InitDB(ctx context.Context, dbPath string, logf func(string)) (*sql.DB, error) {
	if logf == nil {
		logf = func(string) {}
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := dbpool.New(dbpool.EngineSQLite, logf).OpenWritable(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(ctx, db, logf); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the bookkeeping table and applies pending migrations
func Migrate(ctx context.Context, db *sql.DB, logf func(string)) error {
	if logf == nil {
		logf = func(string) {}
	}
	if err := createMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	if err := runMigrations(ctx, db, logf); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// createMigrationsTable creates the schema_migrations table to track applied migrations
func createMigrationsTable(ctx context.Context, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := db.ExecContext(ctx, query)
	return err
}

// AppliedVersions returns the versions recorded in schema_migrations in order
func AppliedVersions(ctx context.Context, db *sql.DB) ([]int, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func runMigrations(ctx context.Context, db *sql.DB, logf func(string)) error {
	for _, migration := range GetMigrations() {
		var count int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", migration.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration status for version %d: %w", migration.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, description) VALUES (?, ?)", migration.Version, migration.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		logf(fmt.Sprintf("[database] applied migration %d: %s", migration.Version, migration.Description))
	}

	return nil
}

// RollbackMigration rolls back a specific migration
func RollbackMigration(ctx context.Context, db *sql.DB, version int) error {
	var targetMigration *Migration
	for _, m := range GetMigrations() {
		if m.Version == version {
			m := m
			targetMigration = &m
			break
		}
	}
	if targetMigration == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, targetMigration.Down); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to rollback migration %d: %w", version, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", version); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit()
}

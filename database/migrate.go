package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

const migrationsSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INT PRIMARY KEY,
	applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

type migration struct {
	version int
	name    string
	run     func(*sql.DB) error
}

var migrations = []migration{
	{1, "add reported_count column to suspected", runMigration001},
	{2, "add label index to warning", runMigration002},
}

// RunMigrations applies pending migrations in version order. Applied
// versions are recorded in schema_migrations, so reruns skip them.
func RunMigrations(db *sql.DB) error {
	log.Info("Running database migrations...")

	if _, err := db.Exec(migrationsSchema); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		log.Infof("Running migration %03d: %s", m.version, m.name)
		if err := m.run(db); err != nil {
			return fmt.Errorf("migration %03d failed: %w", m.version, err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("failed to record migration %03d: %w", m.version, err)
		}
	}

	log.Info("All migrations completed successfully")
	return nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// runMigration001 backfills the reported_count column on the suspected table
func runMigration001(db *sql.DB) error {
	// Fresh installs already have the column from Schema; tolerate the
	// duplicate-column error for them.
	_, err := db.Exec(`
		ALTER TABLE suspected
		ADD COLUMN reported_count INT NOT NULL DEFAULT 0
	`)
	if err != nil {
		log.Infof("Note: reported_count column may already exist: %v", err)
	}

	_, err = db.Exec(`
		UPDATE suspected
		SET reported_count = 0
		WHERE reported_count IS NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to normalize reported_count: %w", err)
	}
	return nil
}

// runMigration002 adds an index on warning.label
func runMigration002(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX idx_warning_label
		ON warning(label)
	`)
	if err != nil {
		log.Infof("Note: label index may already exist: %v", err)
	}
	return nil
}

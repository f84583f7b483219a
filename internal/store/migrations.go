package store

import (
	"context"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var postgresMigrations = []migration{
	{
		Version:     1,
		Description: "Weather cache table",
		SQL: `
CREATE TABLE IF NOT EXISTS weather_cache (
    id BIGSERIAL PRIMARY KEY,
    lat NUMERIC(10, 7) NOT NULL,
    lon NUMERIC(10, 7) NOT NULL,
    city VARCHAR(255) NOT NULL DEFAULT '',
    date DATE NOT NULL,
    condition_text VARCHAR(100) NOT NULL DEFAULT '',
    temp_min VARCHAR(20) NOT NULL DEFAULT '',
    temp_max VARCHAR(20) NOT NULL DEFAULT '',
    icon VARCHAR(20) NOT NULL DEFAULT '',
    wind VARCHAR(50) NOT NULL DEFAULT '',
    sunrise VARCHAR(20) NOT NULL DEFAULT '',
    sunset VARCHAR(20) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS uk_weather_cache_lat_lon_date ON weather_cache(lat, lon, date);
CREATE INDEX IF NOT EXISTS idx_weather_cache_date ON weather_cache(date);
`,
	},
}

var sqliteMigrations = []migration{
	{
		Version:     1,
		Description: "Weather cache table",
		SQL: `
CREATE TABLE IF NOT EXISTS weather_cache (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lat TEXT NOT NULL,
    lon TEXT NOT NULL,
    city TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL,
    condition_text TEXT NOT NULL DEFAULT '',
    temp_min TEXT NOT NULL DEFAULT '',
    temp_max TEXT NOT NULL DEFAULT '',
    icon TEXT NOT NULL DEFAULT '',
    wind TEXT NOT NULL DEFAULT '',
    sunrise TEXT NOT NULL DEFAULT '',
    sunset TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uk_weather_cache_lat_lon_date ON weather_cache(lat, lon, date);
CREATE INDEX IF NOT EXISTS idx_weather_cache_date ON weather_cache(date);
`,
	},
}

// Migrate applies any schema migrations that have not run yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range s.dialect.migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("INFO: store: applying migration %d - %s", m.Version, m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, s.migrationSQL,
			m.Version, m.Description, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *SQLStore) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TEXT
		)
	`)
	return err
}

func (s *SQLStore) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS verification_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    window_start DATETIME,
    window_end DATETIME,
    config_json TEXT
);

CREATE TABLE IF NOT EXISTS continuous_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES verification_runs(id),
    entity_kind TEXT NOT NULL,
    entity_key TEXT NOT NULL,
    variable TEXT NOT NULL,
    sample_count INTEGER NOT NULL,
    missing_count INTEGER NOT NULL,
    mae REAL,
    bias REAL,
    rmse REAL,
    bias_ratio REAL,
    mean_forecast REAL,
    mean_obs REAL,
    UNIQUE(run_id, entity_kind, entity_key, variable)
);

CREATE TABLE IF NOT EXISTS categorical_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES verification_runs(id),
    entity_kind TEXT NOT NULL,
    entity_key TEXT NOT NULL,
    variable TEXT NOT NULL,
    threshold REAL NOT NULL,
    hits INTEGER NOT NULL,
    misses INTEGER NOT NULL,
    false_alarms INTEGER NOT NULL,
    correct_negatives INTEGER NOT NULL,
    hit_rate REAL,
    false_alarm_ratio REAL,
    csi REAL,
    UNIQUE(run_id, entity_kind, entity_key, variable, threshold)
);

CREATE TABLE IF NOT EXISTS probabilistic_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES verification_runs(id),
    entity_kind TEXT NOT NULL,
    entity_key TEXT NOT NULL,
    variable TEXT NOT NULL,
    brier_score REAL,
    brier_skill_score REAL,
    crpss REAL,
    UNIQUE(run_id, entity_kind, entity_key, variable)
);

CREATE TABLE IF NOT EXISTS reliability_points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES verification_runs(id),
    entity_kind TEXT NOT NULL,
    entity_key TEXT NOT NULL,
    variable TEXT NOT NULL,
    bin_center REAL NOT NULL,
    mean_forecast_prob REAL,
    observed_frequency REAL,
    bin_count INTEGER NOT NULL,
    UNIQUE(run_id, entity_kind, entity_key, variable, bin_center)
);

CREATE INDEX IF NOT EXISTS idx_continuous_run ON continuous_metrics(run_id, variable);
CREATE INDEX IF NOT EXISTS idx_categorical_run ON categorical_metrics(run_id, variable);
CREATE INDEX IF NOT EXISTS idx_reliability_run ON reliability_points(run_id, variable);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
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

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

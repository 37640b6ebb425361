package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "activities: append-only activity log",
		SQL: `
CREATE TABLE activities (
    seq         INTEGER PRIMARY KEY,
    id          TEXT NOT NULL,
    user_id     TEXT NOT NULL,
    type        TEXT NOT NULL,
    subtype     TEXT,
    timestamp   TEXT NOT NULL,
    text        TEXT,
    tags        TEXT,
    metadata    TEXT,
    created_at  INTEGER NOT NULL,

    UNIQUE (user_id, id)
);

CREATE INDEX idx_activities_user_ts ON activities(user_id, timestamp);
`,
	},
	{
		Version:     2,
		Description: "identity_axes: observed axes per user and window",
		SQL: `
CREATE TABLE identity_axes (
    user_id           TEXT NOT NULL,
    axis_key          TEXT NOT NULL,
    time_window       TEXT NOT NULL,
    label             TEXT NOT NULL,
    description       TEXT,
    status            TEXT NOT NULL CHECK (status IN ('latent', 'emerging', 'central', 'fading')),
    relevance_score   REAL NOT NULL CHECK (relevance_score >= 0 AND relevance_score <= 1),
    trend             TEXT NOT NULL DEFAULT 'stable' CHECK (trend IN ('up', 'stable', 'down')),
    first_detected_at INTEGER NOT NULL,
    last_active_at    INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,

    PRIMARY KEY (user_id, axis_key, time_window)
);

CREATE INDEX idx_axes_user_window ON identity_axes(user_id, time_window, relevance_score DESC);
`,
	},
	{
		Version:     3,
		Description: "user_achievements: per-user achievement progress",
		SQL: `
CREATE TABLE user_achievements (
    user_id           TEXT NOT NULL,
    achievement_id    TEXT NOT NULL,
    progress          REAL NOT NULL CHECK (progress >= 0 AND progress <= 1),
    completed         INTEGER NOT NULL DEFAULT 0,
    completed_at      INTEGER,
    last_evaluated_at INTEGER NOT NULL,

    PRIMARY KEY (user_id, achievement_id)
);
`,
	},
	{
		Version:     4,
		Description: "identity_declared: self-description with version history",
		SQL: `
CREATE TABLE identity_declared (
    user_id      TEXT PRIMARY KEY,
    bio_text     TEXT NOT NULL DEFAULT '',
    core_labels  TEXT NOT NULL DEFAULT '[]',
    pinned_stats TEXT NOT NULL DEFAULT '{}',
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);

CREATE TABLE identity_declared_versions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    bio_text     TEXT NOT NULL DEFAULT '',
    core_labels  TEXT NOT NULL DEFAULT '[]',
    pinned_stats TEXT NOT NULL DEFAULT '{}',
    created_at   INTEGER NOT NULL
);

CREATE INDEX idx_declared_versions_user ON identity_declared_versions(user_id, created_at DESC);
`,
	},
	{
		Version:     5,
		Description: "identity_observed: audit snapshots of persisted runs",
		SQL: `
CREATE TABLE identity_observed (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    time_window TEXT NOT NULL,
    computed_at INTEGER NOT NULL,
    axes        TEXT NOT NULL DEFAULT '[]',
    signals     TEXT NOT NULL DEFAULT '{}',
    dropped     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_observed_user_window ON identity_observed(user_id, time_window, computed_at DESC);
`,
	},
	{
		Version:     6,
		Description: "feedback_history: append-only generated feedback",
		SQL: `
CREATE TABLE feedback_history (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    context     TEXT CHECK (context IS NULL OR context IN ('monthly_review', 'axis_summary', 'achievement_unlock', 'pattern_detected')),
    content     TEXT NOT NULL CHECK (length(content) > 0),
    based_on    TEXT,
    confidence  REAL CHECK (confidence IS NULL OR (confidence >= 0 AND confidence <= 1)),
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_feedback_user_created ON feedback_history(user_id, created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
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

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

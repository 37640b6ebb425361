package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ObservedSnapshot records what one persisted run computed, for auditing
// how a user's observed identity moved over time.
type ObservedSnapshot struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Window     string          `json:"window"`
	ComputedAt time.Time       `json:"computed_at"`
	Axes       json.RawMessage `json:"axes"`
	Signals    json.RawMessage `json:"signals"`
	Dropped    int             `json:"dropped"`
}

// SaveObserved appends a snapshot. ID is generated when empty.
func (db *DB) SaveObserved(ctx context.Context, s *ObservedSnapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.ComputedAt.IsZero() {
		s.ComputedAt = time.Now()
	}
	axes := s.Axes
	if len(axes) == 0 {
		axes = json.RawMessage("[]")
	}
	signals := s.Signals
	if len(signals) == 0 {
		signals = json.RawMessage("{}")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO identity_observed (id, user_id, time_window, computed_at, axes, signals, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.Window, toMillis(s.ComputedAt), string(axes), string(signals), s.Dropped)
	if err != nil {
		return fmt.Errorf("save observed snapshot: %w", err)
	}
	return nil
}

// LatestObserved returns the most recent snapshot for a user and window,
// or nil if none was saved.
func (db *DB) LatestObserved(ctx context.Context, userID, window string) (*ObservedSnapshot, error) {
	var s ObservedSnapshot
	var computed int64
	var axes, signals string
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, time_window, computed_at, axes, signals, dropped
		FROM identity_observed WHERE user_id = ? AND time_window = ?
		ORDER BY computed_at DESC, rowid DESC LIMIT 1
	`, userID, window).Scan(&s.ID, &s.UserID, &s.Window, &computed, &axes, &signals, &s.Dropped)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest observed snapshot: %w", err)
	}
	s.ComputedAt = fromMillis(computed)
	s.Axes = json.RawMessage(axes)
	s.Signals = json.RawMessage(signals)
	return &s, nil
}

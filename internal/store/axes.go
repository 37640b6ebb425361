package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Axis lifecycle statuses.
const (
	StatusLatent   = "latent"
	StatusEmerging = "emerging"
	StatusCentral  = "central"
	StatusFading   = "fading"
)

// AxisRecord is the persisted form of an observed axis for one window.
type AxisRecord struct {
	UserID          string    `json:"user_id"`
	AxisKey         string    `json:"axis_key"`
	Window          string    `json:"window"`
	Label           string    `json:"label"`
	Description     string    `json:"description,omitempty"`
	Status          string    `json:"status"`
	RelevanceScore  float64   `json:"relevance_score"`
	Trend           string    `json:"trend"`
	FirstDetectedAt time.Time `json:"first_detected_at"`
	LastActiveAt    time.Time `json:"last_active_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UpsertAxis writes an axis keyed by (user, axis, window) in one statement.
// first_detected_at only ever moves earlier.
func (db *DB) UpsertAxis(ctx context.Context, a AxisRecord) error {
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	if a.Trend == "" {
		a.Trend = "stable"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO identity_axes (user_id, axis_key, time_window, label, description, status,
			relevance_score, trend, first_detected_at, last_active_at, updated_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, axis_key, time_window) DO UPDATE SET
			label             = excluded.label,
			description       = excluded.description,
			status            = excluded.status,
			relevance_score   = excluded.relevance_score,
			trend             = excluded.trend,
			first_detected_at = MIN(identity_axes.first_detected_at, excluded.first_detected_at),
			last_active_at    = excluded.last_active_at,
			updated_at        = excluded.updated_at
	`, a.UserID, a.AxisKey, a.Window, a.Label, a.Description, a.Status,
		a.RelevanceScore, a.Trend, toMillis(a.FirstDetectedAt), toMillis(a.LastActiveAt), toMillis(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert axis %s/%s/%s: %w", a.UserID, a.AxisKey, a.Window, err)
	}
	return nil
}

// GetAxis returns one stored axis, or nil if absent.
func (db *DB) GetAxis(ctx context.Context, userID, axisKey, window string) (*AxisRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT user_id, axis_key, time_window, label, description, status, relevance_score, trend,
			first_detected_at, last_active_at, updated_at
		FROM identity_axes WHERE user_id = ? AND axis_key = ? AND time_window = ?
	`, userID, axisKey, window)
	a, err := scanAxis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get axis: %w", err)
	}
	return a, nil
}

// ListAxes returns a user's stored axes for a window, strongest first.
func (db *DB) ListAxes(ctx context.Context, userID, window string) ([]AxisRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, axis_key, time_window, label, description, status, relevance_score, trend,
			first_detected_at, last_active_at, updated_at
		FROM identity_axes WHERE user_id = ? AND time_window = ?
		ORDER BY relevance_score DESC, axis_key ASC
	`, userID, window)
	if err != nil {
		return nil, fmt.Errorf("list axes: %w", err)
	}
	defer rows.Close()

	var axes []AxisRecord
	for rows.Next() {
		a, err := scanAxis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan axis: %w", err)
		}
		axes = append(axes, *a)
	}
	return axes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAxis(s scanner) (*AxisRecord, error) {
	var a AxisRecord
	var desc sql.NullString
	var first, last, updated int64
	if err := s.Scan(&a.UserID, &a.AxisKey, &a.Window, &a.Label, &desc, &a.Status, &a.RelevanceScore,
		&a.Trend, &first, &last, &updated); err != nil {
		return nil, err
	}
	a.Description = desc.String
	a.FirstDetectedAt = fromMillis(first)
	a.LastActiveAt = fromMillis(last)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}

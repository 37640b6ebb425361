package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Activity types produced by the upstream subsystems.
const (
	TypeHabit     = "habit"
	TypeJournal   = "journal"
	TypeFinance   = "finance"
	TypeBiography = "biography"
)

// Activity is one immutable record in a user's activity log. Timestamp is
// kept as received (ISO-8601); parsing happens at evaluation time so a bad
// value is counted rather than rejected at ingestion.
type Activity struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Subtype   string         `json:"subtype,omitempty"`
	Timestamp string         `json:"timestamp"`
	Text      string         `json:"text,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AddActivities appends records to the log. Records without an ID get one;
// a record whose (user_id, id) already exists is skipped, so re-importing
// the same export is harmless. Returns the number of rows inserted.
func (db *DB) AddActivities(ctx context.Context, acts []Activity) (int, error) {
	if len(acts) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add activities: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activities (id, user_id, type, subtype, timestamp, text, tags, metadata, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?, ?)
		ON CONFLICT (user_id, id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare add activity: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	inserted := 0
	for i := range acts {
		a := &acts[i]
		if strings.TrimSpace(a.UserID) == "" {
			return 0, fmt.Errorf("activity %d: user_id required", i)
		}
		if strings.TrimSpace(a.Type) == "" {
			return 0, fmt.Errorf("activity %d: type required", i)
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}

		tags, err := marshalNullable(a.Tags, len(a.Tags) == 0)
		if err != nil {
			return 0, fmt.Errorf("activity %s: encode tags: %w", a.ID, err)
		}
		meta, err := marshalNullable(a.Metadata, len(a.Metadata) == 0)
		if err != nil {
			return 0, fmt.Errorf("activity %s: encode metadata: %w", a.ID, err)
		}

		res, err := stmt.ExecContext(ctx, a.ID, a.UserID, a.Type, a.Subtype, a.Timestamp, a.Text, tags, meta, now)
		if err != nil {
			return 0, fmt.Errorf("insert activity %s: %w", a.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit activities: %w", err)
	}
	return inserted, nil
}

// ListActivities returns every activity for a user, oldest first.
func (db *DB) ListActivities(ctx context.Context, userID string) ([]Activity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, type, subtype, timestamp, text, tags, metadata
		FROM activities WHERE user_id = ?
		ORDER BY timestamp ASC, seq ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var acts []Activity
	for rows.Next() {
		var a Activity
		var subtype, text, tags, meta sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &subtype, &a.Timestamp, &text, &tags, &meta); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Subtype = subtype.String
		a.Text = text.String
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &a.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for %s: %w", a.ID, err)
			}
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", a.ID, err)
			}
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// CountActivities returns the number of activities logged for a user.
func (db *DB) CountActivities(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

// ListUsers returns every user id that has at least one activity.
func (db *DB) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT user_id FROM activities ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// marshalNullable JSON-encodes v, or returns nil (SQL NULL) when empty.
func marshalNullable(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

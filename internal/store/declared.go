package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeclaredIdentity is the user's own description of themselves.
type DeclaredIdentity struct {
	UserID      string         `json:"user_id"`
	BioText     string         `json:"bio_text"`
	CoreLabels  []string       `json:"core_labels"`
	PinnedStats map[string]any `json:"pinned_stats"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DeclaredVersion is an append-only snapshot of a prior declared identity.
type DeclaredVersion struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	BioText     string         `json:"bio_text"`
	CoreLabels  []string       `json:"core_labels"`
	PinnedStats map[string]any `json:"pinned_stats"`
	CreatedAt   time.Time      `json:"created_at"`
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetDeclared returns the declared identity, or nil if the user never wrote one.
func (db *DB) GetDeclared(ctx context.Context, userID string) (*DeclaredIdentity, error) {
	d, err := getDeclared(ctx, db, userID)
	if err != nil {
		return nil, fmt.Errorf("get declared identity: %w", err)
	}
	return d, nil
}

func getDeclared(ctx context.Context, q queryRower, userID string) (*DeclaredIdentity, error) {
	var d DeclaredIdentity
	var labels, pinned string
	var created, updated int64
	err := q.QueryRowContext(ctx, `
		SELECT user_id, bio_text, core_labels, pinned_stats, created_at, updated_at
		FROM identity_declared WHERE user_id = ?
	`, userID).Scan(&d.UserID, &d.BioText, &labels, &pinned, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodeDeclared(labels, pinned, &d.CoreLabels, &d.PinnedStats); err != nil {
		return nil, err
	}
	d.CreatedAt = fromMillis(created)
	d.UpdatedAt = fromMillis(updated)
	return &d, nil
}

// UpdateDeclared applies edit to the user's declared identity. In a single
// transaction the prior state (if any) is appended to the version history
// before the new state overwrites it. If edit returns an error nothing is
// written.
func (db *DB) UpdateDeclared(ctx context.Context, userID string, edit func(*DeclaredIdentity) error) (*DeclaredIdentity, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update declared: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	prev, err := getDeclared(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("load declared identity: %w", err)
	}

	next := DeclaredIdentity{
		UserID:      userID,
		CoreLabels:  []string{},
		PinnedStats: map[string]any{},
		CreatedAt:   now,
	}
	if prev != nil {
		next.BioText = prev.BioText
		next.CoreLabels = append(next.CoreLabels, prev.CoreLabels...)
		for k, v := range prev.PinnedStats {
			next.PinnedStats[k] = v
		}
		next.CreatedAt = prev.CreatedAt

		if err := insertVersion(ctx, tx, prev, now); err != nil {
			return nil, err
		}
	}

	if err := edit(&next); err != nil {
		return nil, err
	}
	if next.CoreLabels == nil {
		next.CoreLabels = []string{}
	}
	if next.PinnedStats == nil {
		next.PinnedStats = map[string]any{}
	}
	next.UserID = userID
	next.UpdatedAt = now

	labels, err := json.Marshal(next.CoreLabels)
	if err != nil {
		return nil, fmt.Errorf("encode core labels: %w", err)
	}
	pinned, err := json.Marshal(next.PinnedStats)
	if err != nil {
		return nil, fmt.Errorf("encode pinned stats: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identity_declared (user_id, bio_text, core_labels, pinned_stats, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			bio_text     = excluded.bio_text,
			core_labels  = excluded.core_labels,
			pinned_stats = excluded.pinned_stats,
			updated_at   = excluded.updated_at
	`, userID, next.BioText, string(labels), string(pinned), toMillis(next.CreatedAt), toMillis(now)); err != nil {
		return nil, fmt.Errorf("write declared identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit declared identity: %w", err)
	}
	return &next, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, prev *DeclaredIdentity, at time.Time) error {
	labels, err := json.Marshal(prev.CoreLabels)
	if err != nil {
		return fmt.Errorf("encode version labels: %w", err)
	}
	pinned, err := json.Marshal(prev.PinnedStats)
	if err != nil {
		return fmt.Errorf("encode version pinned stats: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identity_declared_versions (id, user_id, bio_text, core_labels, pinned_stats, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), prev.UserID, prev.BioText, string(labels), string(pinned), toMillis(at)); err != nil {
		return fmt.Errorf("snapshot declared identity: %w", err)
	}
	return nil
}

// ListDeclaredVersions returns prior declared identities, newest first.
func (db *DB) ListDeclaredVersions(ctx context.Context, userID string, limit int) ([]DeclaredVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, bio_text, core_labels, pinned_stats, created_at
		FROM identity_declared_versions WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list declared versions: %w", err)
	}
	defer rows.Close()

	var out []DeclaredVersion
	for rows.Next() {
		var v DeclaredVersion
		var labels, pinned string
		var created int64
		if err := rows.Scan(&v.ID, &v.UserID, &v.BioText, &labels, &pinned, &created); err != nil {
			return nil, fmt.Errorf("scan declared version: %w", err)
		}
		if err := decodeDeclared(labels, pinned, &v.CoreLabels, &v.PinnedStats); err != nil {
			return nil, fmt.Errorf("decode declared version %s: %w", v.ID, err)
		}
		v.CreatedAt = fromMillis(created)
		out = append(out, v)
	}
	return out, rows.Err()
}

func decodeDeclared(labels, pinned string, dstLabels *[]string, dstPinned *map[string]any) error {
	if err := json.Unmarshal([]byte(labels), dstLabels); err != nil {
		return fmt.Errorf("decode core labels: %w", err)
	}
	if err := json.Unmarshal([]byte(pinned), dstPinned); err != nil {
		return fmt.Errorf("decode pinned stats: %w", err)
	}
	if *dstLabels == nil {
		*dstLabels = []string{}
	}
	if *dstPinned == nil {
		*dstPinned = map[string]any{}
	}
	return nil
}

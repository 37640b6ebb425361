package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Feedback contexts.
const (
	FeedbackMonthlyReview     = "monthly_review"
	FeedbackAxisSummary       = "axis_summary"
	FeedbackAchievementUnlock = "achievement_unlock"
	FeedbackPatternDetected   = "pattern_detected"
)

// FeedbackHistoryLimit is how many entries ListFeedback returns by default.
const FeedbackHistoryLimit = 50

// ErrEmptyFeedback is returned when feedback content is blank.
var ErrEmptyFeedback = errors.New("feedback content is empty")

// ValidFeedbackContext reports whether c is empty or a known context.
func ValidFeedbackContext(c string) bool {
	switch c {
	case "", FeedbackMonthlyReview, FeedbackAxisSummary, FeedbackAchievementUnlock, FeedbackPatternDetected:
		return true
	}
	return false
}

// FeedbackEntry is one piece of generated feedback shown to a user.
type FeedbackEntry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Context    string          `json:"context,omitempty"`
	Content    string          `json:"content"`
	BasedOn    json.RawMessage `json:"based_on,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AddFeedback appends an entry. Content is trimmed and must not be empty;
// ID and CreatedAt are filled in when unset.
func (db *DB) AddFeedback(ctx context.Context, f *FeedbackEntry) error {
	f.Content = strings.TrimSpace(f.Content)
	if f.Content == "" {
		return ErrEmptyFeedback
	}
	if !ValidFeedbackContext(f.Context) {
		return fmt.Errorf("add feedback: unknown context %q", f.Context)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	var basedOn, fbContext any
	if len(f.BasedOn) > 0 {
		basedOn = string(f.BasedOn)
	}
	if f.Context != "" {
		fbContext = f.Context
	}
	var confidence any
	if f.Confidence != nil {
		confidence = *f.Confidence
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO feedback_history (id, user_id, context, content, based_on, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.UserID, fbContext, f.Content, basedOn, confidence, toMillis(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

// ListFeedback returns a user's feedback newest first, optionally only one
// context. A limit of zero or less means FeedbackHistoryLimit.
func (db *DB) ListFeedback(ctx context.Context, userID, fbContext string, limit int) ([]FeedbackEntry, error) {
	if limit <= 0 {
		limit = FeedbackHistoryLimit
	}
	query := `
		SELECT id, user_id, context, content, based_on, confidence, created_at
		FROM feedback_history WHERE user_id = ?`
	args := []any{userID}
	if fbContext != "" {
		query += ` AND context = ?`
		args = append(args, fbContext)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []FeedbackEntry
	for rows.Next() {
		var (
			f          FeedbackEntry
			fbCtx      sql.NullString
			basedOn    sql.NullString
			confidence sql.NullFloat64
			created    int64
		)
		if err := rows.Scan(&f.ID, &f.UserID, &fbCtx, &f.Content, &basedOn, &confidence, &created); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.Context = fbCtx.String
		if basedOn.Valid {
			f.BasedOn = json.RawMessage(basedOn.String)
		}
		if confidence.Valid {
			c := confidence.Float64
			f.Confidence = &c
		}
		f.CreatedAt = fromMillis(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserAchievement is a user's standing against one catalog achievement.
// CompletedAt is set on the first completion and never cleared, even if a
// later evaluation finds the milestone no longer met.
type UserAchievement struct {
	UserID          string     `json:"user_id"`
	AchievementID   string     `json:"achievement_id"`
	Progress        float64    `json:"progress"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	LastEvaluatedAt time.Time  `json:"last_evaluated_at"`
}

// GetUserAchievement returns the stored state, or nil before the first
// evaluation.
func (db *DB) GetUserAchievement(ctx context.Context, userID, achievementID string) (*UserAchievement, error) {
	row := db.QueryRowContext(ctx, `
		SELECT user_id, achievement_id, progress, completed, completed_at, last_evaluated_at
		FROM user_achievements WHERE user_id = ? AND achievement_id = ?
	`, userID, achievementID)
	ua, err := scanUserAchievement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user achievement: %w", err)
	}
	return ua, nil
}

// UpsertUserAchievement creates or overwrites progress and completion.
// completed_at keeps any previously stored value.
func (db *DB) UpsertUserAchievement(ctx context.Context, ua UserAchievement) error {
	if ua.LastEvaluatedAt.IsZero() {
		ua.LastEvaluatedAt = time.Now()
	}
	completed := 0
	if ua.Completed {
		completed = 1
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, progress, completed, completed_at, last_evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO UPDATE SET
			progress          = excluded.progress,
			completed         = excluded.completed,
			completed_at      = COALESCE(user_achievements.completed_at, excluded.completed_at),
			last_evaluated_at = excluded.last_evaluated_at
	`, ua.UserID, ua.AchievementID, ua.Progress, completed, nullMillis(ua.CompletedAt), toMillis(ua.LastEvaluatedAt))
	if err != nil {
		return fmt.Errorf("upsert user achievement %s/%s: %w", ua.UserID, ua.AchievementID, err)
	}
	return nil
}

// ListUserAchievements returns completed achievements first, then by progress.
func (db *DB) ListUserAchievements(ctx context.Context, userID string) ([]UserAchievement, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, achievement_id, progress, completed, completed_at, last_evaluated_at
		FROM user_achievements WHERE user_id = ?
		ORDER BY completed DESC, progress DESC, achievement_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user achievements: %w", err)
	}
	defer rows.Close()

	var out []UserAchievement
	for rows.Next() {
		ua, err := scanUserAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user achievement: %w", err)
		}
		out = append(out, *ua)
	}
	return out, rows.Err()
}

func scanUserAchievement(s scanner) (*UserAchievement, error) {
	var ua UserAchievement
	var completed int
	var completedAt sql.NullInt64
	var evaluated int64
	if err := s.Scan(&ua.UserID, &ua.AchievementID, &ua.Progress, &completed, &completedAt, &evaluated); err != nil {
		return nil, err
	}
	ua.Completed = completed != 0
	ua.CompletedAt = fromNullMillis(completedAt)
	ua.LastEvaluatedAt = fromMillis(evaluated)
	return &ua, nil
}

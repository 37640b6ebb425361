package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/lazypower/lifeaxes/internal/store"
)

var (
	ErrEmptyLabel     = errors.New("core label is empty")
	ErrDuplicateLabel = errors.New("core label already declared")
	ErrLabelNotFound  = errors.New("core label not declared")
)

// SetBio replaces the free-text biography.
func (e *Engine) SetBio(ctx context.Context, userID, bio string) (*store.DeclaredIdentity, error) {
	return e.Declared.UpdateDeclared(ctx, userID, func(d *store.DeclaredIdentity) error {
		d.BioText = strings.TrimSpace(bio)
		return nil
	})
}

// AddCoreLabel appends a label. Labels are trimmed and compared without
// regard to case.
func (e *Engine) AddCoreLabel(ctx context.Context, userID, label string) (*store.DeclaredIdentity, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}
	return e.Declared.UpdateDeclared(ctx, userID, func(d *store.DeclaredIdentity) error {
		if labelIndex(d.CoreLabels, label) >= 0 {
			return ErrDuplicateLabel
		}
		d.CoreLabels = append(d.CoreLabels, label)
		return nil
	})
}

// RemoveCoreLabel drops a label.
func (e *Engine) RemoveCoreLabel(ctx context.Context, userID, label string) (*store.DeclaredIdentity, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}
	return e.Declared.UpdateDeclared(ctx, userID, func(d *store.DeclaredIdentity) error {
		i := labelIndex(d.CoreLabels, label)
		if i < 0 {
			return ErrLabelNotFound
		}
		d.CoreLabels = append(d.CoreLabels[:i], d.CoreLabels[i+1:]...)
		return nil
	})
}

// SetPinnedStats replaces the pinned stats map.
func (e *Engine) SetPinnedStats(ctx context.Context, userID string, stats map[string]any) (*store.DeclaredIdentity, error) {
	return e.Declared.UpdateDeclared(ctx, userID, func(d *store.DeclaredIdentity) error {
		d.PinnedStats = stats
		return nil
	})
}

// ReplaceDeclared overwrites bio, labels and pinned stats at once. Labels
// are trimmed, empties dropped and duplicates collapsed.
func (e *Engine) ReplaceDeclared(ctx context.Context, userID, bio string, labels []string, stats map[string]any) (*store.DeclaredIdentity, error) {
	clean := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || labelIndex(clean, l) >= 0 {
			continue
		}
		clean = append(clean, l)
	}
	return e.Declared.UpdateDeclared(ctx, userID, func(d *store.DeclaredIdentity) error {
		d.BioText = strings.TrimSpace(bio)
		d.CoreLabels = clean
		d.PinnedStats = stats
		return nil
	})
}

// DeclaredHistory lists earlier versions of the declared identity, newest
// first.
func (e *Engine) DeclaredHistory(ctx context.Context, userID string, limit int) ([]store.DeclaredVersion, error) {
	return e.Declared.ListDeclaredVersions(ctx, userID, limit)
}

func labelIndex(labels []string, label string) int {
	want := fold(label)
	for i, l := range labels {
		if fold(strings.TrimSpace(l)) == want {
			return i
		}
	}
	return -1
}

package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/store"
)

const testCatalogYAML = `
axes:
  - key: body
    label: Corpo & Movimento
    evidence:
      habits: [corrida, yoga]
      journal: [treino]
      finance: [academia]
      biography: [maratona]
    minimum_signals:
      habit_days: 10
      months_active: 2
  - key: mind
    label: Estudo & Leitura
    evidence:
      habits: [leitura]
      journal: [livro, estudo]
      finance: [livraria]
achievements:
  - id: ten_runs
    axis_key: body
    title: Ten runs
    signal: activity_count
    threshold: 10
  - id: body_streak_5
    axis_key: body
    signal: streak
    threshold: 5
  - id: strongest_frequency
    signal: frequency
    threshold: 50
  - id: mind_mentions
    axis_key: mind
    signal: diary_mentions
    threshold: 3
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalogYAML))
	require.NoError(t, err)
	return c
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

var seq int

func act(user, typ, subtype, text string, at time.Time, tags ...string) store.Activity {
	seq++
	return store.Activity{
		ID:        fmt.Sprintf("a%d", seq),
		UserID:    user,
		Type:      typ,
		Subtype:   subtype,
		Timestamp: at.Format(time.RFC3339),
		Text:      text,
		Tags:      tags,
	}
}

func habit(user, subtype string, at time.Time) store.Activity {
	return act(user, store.TypeHabit, subtype, "", at)
}

func journal(user, text string, at time.Time, tags ...string) store.Activity {
	return act(user, store.TypeJournal, "", text, at, tags...)
}

// workedExample is twelve distinct run days across April, May and June,
// the last one exactly at now.
func workedExample(user string) ([]store.Activity, time.Time) {
	var acts []store.Activity
	for _, m := range []time.Month{time.April, time.May} {
		for _, d := range []int{1, 3, 5, 7} {
			acts = append(acts, habit(user, "Corrida no parque", day(2024, m, d)))
		}
	}
	for _, d := range []int{1, 3, 5} {
		acts = append(acts, habit(user, "corrida", day(2024, time.June, d)))
	}
	now := time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)
	acts = append(acts, habit(user, "CORRIDA", now))
	return acts, now
}

func events(t *testing.T, acts ...store.Activity) []Event {
	t.Helper()
	evs, dropped := ParseEvents(acts, time.UTC)
	require.Zero(t, dropped)
	return evs
}

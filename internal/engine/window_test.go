package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	cases := map[string]Window{
		"":      Window30d,
		"7d":    Window7d,
		" 30D ": Window30d,
		"90d":   Window90d,
		"1y":    Window1y,
		"365d":  Window1y,
		"year":  Window1y,
		"all":   WindowAll,
	}
	for in, want := range cases {
		got, err := ParseWindow(in, Window30d)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseWindow("2w", Window30d)
	assert.True(t, errors.Is(err, ErrUnknownWindow))
}

func TestWindowDays(t *testing.T) {
	assert.Equal(t, 7, Window7d.Days())
	assert.Equal(t, 365, Window1y.Days())
	assert.Equal(t, 1000, WindowAll.Days())
}

func TestInWindowBoundaries(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	mk := func(at time.Time) Event { return Event{At: at} }
	evs := []Event{
		mk(now.AddDate(0, 0, -7)),                   // exactly at the cutoff
		mk(now.AddDate(0, 0, -7).Add(-time.Second)), // just outside
		mk(now),
		mk(now.Add(time.Minute)), // future
		mk(now.AddDate(-5, 0, 0)),
	}

	got := InWindow(evs, Window7d, now)
	require.Len(t, got, 2)
	assert.True(t, got[0].At.Equal(now.AddDate(0, 0, -7)))
	assert.True(t, got[1].At.Equal(now))

	all := InWindow(evs, WindowAll, now)
	assert.Len(t, all, 4, "the unbounded window still drops future events")
}

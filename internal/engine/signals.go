package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/lazypower/lifeaxes/internal/store"
)

// Streak describes runs of consecutive active calendar days. Start and End
// bound the current run as YYYY-MM-DD.
type Streak struct {
	Current int    `json:"current"`
	Longest int    `json:"longest"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

// SignalBundle holds the quantitative signals for one axis over one window.
// It is recomputed on every run.
type SignalBundle struct {
	ActivityCount int            `json:"activity_count"`
	Streak        Streak         `json:"streak"`
	DiaryMentions int            `json:"diary_mentions"`
	TimeSpanDays  int            `json:"time_span_days"`
	Frequency     float64        `json:"frequency"`
	ActiveDays    int            `json:"active_days"`
	ByType        map[string]int `json:"by_type,omitempty"`
}

// civilDay numbers a local calendar date, so that consecutive dates differ
// by exactly one regardless of DST or zone offsets.
func civilDay(t time.Time, loc *time.Location) int64 {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func dayString(day int64) string {
	return time.Unix(day*86400, 0).UTC().Format("2006-01-02")
}

// distinctDays returns the sorted set of local days with at least one event.
func distinctDays(events []Event, loc *time.Location) []int64 {
	seen := make(map[int64]bool, len(events))
	days := make([]int64, 0, len(events))
	for _, e := range events {
		d := civilDay(e.At, loc)
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// computeStreak walks sorted distinct days. The current run is counted
// backward from the latest day; any gap other than one day ends it.
func computeStreak(days []int64) Streak {
	if len(days) == 0 {
		return Streak{}
	}

	last := len(days) - 1
	current := 1
	start := days[last]
	for i := last - 1; i >= 0; i-- {
		if days[i+1]-days[i] != 1 {
			break
		}
		current++
		start = days[i]
	}

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	return Streak{
		Current: current,
		Longest: longest,
		Start:   dayString(start),
		End:     dayString(days[last]),
	}
}

// Signals aggregates one axis's events over a window. events must already
// be restricted to the axis; the window filter is applied here.
func Signals(events []Event, w Window, now time.Time, loc *time.Location) SignalBundle {
	filtered := InWindow(events, w, now)

	b := SignalBundle{
		ActivityCount: len(filtered),
		ByType:        make(map[string]int),
	}
	if len(filtered) == 0 {
		return b
	}

	for _, e := range filtered {
		b.ByType[e.Type]++
		if e.Type == store.TypeJournal && strings.TrimSpace(e.Text) != "" {
			b.DiaryMentions++
		}
	}

	days := distinctDays(filtered, loc)
	b.ActiveDays = len(days)
	b.Streak = computeStreak(days)

	if len(filtered) >= 2 {
		first, last := filtered[0].At, filtered[0].At
		for _, e := range filtered[1:] {
			if e.At.Before(first) {
				first = e.At
			}
			if e.At.After(last) {
				last = e.At
			}
		}
		b.TimeSpanDays = int(civilDay(last, loc) - civilDay(first, loc))
	}

	b.Frequency = clamp01(float64(len(days)) / float64(w.Days()))
	return b
}

func clamp01(x float64) float64 {
	if x < 0 || x != x { // NaN floors to 0
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

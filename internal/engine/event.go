package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/lifeaxes/internal/store"
)

// Event is an activity whose timestamp parsed.
type Event struct {
	store.Activity
	At time.Time
}

// Layouts without a zone are read in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 timestamp. Values without a zone are
// interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// ParseEvents parses every activity, dropping the ones whose timestamp
// cannot be read. The second return value is the number dropped.
func ParseEvents(acts []store.Activity, loc *time.Location) ([]Event, int) {
	events := make([]Event, 0, len(acts))
	dropped := 0
	for _, a := range acts {
		at, err := ParseTimestamp(a.Timestamp, loc)
		if err != nil {
			dropped++
			continue
		}
		events = append(events, Event{Activity: a, At: at})
	}
	return events, dropped
}

// InWindow keeps events inside w relative to now. Events after now are
// never part of a run, whatever the window.
func InWindow(events []Event, w Window, now time.Time) []Event {
	cutoff, bounded := w.Cutoff(now)
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.At.After(now) {
			continue
		}
		if bounded && e.At.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out
}

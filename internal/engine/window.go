package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Window is the lookback period a run evaluates.
type Window string

const (
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window90d Window = "90d"
	Window1y  Window = "1y"
	WindowAll Window = "all"
)

// allDays is the fixed denominator used for the unbounded window.
const allDays = 1000

// Windows lists every supported window, shortest first.
var Windows = []Window{Window7d, Window30d, Window90d, Window1y, WindowAll}

// ErrUnknownWindow is returned by ParseWindow for unsupported values.
var ErrUnknownWindow = errors.New("unknown window")

// ParseWindow accepts the canonical names plus "365d" and "year" for 1y.
// An empty string yields def.
func ParseWindow(s string, def Window) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "7d":
		return Window7d, nil
	case "30d":
		return Window30d, nil
	case "90d":
		return Window90d, nil
	case "1y", "365d", "year":
		return Window1y, nil
	case "all":
		return WindowAll, nil
	}
	return "", fmt.Errorf("%w %q (want 7d, 30d, 90d, 1y or all)", ErrUnknownWindow, s)
}

// Days is the number of days used as the frequency and consistency
// denominator.
func (w Window) Days() int {
	switch w {
	case Window7d:
		return 7
	case Window30d:
		return 30
	case Window90d:
		return 90
	case Window1y:
		return 365
	case WindowAll:
		return allDays
	}
	return 30
}

// Cutoff returns the earliest instant inside the window and whether the
// window is bounded at all.
func (w Window) Cutoff(now time.Time) (time.Time, bool) {
	switch w {
	case Window7d:
		return now.AddDate(0, 0, -7), true
	case Window30d:
		return now.AddDate(0, 0, -30), true
	case Window90d:
		return now.AddDate(0, 0, -90), true
	case Window1y:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

func (w Window) String() string { return string(w) }

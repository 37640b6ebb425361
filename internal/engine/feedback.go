package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lazypower/lifeaxes/internal/store"
)

// Highlight kinds.
const (
	HighlightPattern   = "pattern"
	HighlightTrend     = "trend"
	HighlightMilestone = "milestone"
)

// Highlight is one rule-generated observation about a run.
type Highlight struct {
	Kind    string `json:"kind"`
	AxisKey string `json:"axis_key,omitempty"`
	Text    string `json:"text"`
}

// ErrUnknownFeedbackContext is returned for a history filter that names no
// known feedback context.
var ErrUnknownFeedbackContext = errors.New("unknown feedback context")

// Feedback is a rule-based reading of a run's result. HistoryID is set once
// the reading has been recorded.
type Feedback struct {
	Summary    string      `json:"summary"`
	Highlights []Highlight `json:"highlights"`
	HistoryID  string      `json:"history_id,omitempty"`
}

// FeedbackText summarizes which axes currently dominate. Axes are expected
// strongest first.
func FeedbackText(axes []ObservedAxis) string {
	if len(axes) == 0 {
		return "Not enough recorded activity yet to identify recurring axes."
	}
	var central []string
	for _, a := range axes {
		if StatusFor(a.Score, "") == store.StatusCentral {
			central = append(central, fmt.Sprintf("%s (%d activities)", a.Label, a.Signals.ActivityCount))
		}
	}
	if len(central) == 0 {
		a := axes[0]
		return fmt.Sprintf("Your most present axis is %s, with %d activities; none is central yet.",
			a.Label, a.Signals.ActivityCount)
	}
	return fmt.Sprintf("Central in your life right now: %s.", strings.Join(central, ", "))
}

// FeedbackFor builds the summary plus highlights for rising axes, long
// streaks and newly completed achievements.
func FeedbackFor(res Result) Feedback {
	fb := Feedback{Summary: FeedbackText(res.Axes), Highlights: []Highlight{}}
	for _, a := range res.Axes {
		if a.Trend == TrendUp {
			fb.Highlights = append(fb.Highlights, Highlight{
				Kind:    HighlightTrend,
				AxisKey: a.AxisKey,
				Text:    fmt.Sprintf("%s has been active in more months recently.", a.Label),
			})
		}
		if a.Signals.Streak.Current >= 7 {
			fb.Highlights = append(fb.Highlights, Highlight{
				Kind:    HighlightPattern,
				AxisKey: a.AxisKey,
				Text:    fmt.Sprintf("%s: %d days in a row.", a.Label, a.Signals.Streak.Current),
			})
		}
	}
	for _, ev := range res.Evaluations {
		if !ev.Completed {
			continue
		}
		fb.Highlights = append(fb.Highlights, Highlight{
			Kind:    HighlightMilestone,
			AxisKey: ev.AxisKey,
			Text:    unlockText(ev),
		})
	}
	return fb
}

func unlockText(ev Evaluation) string {
	title := ev.Title
	if title == "" {
		title = ev.AchievementID
	}
	return fmt.Sprintf("Achievement reached: %s.", title)
}

type axisBasis struct {
	AxisKey string  `json:"axis_key"`
	Score   float64 `json:"score"`
	Trend   string  `json:"trend"`
}

type feedbackBasis struct {
	Window     string      `json:"window"`
	Axes       []axisBasis `json:"axes"`
	Highlights []Highlight `json:"highlights"`
}

type unlockBasis struct {
	AchievementID string  `json:"achievement_id"`
	AxisKey       string  `json:"axis_key,omitempty"`
	Window        string  `json:"window"`
	Value         float64 `json:"value"`
	Threshold     float64 `json:"threshold"`
}

// summaryBasis records which axes a summary was generated from.
func summaryBasis(res Result, fb Feedback) feedbackBasis {
	b := feedbackBasis{Window: res.Window.String(), Axes: []axisBasis{}, Highlights: fb.Highlights}
	for _, a := range res.Axes {
		b.Axes = append(b.Axes, axisBasis{AxisKey: a.AxisKey, Score: a.Score, Trend: a.Trend})
	}
	return b
}

// summaryConfidence is the strongest axis score, or nil with no axes.
func summaryConfidence(axes []ObservedAxis) *float64 {
	if len(axes) == 0 {
		return nil
	}
	c := clamp01(axes[0].Score)
	return &c
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackText(t *testing.T) {
	assert.Equal(t, "Not enough recorded activity yet to identify recurring axes.", FeedbackText(nil))

	emerging := ObservedAxis{AxisKey: "body", Label: "Corpo", Score: 0.5, Signals: SignalBundle{ActivityCount: 12}}
	assert.Equal(t,
		"Your most present axis is Corpo, with 12 activities; none is central yet.",
		FeedbackText([]ObservedAxis{emerging}))

	central := ObservedAxis{AxisKey: "mind", Label: "Estudo", Score: 0.75, Signals: SignalBundle{ActivityCount: 40}}
	body := emerging
	body.Score = 0.7
	assert.Equal(t,
		"Central in your life right now: Estudo (40 activities), Corpo (12 activities).",
		FeedbackText([]ObservedAxis{central, body}))
}

func TestFeedbackForHighlights(t *testing.T) {
	res := Result{
		Axes: []ObservedAxis{{
			AxisKey: "body",
			Label:   "Corpo",
			Score:   0.8,
			Trend:   TrendUp,
			Signals: SignalBundle{ActivityCount: 30, Streak: Streak{Current: 9}},
		}},
		Evaluations: []Evaluation{
			{AchievementID: "ten_runs", AxisKey: "body", Title: "Ten runs", Completed: true},
			{AchievementID: "no_title", Completed: true},
			{AchievementID: "pending", Completed: false},
		},
	}

	fb := FeedbackFor(res)
	require.Len(t, fb.Highlights, 4)
	assert.Equal(t, HighlightTrend, fb.Highlights[0].Kind)
	assert.Equal(t, "Corpo has been active in more months recently.", fb.Highlights[0].Text)
	assert.Equal(t, TrendUp, Trend([]MonthCount{{"2024-04", 9}, {"2024-05", 1}, {"2024-06", 1}}),
		"the trend highlight follows the month-count rule")
	assert.Equal(t, HighlightPattern, fb.Highlights[1].Kind)
	assert.Equal(t, "Corpo: 9 days in a row.", fb.Highlights[1].Text)
	assert.Equal(t, "Achievement reached: Ten runs.", fb.Highlights[2].Text)
	assert.Equal(t, "Achievement reached: no_title.", fb.Highlights[3].Text)

	empty := FeedbackFor(Result{})
	assert.NotNil(t, empty.Highlights)
	assert.Empty(t, empty.Highlights)
}

package engine

import (
	"math"
	"time"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/store"
)

// remainingHintMax is the largest gap for which a "remaining" hint is shown.
const remainingHintMax = 10

// Aggregate is the signal record achievements are evaluated against.
type Aggregate struct {
	AxisKey       string  `json:"axis_key"`
	ActivityCount int     `json:"activity_count"`
	Streak        int     `json:"streak"`
	DiaryMentions int     `json:"diary_mentions"`
	TimeSpanDays  int     `json:"time_span_days"`
	Frequency     float64 `json:"frequency"`
}

// AggregateOf flattens a signal bundle for achievement evaluation. The
// streak used is the current one.
func AggregateOf(axisKey string, b SignalBundle) Aggregate {
	return Aggregate{
		AxisKey:       axisKey,
		ActivityCount: b.ActivityCount,
		Streak:        b.Streak.Current,
		DiaryMentions: b.DiaryMentions,
		TimeSpanDays:  b.TimeSpanDays,
		Frequency:     b.Frequency,
	}
}

// Remaining tells the user how close an achievement is.
type Remaining struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"`
}

// Evaluation is the outcome of one achievement against the current signals.
type Evaluation struct {
	AchievementID string         `json:"achievement_id"`
	AxisKey       string         `json:"axis_key,omitempty"`
	Title         string         `json:"title,omitempty"`
	Level         int            `json:"level,omitempty"`
	Signal        catalog.Signal `json:"signal"`
	Value         float64        `json:"value"`
	Threshold     float64        `json:"threshold"`
	Progress      float64        `json:"progress"`
	Completed     bool           `json:"completed"`
	Remaining     *Remaining     `json:"remaining,omitempty"`
}

// signalValue picks the value an achievement measures. Frequency is scaled
// to 0..100 to match how its thresholds are written.
func signalValue(signal catalog.Signal, a Aggregate) float64 {
	var v float64
	switch signal {
	case catalog.SignalActivityCount:
		v = float64(a.ActivityCount)
	case catalog.SignalStreak:
		v = float64(a.Streak)
	case catalog.SignalDiaryMentions:
		v = float64(a.DiaryMentions)
	case catalog.SignalTimeSpan:
		v = float64(a.TimeSpanDays)
	case catalog.SignalFrequency:
		v = a.Frequency * 100
	}
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func signalUnit(signal catalog.Signal) string {
	switch signal {
	case catalog.SignalActivityCount:
		return "activities"
	case catalog.SignalStreak, catalog.SignalTimeSpan:
		return "days"
	case catalog.SignalDiaryMentions:
		return "mentions"
	case catalog.SignalFrequency:
		return "percent"
	}
	return ""
}

// Evaluate measures def against aggs. aggs are expected in pipeline order
// (strongest axis first); a definition without an axis key takes the first
// one. With no matching aggregate the achievement has no progress.
func Evaluate(def catalog.AchievementDefinition, aggs []Aggregate) Evaluation {
	ev := Evaluation{
		AchievementID: def.ID,
		AxisKey:       def.AxisKey,
		Title:         def.Title,
		Level:         def.Level,
		Signal:        def.Signal,
		Threshold:     def.Threshold,
	}

	var agg *Aggregate
	for i := range aggs {
		if def.AxisKey == "" || aggs[i].AxisKey == def.AxisKey {
			agg = &aggs[i]
			break
		}
	}
	if agg == nil {
		return ev
	}
	if ev.AxisKey == "" {
		ev.AxisKey = agg.AxisKey
	}

	ev.Value = signalValue(def.Signal, *agg)
	if def.Threshold <= 0 {
		ev.Progress = 1
		ev.Completed = true
		return ev
	}
	ev.Progress = clamp01(ev.Value / def.Threshold)
	ev.Completed = ev.Value >= def.Threshold

	if diff := def.Threshold - ev.Value; !ev.Completed && diff > 0 && diff <= remainingHintMax {
		ev.Remaining = &Remaining{Amount: int(math.Ceil(diff - 1e-9)), Unit: signalUnit(def.Signal)}
	}
	return ev
}

// Advance applies an evaluation to the stored state. Progress and completed
// are overwritten; CompletedAt is set on the first completion and kept from
// then on, even if the milestone later regresses.
func Advance(prev *store.UserAchievement, userID string, ev Evaluation, now time.Time) store.UserAchievement {
	next := store.UserAchievement{
		UserID:          userID,
		AchievementID:   ev.AchievementID,
		Progress:        clamp01(ev.Progress),
		Completed:       ev.Completed,
		LastEvaluatedAt: now,
	}
	if prev != nil && prev.CompletedAt != nil {
		at := *prev.CompletedAt
		next.CompletedAt = &at
	} else if ev.Completed {
		at := now
		next.CompletedAt = &at
	}
	return next
}

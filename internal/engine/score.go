package engine

import (
	"sort"
	"time"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/store"
)

// Score weights.
const (
	weightConsistency = 0.45
	weightRecency     = 0.35
	weightCrossSource = 0.20

	// recencyHorizonDays is where recency decays to zero.
	recencyHorizonDays = 90.0

	// MinScore is the lowest score an axis can be emitted with.
	MinScore = 0.3
)

// Trend values.
const (
	TrendUp     = "up"
	TrendStable = "stable"
	TrendDown   = "down"
)

// Evidence is the per-category count of records backing an axis.
type Evidence struct {
	HabitDays       int `json:"habit_days"`
	JournalMentions int `json:"journal_mentions"`
	FinanceRelated  int `json:"finance_related"`
	BiographyEvents int `json:"biography_events"`
	MonthsActive    int `json:"months_active"`
}

// Sources is the number of evidence categories with a positive count.
func (e Evidence) Sources() int {
	n := 0
	for _, c := range []int{e.HabitDays, e.JournalMentions, e.FinanceRelated, e.BiographyEvents} {
		if c > 0 {
			n++
		}
	}
	return n
}

func (e Evidence) total() int {
	return nonNeg(e.HabitDays) + nonNeg(e.JournalMentions) + nonNeg(e.FinanceRelated) + nonNeg(e.BiographyEvents)
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// MonthCount is the number of axis events in one YYYY-MM month.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// CollectEvidence counts evidence for one axis's windowed events and
// returns the active months in ascending order with their event counts.
// HabitDays is the number of habit records, so several check-ins on one day
// each count.
func CollectEvidence(events []Event, loc *time.Location) (Evidence, []MonthCount) {
	var ev Evidence
	months := make(map[string]int)

	for _, e := range events {
		switch e.Type {
		case store.TypeHabit:
			ev.HabitDays++
		case store.TypeJournal:
			ev.JournalMentions++
		case store.TypeFinance:
			ev.FinanceRelated++
		case store.TypeBiography:
			ev.BiographyEvents++
		}
		at := e.At
		if loc != nil {
			at = at.In(loc)
		}
		months[at.Format("2006-01")]++
	}
	ev.MonthsActive = len(months)

	sorted := make([]MonthCount, 0, len(months))
	for m, n := range months {
		sorted = append(sorted, MonthCount{Month: m, Count: n})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Month < sorted[j].Month })
	return ev, sorted
}

// ScoreParts exposes the components of a relevance score.
type ScoreParts struct {
	Consistency float64 `json:"consistency"`
	Recency     float64 `json:"recency"`
	CrossSource float64 `json:"cross_source"`
	Score       float64 `json:"score"`
}

// Score computes the relevance of an axis from its evidence and the time of
// its latest activity.
func Score(ev Evidence, lastActive time.Time, w Window, now time.Time) ScoreParts {
	var p ScoreParts
	p.Consistency = clamp01(float64(ev.total()) / float64(w.Days()))

	if !lastActive.IsZero() {
		since := now.Sub(lastActive).Hours() / 24
		if since < 0 {
			since = 0
		}
		p.Recency = clamp01(1 - since/recencyHorizonDays)
	}

	p.CrossSource = float64(ev.Sources()) / 4
	p.Score = clamp01(weightConsistency*p.Consistency + weightRecency*p.Recency + weightCrossSource*p.CrossSource)
	return p
}

// Trend splits the active months at the middle index and compares how many
// months fall in each half. The split is by position in the list, so an odd
// number of months always leaves the later half one longer and reads as up,
// and two equal halves read as stable.
func Trend(months []MonthCount) string {
	if len(months) < 2 {
		return TrendStable
	}
	mid := len(months) / 2
	first := float64(len(months[:mid]))
	second := float64(len(months[mid:]))
	switch {
	case second > first*1.2:
		return TrendUp
	case second < first*0.8:
		return TrendDown
	}
	return TrendStable
}

// MeetsMinimum reports whether ev satisfies every non-zero floor of min.
// Integration is the number of evidence categories.
func MeetsMinimum(min catalog.Minimum, ev Evidence) bool {
	if min.HabitDays > 0 && ev.HabitDays < min.HabitDays {
		return false
	}
	if min.MonthsActive > 0 && ev.MonthsActive < min.MonthsActive {
		return false
	}
	if min.Integration > 0 && ev.Sources() < min.Integration {
		return false
	}
	return true
}

// StatusFor buckets a score into a lifecycle status. Fading only applies to
// an axis that was previously central, emerging or already fading.
func StatusFor(score float64, prev string) string {
	switch {
	case score >= 0.7:
		return store.StatusCentral
	case score >= 0.4:
		return store.StatusEmerging
	case score >= 0.2 && (prev == store.StatusCentral || prev == store.StatusEmerging || prev == store.StatusFading):
		return store.StatusFading
	}
	return store.StatusLatent
}

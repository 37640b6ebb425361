package engine

import (
	"sort"
	"time"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/store"
)

// ObservedAxis is one axis that passed its gate in a run.
type ObservedAxis struct {
	AxisKey         string       `json:"axis_key"`
	Label           string       `json:"label"`
	Description     string       `json:"description,omitempty"`
	Score           float64      `json:"score"`
	Parts           ScoreParts   `json:"parts"`
	Evidence        Evidence     `json:"evidence"`
	Trend           string       `json:"trend"`
	FirstDetectedAt time.Time    `json:"first_detected_at"`
	LastActiveAt    time.Time    `json:"last_active_at"`
	Signals         SignalBundle `json:"signals"`
}

// Result is everything one pipeline run computed. It is a pure function of
// the inputs.
type Result struct {
	UserID      string                  `json:"user_id"`
	Window      Window                  `json:"window"`
	Now         time.Time               `json:"now"`
	Axes        []ObservedAxis          `json:"axes"`
	Aggregates  []Aggregate             `json:"aggregates"`
	Signals     map[string]SignalBundle `json:"signals"`
	Scores      map[string]float64      `json:"scores"`
	Evaluations []Evaluation            `json:"evaluations"`
	Detected    []string                `json:"detected"`
	Dropped     int                     `json:"dropped"`
}

// Pipeline runs detection, aggregation, scoring and achievement evaluation
// over one user's history.
type Pipeline struct {
	Catalog  *catalog.Catalog
	Location *time.Location
}

type axisRun struct {
	def    *catalog.AxisDefinition
	bundle SignalBundle
	ev     Evidence
	months []MonthCount
	parts  ScoreParts
	first  time.Time
	last   time.Time
}

// Run computes axes and achievement evaluations for userID. Records owned
// by another user are ignored; records with unreadable timestamps are
// dropped and counted.
func (p Pipeline) Run(userID string, acts []store.Activity, w Window, now time.Time) Result {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	cat := p.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	owned := make([]store.Activity, 0, len(acts))
	for _, a := range acts {
		if a.UserID != "" && userID != "" && a.UserID != userID {
			continue
		}
		owned = append(owned, a)
	}
	events, dropped := ParseEvents(owned, loc)

	det := NewDetector(cat)
	byAxis := make(map[string][]Event)
	for _, e := range events {
		for _, key := range det.Detect(e.Activity) {
			byAxis[key] = append(byAxis[key], e)
		}
	}

	res := Result{
		UserID:      userID,
		Window:      w,
		Now:         now,
		Axes:        []ObservedAxis{},
		Aggregates:  []Aggregate{},
		Signals:     make(map[string]SignalBundle),
		Scores:      make(map[string]float64),
		Evaluations: []Evaluation{},
		Detected:    []string{},
		Dropped:     dropped,
	}

	var runs []axisRun
	for i := range cat.Axes {
		def := &cat.Axes[i]
		evs, ok := byAxis[def.Key]
		if !ok {
			continue
		}
		res.Detected = append(res.Detected, def.Key)

		windowed := InWindow(evs, w, now)
		if len(windowed) == 0 {
			continue
		}
		r := axisRun{def: def}
		r.bundle = Signals(windowed, w, now, loc)
		r.ev, r.months = CollectEvidence(windowed, loc)
		r.first, r.last = windowed[0].At, windowed[0].At
		for _, e := range windowed[1:] {
			if e.At.Before(r.first) {
				r.first = e.At
			}
			if e.At.After(r.last) {
				r.last = e.At
			}
		}
		r.parts = Score(r.ev, r.last, w, now)
		res.Signals[def.Key] = r.bundle
		res.Scores[def.Key] = r.parts.Score
		runs = append(runs, r)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].parts.Score > runs[j].parts.Score
	})

	for _, r := range runs {
		res.Aggregates = append(res.Aggregates, AggregateOf(r.def.Key, r.bundle))
		if !MeetsMinimum(r.def.Minimum, r.ev) || r.parts.Score < MinScore {
			continue
		}
		res.Axes = append(res.Axes, ObservedAxis{
			AxisKey:         r.def.Key,
			Label:           r.def.Label,
			Description:     r.def.Description,
			Score:           r.parts.Score,
			Parts:           r.parts,
			Evidence:        r.ev,
			Trend:           Trend(r.months),
			FirstDetectedAt: r.first,
			LastActiveAt:    r.last,
			Signals:         r.bundle,
		})
	}

	for _, def := range cat.Achievements {
		res.Evaluations = append(res.Evaluations, Evaluate(def, res.Aggregates))
	}
	return res
}

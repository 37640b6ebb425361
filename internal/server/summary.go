package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/lifeaxes/internal/engine"
	"github.com/lazypower/lifeaxes/internal/store"
)

// maxSummaryAxes caps the axes listed in a summary.
const maxSummaryAxes = 7

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	win, err := s.window(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	md, err := s.buildSummary(r.Context(), chi.URLParam(r, "userID"), win)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(md))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": md})
}

// buildSummary renders the persisted state of one user as markdown: stored
// axes ranked by score, declared labels and completed achievements.
func (s *Server) buildSummary(ctx context.Context, userID string, win engine.Window) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "## Life axes for %s (%s)\n", userID, win)

	axes, err := s.db.ListAxes(ctx, userID, win.String())
	if err != nil {
		return "", err
	}
	live := axes[:0]
	for _, a := range axes {
		if a.Status != store.StatusLatent {
			live = append(live, a)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return axisRank(live[i]) > axisRank(live[j])
	})
	if len(live) > maxSummaryAxes {
		live = live[:maxSummaryAxes]
	}

	if len(live) == 0 {
		b.WriteString("\nNo axes recorded yet. Run the pipeline after logging some activity.\n")
	} else {
		b.WriteString("\n### Axes\n")
		for _, a := range live {
			fmt.Fprintf(&b, "- %s [%s] score %.2f, trend %s, last active %s\n",
				a.Label, a.Status, a.RelevanceScore, a.Trend, a.LastActiveAt.Format("2006-01-02"))
		}
	}

	decl, err := s.db.GetDeclared(ctx, userID)
	if err != nil {
		return "", err
	}
	if decl != nil && (decl.BioText != "" || len(decl.CoreLabels) > 0) {
		b.WriteString("\n### Declared\n")
		if decl.BioText != "" {
			b.WriteString(decl.BioText)
			b.WriteString("\n")
		}
		if len(decl.CoreLabels) > 0 {
			fmt.Fprintf(&b, "Labels: %s\n", strings.Join(decl.CoreLabels, ", "))
		}
	}

	stored, err := s.db.ListUserAchievements(ctx, userID)
	if err != nil {
		return "", err
	}
	titles := make(map[string]string)
	for _, def := range s.catalog().Achievements {
		titles[def.ID] = def.Title
	}
	var done []string
	for _, ua := range stored {
		if !ua.Completed {
			continue
		}
		title := titles[ua.AchievementID]
		if title == "" {
			title = ua.AchievementID
		}
		done = append(done, title)
	}
	if len(done) > 0 {
		b.WriteString("\n### Achievements\n")
		for _, t := range done {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}

	return b.String(), nil
}

// axisRank orders axes for display. Central axes always lead; within a
// status the stored score decides.
func axisRank(a store.AxisRecord) float64 {
	boost := 0.0
	switch a.Status {
	case store.StatusCentral:
		boost = 2
	case store.StatusEmerging:
		boost = 1
	}
	return boost + math.Max(0, a.RelevanceScore)
}

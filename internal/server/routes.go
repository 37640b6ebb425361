package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/engine"
	"github.com/lazypower/lifeaxes/internal/ingest"
	"github.com/lazypower/lifeaxes/internal/store"
)

func (s *Server) catalog() *catalog.Catalog {
	if s.engine.Catalogs != nil {
		if c := s.engine.Catalogs.Current(); c != nil {
			return c
		}
	}
	return catalog.Default()
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog())
}

func (s *Server) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeError(w, http.StatusNotImplemented, "catalog is built in; nothing to reload")
		return
	}
	if err := s.reloader.Reload(); err != nil {
		s.log.Warn("catalog reload rejected", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c := s.catalog()
	writeJSON(w, http.StatusOK, map[string]int{
		"axes":         len(c.Axes),
		"achievements": len(c.Achievements),
	})
}

func (s *Server) handleAddActivities(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	batch, err := ingest.Parse(body, userID)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inserted, err := s.db.AddActivities(r.Context(), batch.Activities)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"received": len(batch.Activities),
		"inserted": inserted,
		"skipped":  batch.Skipped,
		"foreign":  batch.Foreign,
	})
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	acts, err := s.db.ListActivities(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if acts == nil {
		acts = []store.Activity{}
	}
	writeJSON(w, http.StatusOK, acts)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	win, err := s.window(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// A client hanging up must not abort writes that other waiters share.
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := s.runs.Do(userID+"|"+win.String(), func() (any, error) {
		return s.engine.Run(ctx, userID, win)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if shared {
		s.log.Debug("run coalesced", zap.String("user", userID), zap.String("window", win.String()))
	}
	writeJSON(w, http.StatusOK, v.(*engine.RunReport))
}

func (s *Server) handleListAxes(w http.ResponseWriter, r *http.Request) {
	win, err := s.window(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	axes, err := s.db.ListAxes(r.Context(), chi.URLParam(r, "userID"), win.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status := r.URL.Query().Get("status")
	out := make([]store.AxisRecord, 0, len(axes))
	for _, a := range axes {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, out)
}

// achievementView is a catalog achievement joined with the user's state.
type achievementView struct {
	catalog.AchievementDefinition
	Progress        float64    `json:"progress"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
}

func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	stored, err := s.db.ListUserAchievements(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	byID := make(map[string]store.UserAchievement, len(stored))
	for _, ua := range stored {
		byID[ua.AchievementID] = ua
	}

	defs := s.catalog().Achievements
	out := make([]achievementView, 0, len(defs))
	for _, def := range defs {
		v := achievementView{AchievementDefinition: def}
		if ua, ok := byID[def.ID]; ok {
			v.Progress = ua.Progress
			v.Completed = ua.Completed
			v.CompletedAt = ua.CompletedAt
			v.LastEvaluatedAt = &ua.LastEvaluatedAt
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

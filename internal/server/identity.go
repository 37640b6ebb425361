package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/lifeaxes/internal/store"
)

// defaultVersionLimit caps GET identity/versions without ?limit.
const defaultVersionLimit = 20

type identityBody struct {
	BioText     string         `json:"bio_text"`
	CoreLabels  []string       `json:"core_labels"`
	PinnedStats map[string]any `json:"pinned_stats"`
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	d, err := s.db.GetDeclared(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if d == nil {
		d = &store.DeclaredIdentity{UserID: userID}
	}
	if d.CoreLabels == nil {
		d.CoreLabels = []string{}
	}
	if d.PinnedStats == nil {
		d.PinnedStats = map[string]any{}
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handlePutIdentity(w http.ResponseWriter, r *http.Request) {
	var body identityBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	d, err := s.engine.ReplaceDeclared(r.Context(), chi.URLParam(r, "userID"), body.BioText, body.CoreLabels, body.PinnedStats)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	d, err := s.engine.AddCoreLabel(r.Context(), chi.URLParam(r, "userID"), body.Label)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleRemoveLabel(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if u, err := url.PathUnescape(label); err == nil {
		label = u
	}
	d, err := s.engine.RemoveCoreLabel(r.Context(), chi.URLParam(r, "userID"), label)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// queryLimit reads ?limit, falling back to def. ok is false after an error
// response has been written.
func queryLimit(w http.ResponseWriter, r *http.Request, def int) (limit int, ok bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func (s *Server) handleIdentityVersions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, defaultVersionLimit)
	if !ok {
		return
	}
	versions, err := s.engine.DeclaredHistory(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if versions == nil {
		versions = []store.DeclaredVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	win, err := s.window(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.engine.Compare(r.Context(), chi.URLParam(r, "userID"), win)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	win, err := s.window(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fb, err := s.engine.Feedback(r.Context(), chi.URLParam(r, "userID"), win)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (s *Server) handleFeedbackHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, store.FeedbackHistoryLimit)
	if !ok {
		return
	}
	entries, err := s.engine.FeedbackHistory(r.Context(), chi.URLParam(r, "userID"), r.URL.Query().Get("context"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.FeedbackEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

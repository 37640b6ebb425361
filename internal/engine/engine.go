package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/store"
)

// ActivityLog provides the append-only activity history.
type ActivityLog interface {
	ListActivities(ctx context.Context, userID string) ([]store.Activity, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// AxisStore persists observed axes keyed by (user, axis, window).
type AxisStore interface {
	GetAxis(ctx context.Context, userID, axisKey, window string) (*store.AxisRecord, error)
	ListAxes(ctx context.Context, userID, window string) ([]store.AxisRecord, error)
	UpsertAxis(ctx context.Context, a store.AxisRecord) error
}

// AchievementStore persists per-user achievement state.
type AchievementStore interface {
	GetUserAchievement(ctx context.Context, userID, achievementID string) (*store.UserAchievement, error)
	ListUserAchievements(ctx context.Context, userID string) ([]store.UserAchievement, error)
	UpsertUserAchievement(ctx context.Context, ua store.UserAchievement) error
}

// DeclaredStore holds the user's self-description. Writes must version the
// previous state before overwriting it.
type DeclaredStore interface {
	GetDeclared(ctx context.Context, userID string) (*store.DeclaredIdentity, error)
	UpdateDeclared(ctx context.Context, userID string, edit func(*store.DeclaredIdentity) error) (*store.DeclaredIdentity, error)
	ListDeclaredVersions(ctx context.Context, userID string, limit int) ([]store.DeclaredVersion, error)
}

// SnapshotStore keeps an audit trail of persisted runs.
type SnapshotStore interface {
	SaveObserved(ctx context.Context, s *store.ObservedSnapshot) error
	LatestObserved(ctx context.Context, userID, window string) (*store.ObservedSnapshot, error)
}

// FeedbackStore keeps the append-only history of generated feedback.
type FeedbackStore interface {
	AddFeedback(ctx context.Context, f *store.FeedbackEntry) error
	ListFeedback(ctx context.Context, userID, fbContext string, limit int) ([]store.FeedbackEntry, error)
}

// Engine binds the pipeline to its stores. Core computation stays in
// Pipeline; Engine only fetches, persists and reports.
type Engine struct {
	Activities   ActivityLog
	Axes         AxisStore
	Achievements AchievementStore
	Declared     DeclaredStore
	Snapshots    SnapshotStore
	History      FeedbackStore
	Catalogs     catalog.Provider
	Location     *time.Location
	Log          *zap.Logger

	// Now is read once at the start of every run.
	Now func() time.Time

	// Concurrency bounds RefreshAll. Zero means 4.
	Concurrency int

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates an Engine backed entirely by db.
func New(db *store.DB, catalogs catalog.Provider, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if catalogs == nil {
		catalogs = catalog.Static{C: catalog.Default()}
	}
	return &Engine{
		Activities:   db,
		Axes:         db,
		Achievements: db,
		Declared:     db,
		Snapshots:    db,
		History:      db,
		Catalogs:     catalogs,
		Location:     time.Local,
		Log:          log,
		Now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Failure is one persistence write that did not land.
type Failure struct {
	Kind string `json:"kind"` // axis, achievement, feedback or snapshot
	Key  string `json:"key"`
	Err  string `json:"error"`

	err error
}

// RunReport describes a persisted run. Failures lists writes that failed;
// the other writes of the run still happened.
type RunReport struct {
	Result
	Statuses            map[string]string `json:"statuses"`
	AxesWritten         int               `json:"axes_written"`
	AchievementsWritten int               `json:"achievements_written"`
	NewlyCompleted      []string          `json:"newly_completed"`
	SnapshotID          string            `json:"snapshot_id,omitempty"`
	Failures            []Failure         `json:"failures"`
}

// Err joins every failure into one error, or nil if all writes landed.
func (r *RunReport) Err() error {
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, f.err)
	}
	return err
}

func (r *RunReport) fail(kind, key string, err error) {
	r.Failures = append(r.Failures, Failure{Kind: kind, Key: key, Err: err.Error(), err: err})
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e *Engine) pipeline() Pipeline {
	var cat *catalog.Catalog
	if e.Catalogs != nil {
		cat = e.Catalogs.Current()
	}
	return Pipeline{Catalog: cat, Location: e.Location}
}

// Observe computes the user's axes and achievement evaluations without
// writing anything.
func (e *Engine) Observe(ctx context.Context, userID string, w Window) (*Result, error) {
	acts, err := e.Activities.ListActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch activities for %s: %w", userID, err)
	}
	res := e.pipeline().Run(userID, acts, w, e.now())
	return &res, nil
}

// Run computes and persists the user's axes and achievements for window w.
// Each write is attempted independently; the returned error is only for
// failing to read the activity log. Check RunReport.Failures for writes.
func (e *Engine) Run(ctx context.Context, userID string, w Window) (*RunReport, error) {
	res, err := e.Observe(ctx, userID, w)
	if err != nil {
		return nil, err
	}
	now := res.Now
	rep := &RunReport{
		Result:         *res,
		Statuses:       make(map[string]string),
		NewlyCompleted: []string{},
		Failures:       []Failure{},
	}

	e.persistAxes(ctx, rep)
	e.persistAchievements(ctx, rep, now)

	if e.Snapshots != nil {
		e.saveSnapshot(ctx, rep)
	}

	log := e.logger().With(zap.String("user", userID), zap.String("window", w.String()))
	if len(rep.Failures) > 0 {
		log.Warn("run finished with write failures",
			zap.Int("failures", len(rep.Failures)), zap.Error(rep.Err()))
	}
	log.Info("run complete",
		zap.Int("axes", len(rep.Axes)),
		zap.Int("achievements_written", rep.AchievementsWritten),
		zap.Strings("newly_completed", rep.NewlyCompleted),
		zap.Int("dropped", rep.Dropped))
	return rep, nil
}

func (e *Engine) persistAxes(ctx context.Context, rep *RunReport) {
	window := rep.Window.String()
	emitted := make(map[string]bool, len(rep.Axes))

	for _, a := range rep.Axes {
		emitted[a.AxisKey] = true
		prevStatus := ""
		prev, err := e.Axes.GetAxis(ctx, rep.UserID, a.AxisKey, window)
		if err != nil {
			rep.fail("axis", a.AxisKey, err)
			continue
		}
		if prev != nil {
			prevStatus = prev.Status
		}
		status := StatusFor(a.Score, prevStatus)
		rec := store.AxisRecord{
			UserID:          rep.UserID,
			AxisKey:         a.AxisKey,
			Window:          window,
			Label:           a.Label,
			Description:     a.Description,
			Status:          status,
			RelevanceScore:  a.Score,
			Trend:           a.Trend,
			FirstDetectedAt: a.FirstDetectedAt,
			LastActiveAt:    a.LastActiveAt,
			UpdatedAt:       rep.Now,
		}
		if err := e.Axes.UpsertAxis(ctx, rec); err != nil {
			rep.fail("axis", a.AxisKey, err)
			continue
		}
		rep.Statuses[a.AxisKey] = status
		rep.AxesWritten++
	}

	// Axes stored by an earlier run that no longer pass their gate are
	// re-bucketed so that they can fade.
	stored, err := e.Axes.ListAxes(ctx, rep.UserID, window)
	if err != nil {
		rep.fail("axis", "*", err)
		return
	}
	for _, prev := range stored {
		if emitted[prev.AxisKey] {
			continue
		}
		score := rep.Scores[prev.AxisKey]
		status := StatusFor(score, prev.Status)
		if status == prev.Status && score == prev.RelevanceScore {
			continue
		}
		prev.Status = status
		prev.RelevanceScore = score
		prev.UpdatedAt = rep.Now
		if err := e.Axes.UpsertAxis(ctx, prev); err != nil {
			rep.fail("axis", prev.AxisKey, err)
			continue
		}
		rep.Statuses[prev.AxisKey] = status
		rep.AxesWritten++
	}
}

func (e *Engine) persistAchievements(ctx context.Context, rep *RunReport, now time.Time) {
	for _, ev := range rep.Evaluations {
		prev, err := e.Achievements.GetUserAchievement(ctx, rep.UserID, ev.AchievementID)
		if err != nil {
			rep.fail("achievement", ev.AchievementID, err)
			continue
		}
		next := Advance(prev, rep.UserID, ev, now)
		if err := e.Achievements.UpsertUserAchievement(ctx, next); err != nil {
			rep.fail("achievement", ev.AchievementID, err)
			continue
		}
		rep.AchievementsWritten++
		if next.Completed && (prev == nil || prev.CompletedAt == nil) {
			rep.NewlyCompleted = append(rep.NewlyCompleted, ev.AchievementID)
			e.recordUnlock(ctx, rep, ev)
		}
	}
}

func (e *Engine) saveSnapshot(ctx context.Context, rep *RunReport) {
	axes, err := json.Marshal(rep.Axes)
	if err != nil {
		rep.fail("snapshot", rep.UserID, fmt.Errorf("encode axes: %w", err))
		return
	}
	signals, err := json.Marshal(rep.Signals)
	if err != nil {
		rep.fail("snapshot", rep.UserID, fmt.Errorf("encode signals: %w", err))
		return
	}
	snap := &store.ObservedSnapshot{
		UserID:     rep.UserID,
		Window:     rep.Window.String(),
		ComputedAt: rep.Now,
		Axes:       axes,
		Signals:    signals,
		Dropped:    rep.Dropped,
	}
	if err := e.Snapshots.SaveObserved(ctx, snap); err != nil {
		rep.fail("snapshot", rep.UserID, err)
		return
	}
	rep.SnapshotID = snap.ID
}

// Compare reads the user's declared labels and compares them against the
// axes observed in window w.
func (e *Engine) Compare(ctx context.Context, userID string, w Window) (*Comparison, error) {
	decl, err := e.Declared.GetDeclared(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load declared identity: %w", err)
	}
	res, err := e.Observe(ctx, userID, w)
	if err != nil {
		return nil, err
	}
	var labels []string
	if decl != nil {
		labels = decl.CoreLabels
	}
	c := Compare(labels, res.Axes)
	return &c, nil
}

// Feedback produces the rule-based reading of the user's current axes and
// appends it to the feedback history. A failed history write is logged and
// the reading is still returned without a HistoryID.
func (e *Engine) Feedback(ctx context.Context, userID string, w Window) (*Feedback, error) {
	res, err := e.Observe(ctx, userID, w)
	if err != nil {
		return nil, err
	}
	fb := FeedbackFor(*res)
	if e.History == nil {
		return &fb, nil
	}

	entry := &store.FeedbackEntry{
		UserID:     userID,
		Context:    store.FeedbackAxisSummary,
		Content:    fb.Summary,
		Confidence: summaryConfidence(res.Axes),
		CreatedAt:  res.Now,
	}
	basedOn, err := json.Marshal(summaryBasis(*res, fb))
	if err == nil {
		entry.BasedOn = basedOn
	}
	if err := e.History.AddFeedback(ctx, entry); err != nil {
		e.logger().Warn("feedback not recorded", zap.String("user", userID), zap.Error(err))
		return &fb, nil
	}
	fb.HistoryID = entry.ID
	return &fb, nil
}

// FeedbackHistory lists a user's recorded feedback newest first. fbContext
// filters by context when set; limit <= 0 means the store default.
func (e *Engine) FeedbackHistory(ctx context.Context, userID, fbContext string, limit int) ([]store.FeedbackEntry, error) {
	if !store.ValidFeedbackContext(fbContext) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeedbackContext, fbContext)
	}
	if e.History == nil {
		return nil, nil
	}
	return e.History.ListFeedback(ctx, userID, fbContext, limit)
}

func (e *Engine) recordUnlock(ctx context.Context, rep *RunReport, ev Evaluation) {
	if e.History == nil {
		return
	}
	basedOn, err := json.Marshal(unlockBasis{
		AchievementID: ev.AchievementID,
		AxisKey:       ev.AxisKey,
		Window:        rep.Window.String(),
		Value:         ev.Value,
		Threshold:     ev.Threshold,
	})
	if err != nil {
		rep.fail("feedback", ev.AchievementID, fmt.Errorf("encode unlock: %w", err))
		return
	}
	full := 1.0
	entry := &store.FeedbackEntry{
		UserID:     rep.UserID,
		Context:    store.FeedbackAchievementUnlock,
		Content:    unlockText(ev),
		BasedOn:    basedOn,
		Confidence: &full,
		CreatedAt:  rep.Now,
	}
	if err := e.History.AddFeedback(ctx, entry); err != nil {
		rep.fail("feedback", ev.AchievementID, err)
	}
}

// RefreshAll runs and persists every user in the activity log. Per-user
// failures are joined into the returned error; other users still run.
func (e *Engine) RefreshAll(ctx context.Context, w Window) (int, error) {
	users, err := e.Activities.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	limit := e.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	var errs error
	ran := 0
	for _, u := range users {
		u := u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := e.Run(gctx, u, w)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("run %s: %w", u, err))
				return nil
			}
			if ferr := rep.Err(); ferr != nil {
				errs = multierr.Append(errs, fmt.Errorf("run %s: %w", u, ferr))
			}
			ran++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return ran, errs
}

// StartRefreshTimer refreshes every user once immediately and then every
// interval until Stop is called. A non-positive interval disables it.
func (e *Engine) StartRefreshTimer(interval time.Duration, w Window) {
	if interval <= 0 {
		return
	}
	if e.stopCh == nil {
		e.stopCh = make(chan struct{})
	}
	refresh := func() {
		n, err := e.RefreshAll(context.Background(), w)
		if err != nil {
			e.logger().Error("refresh failed", zap.Error(err), zap.Int("users", n))
			return
		}
		if n > 0 {
			e.logger().Info("refresh complete", zap.Int("users", n), zap.String("window", w.String()))
		}
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		refresh()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				refresh()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop ends the refresh timer and waits for it to exit. Safe to call more
// than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.stopCh != nil {
			close(e.stopCh)
		}
	})
	e.wg.Wait()
}

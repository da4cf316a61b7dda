package main

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/middleware"
	"exam-allocation/internal/models"
	"exam-allocation/internal/progress"
	"exam-allocation/internal/strategy"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

type roomRow struct {
	Room     *models.Room
	Assigned int
	Courses  []string
}

// lastRunView feeds the "last-run" fragment. Live adds the attribute that
// subscribes the browser to the progress stream.
type lastRunView struct {
	Progress *models.Progress
	Live     bool
}

func (v lastRunView) done() bool {
	return v.Progress.Percent < 0 || v.Progress.Percent >= 100
}

type dashboardData struct {
	Rooms      []roomRow
	Assigned   int
	Strategies []*models.Strategy
	Active     *models.Strategy
	LastRun    *lastRunView
	Error      string
}

// Dashboard serves the HTML overview and its allocation form.
type Dashboard struct {
	engine   *allocation.Engine
	registry *strategy.Registry
	tracker  progress.Tracker
	tmpl     *template.Template
	logger   *zap.Logger
	// poll is how often a progress stream re-reads the tracker.
	poll time.Duration
}

func NewDashboard(engine *allocation.Engine, registry *strategy.Registry, tracker progress.Tracker, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		engine:   engine,
		registry: registry,
		tracker:  tracker,
		tmpl:     template.Must(template.ParseFS(templateFS, "templates/*.html")),
		logger:   logger,
		poll:     500 * time.Millisecond,
	}
}

func (d *Dashboard) render(w http.ResponseWriter, r *http.Request, data any) {
	wrapper := struct {
		Data      any
		CSRFToken string
	}{
		Data:      data,
		CSRFToken: middleware.TokenFromContext(r.Context()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.tmpl.ExecuteTemplate(w, "layout", wrapper); err != nil {
		d.logger.Error("failed to render dashboard", zap.Error(err))
	}
}

func (d *Dashboard) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	rooms, err := d.engine.EligibleRooms(ctx)
	if err != nil {
		d.logger.Error("dashboard rooms", zap.Error(err))
		http.Error(w, "rooms unavailable", http.StatusServiceUnavailable)
		return
	}
	assignments, err := d.engine.ListAssignments(ctx)
	if err != nil {
		d.logger.Error("dashboard assignments", zap.Error(err))
		http.Error(w, "assignments unavailable", http.StatusServiceUnavailable)
		return
	}
	strategies, err := d.registry.List(ctx)
	if err != nil {
		d.logger.Error("dashboard strategies", zap.Error(err))
		http.Error(w, "strategies unavailable", http.StatusServiceUnavailable)
		return
	}

	data := dashboardData{
		Rooms:      summarizeRooms(rooms, assignments),
		Assigned:   len(assignments),
		Strategies: strategies,
		Error:      r.URL.Query().Get("error"),
	}
	for _, s := range strategies {
		if s.Active {
			data.Active = s
		}
	}
	if runID := r.URL.Query().Get("run"); runID != "" {
		if p, err := d.tracker.Get(ctx, runID); err == nil {
			view := &lastRunView{Progress: p}
			view.Live = !view.done()
			data.LastRun = view
		}
	}
	d.render(w, r, data)
}

// Allocate runs a full allocation from the dashboard form and redirects back.
func (d *Dashboard) Allocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	var opts allocation.RunOptions
	if v := r.FormValue("strategy_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			http.Error(w, "Invalid strategy", http.StatusBadRequest)
			return
		}
		opts.StrategyID = id
	}

	res, err := d.engine.RunFullAllocation(r.Context(), opts)
	if err != nil {
		http.Redirect(w, r, "/?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/?run="+url.QueryEscape(res.RunID), http.StatusSeeOther)
}

type progressSignals struct {
	RunID string `json:"runId"`
}

// StreamProgress pushes the "last-run" fragment over server-sent events each
// time the run's progress changes, and ends once the run succeeds or fails.
func (d *Dashboard) StreamProgress(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if r.URL.Query().Has("datastar") {
		signals := &progressSignals{}
		if err := datastar.ReadSignals(r, signals); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if signals.RunID != "" {
			runID = signals.RunID
		}
	}
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("run_id is required"))
		return
	}

	ctx := r.Context()
	p, err := d.tracker.Get(ctx, runID)
	if errors.Is(err, progress.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, Fail("unknown run"))
		return
	}
	if err != nil {
		d.logger.Error("progress stream", zap.String("run_id", runID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail("progress unavailable"))
		return
	}

	sse := datastar.NewSSE(w, r)
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	var (
		last models.Progress
		sent bool
	)
	for {
		if !sent || p.Percent != last.Percent || p.Message != last.Message {
			view := lastRunView{Progress: p}
			var buf bytes.Buffer
			if err := d.tmpl.ExecuteTemplate(&buf, "last-run", view); err != nil {
				d.logger.Error("failed to render progress", zap.Error(err))
				return
			}
			if err := sse.PatchElements(buf.String()); err != nil {
				return
			}
			last, sent = *p, true
			if view.done() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next, err := d.tracker.Get(ctx, runID)
		if errors.Is(err, progress.ErrNotFound) {
			return
		}
		if err != nil {
			d.logger.Warn("progress stream read failed", zap.String("run_id", runID), zap.Error(err))
			continue
		}
		p = next
	}
}

func summarizeRooms(rooms []*models.Room, assignments []*models.Assignment) []roomRow {
	rows := make([]roomRow, len(rooms))
	index := make(map[int64]int, len(rooms))
	for i, room := range rooms {
		rows[i].Room = room
		index[room.ID] = i
	}
	for _, a := range assignments {
		i, ok := index[a.RoomID]
		if !ok {
			continue
		}
		rows[i].Assigned++
		if !slices.Contains(rows[i].Courses, a.CourseLabel) {
			rows[i].Courses = append(rows[i].Courses, a.CourseLabel)
		}
	}
	return rows
}

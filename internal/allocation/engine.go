package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/models"

	"go.uber.org/zap"
)

// Engine runs the full-roster and single-placement workflows. Planning and
// binding are pure; only the engine talks to the DataStore.
type Engine struct {
	store      DataStore
	strategies StrategyProvider

	logger   *zap.Logger
	progress ProgressReporter
	metrics  MetricsRecorder
	now      func() time.Time
	newRunID func() string

	rosterLimit     int
	courseLabels    []string
	autoEnrollLimit int
}

func NewEngine(store DataStore, strategies StrategyProvider, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		strategies:      strategies,
		logger:          zap.NewNop(),
		progress:        nopProgress{},
		metrics:         nopMetrics{},
		now:             time.Now,
		newRunID:        defaultRunID,
		rosterLimit:     DefaultRosterLimit,
		courseLabels:    DefaultCourseLabels,
		autoEnrollLimit: DefaultAutoEnrollLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type RunOptions struct {
	// StrategyID selects a strategy; 0 uses the active one.
	StrategyID int64
	// CourseLabels are cycled by group index. Empty uses the engine's labels.
	CourseLabels []string
	// ExamDate puts every group on one day. Zero alternates today and tomorrow.
	ExamDate time.Time
	// RosterLimit overrides the engine's roster cap when > 0.
	RosterLimit int
}

// RunFullAllocation replaces the whole ledger with a fresh allocation of the
// eligible roster. Preconditions are checked before the ledger is touched and
// the clear and insert commit together or not at all.
func (e *Engine) RunFullAllocation(ctx context.Context, opts RunOptions) (result *models.RunResult, err error) {
	start := e.now()
	runID := e.newRunID()
	log := e.logger.With(zap.String("run_id", runID))
	strategyType := "unknown"

	defer func() {
		duration := e.now().Sub(start)
		if err != nil {
			// A canceled ctx is a common cause of failure; the terminal
			// update must still land.
			e.report(context.WithoutCancel(ctx), runID, -1, err.Error())
			e.metrics.RecordRun(strategyType, outcomeOf(err), 0, 0, duration)
			if apperrors.KindOf(err) == apperrors.KindPersistenceFailure {
				log.Error("allocation run failed", zap.Error(err))
			} else {
				log.Warn("allocation run rejected", zap.Error(err))
			}
			return
		}
		result.Duration = duration
		e.metrics.RecordRun(strategyType, "success", len(result.Assignments), len(result.UnplacedExaminees), duration)
		log.Info("allocation run complete",
			zap.String("strategy", result.Strategy),
			zap.Int("groups", result.GroupCount),
			zap.Int("placed", len(result.Assignments)),
			zap.Int("unplaced", len(result.UnplacedExaminees)),
			zap.Int("rooms_used", result.RoomsUsed),
			zap.Int64("cleared", result.Cleared),
			zap.Duration("duration", duration),
		)
	}()

	e.report(ctx, runID, 0, "starting allocation run")

	strat, err := e.resolveStrategy(ctx, opts.StrategyID)
	if err != nil {
		return nil, err
	}
	strategyType = string(strat.Type)

	e.report(ctx, runID, 10, "fetching rooms")
	rooms, err := e.store.FetchRooms(ctx, models.RoomFilter{ActiveOnly: true, BookableOnly: true})
	if err != nil {
		return nil, apperrors.Persistence("fetch rooms", err)
	}
	eligible := FilterRooms(rooms)
	if len(eligible) == 0 {
		return nil, apperrors.Newf(apperrors.KindNoEligibleRooms, "none of %d rooms is active, bookable and has capacity", len(rooms))
	}

	e.report(ctx, runID, 25, "fetching roster")
	limit := e.rosterLimit
	if opts.RosterLimit > 0 {
		limit = opts.RosterLimit
	}
	raw, err := e.store.FetchEligibleRoster(ctx, limit)
	if err != nil {
		return nil, apperrors.Persistence("fetch roster", err)
	}
	roster := NormalizeRoster(raw)

	e.report(ctx, runID, 45, "computing groups")
	k := TargetGroupCount(len(eligible), len(rooms), len(roster))
	groups := Plan(PlanInput{
		Roster:     roster,
		GroupCount: k,
		Strategy:   strat,
		Capacities: capacities(eligible),
	})
	log.Debug("planned groups", zap.Int("k", k), zap.Int("groups", len(groups)), zap.Int("roster", len(roster)))

	e.report(ctx, runID, 65, "binding groups to rooms")
	now := e.now()
	labels := e.courseLabels
	if len(opts.CourseLabels) > 0 {
		labels = opts.CourseLabels
	}
	dates := AlternatingDates(now)
	if !opts.ExamDate.IsZero() {
		day := truncateToDay(opts.ExamDate)
		dates = func(int) time.Time { return day }
	}
	bound, err := Bind(BindInput{
		Groups: groups,
		Rooms:  eligible,
		Label:  CycleLabels(labels...),
		Date:   dates,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	e.report(ctx, runID, 80, "clearing previous assignments")
	var cleared int64
	err = e.store.InLedgerTx(ctx, func(l Ledger) error {
		n, err := l.ClearAll(ctx)
		if err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
		cleared = n
		e.report(ctx, runID, 90, "persisting assignments")
		if len(bound.Assignments) == 0 {
			return nil
		}
		if err := l.BulkInsert(ctx, bound.Assignments); err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Persistence("replace assignments", err)
	}
	e.report(context.WithoutCancel(ctx), runID, 100, fmt.Sprintf("placed %d examinees in %d rooms", len(bound.Assignments), bound.RoomsUsed))

	return &models.RunResult{
		RunID:             runID,
		Strategy:          strat.Name,
		StrategyType:      strat.Type,
		GroupCount:        len(groups),
		Cleared:           cleared,
		Assignments:       bound.Assignments,
		UnplacedExaminees: bound.UnplacedExaminees,
		RoomsUsed:         bound.RoomsUsed,
	}, nil
}

func (e *Engine) resolveStrategy(ctx context.Context, id int64) (*models.Strategy, error) {
	var (
		s   *models.Strategy
		err error
	)
	if id > 0 {
		s, err = e.strategies.GetByID(ctx, id)
	} else {
		s, err = e.strategies.GetActive(ctx)
	}
	if err != nil {
		return nil, apperrors.Persistence("resolve strategy", err)
	}
	return s, nil
}

// EligibleRooms returns the room pool in the order the binder uses it.
func (e *Engine) EligibleRooms(ctx context.Context) ([]*models.Room, error) {
	rooms, err := e.store.FetchRooms(ctx, models.RoomFilter{ActiveOnly: true, BookableOnly: true})
	if err != nil {
		return nil, apperrors.Persistence("fetch rooms", err)
	}
	return FilterRooms(rooms), nil
}

// Rooms returns every room, eligible or not.
func (e *Engine) Rooms(ctx context.Context) ([]*models.Room, error) {
	rooms, err := e.store.FetchRooms(ctx, models.RoomFilter{})
	if err != nil {
		return nil, apperrors.Persistence("fetch rooms", err)
	}
	return rooms, nil
}

func (e *Engine) ListAssignments(ctx context.Context) ([]*models.Assignment, error) {
	list, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list assignments", err)
	}
	return list, nil
}

// ClearAll removes every assignment and reports how many were removed.
func (e *Engine) ClearAll(ctx context.Context) (int64, error) {
	var n int64
	err := e.store.InLedgerTx(ctx, func(l Ledger) error {
		var err error
		n, err = l.ClearAll(ctx)
		return err
	})
	if err != nil {
		return 0, apperrors.Persistence("clear assignments", err)
	}
	e.logger.Info("cleared assignment ledger", zap.Int64("removed", n))
	return n, nil
}

func (e *Engine) report(ctx context.Context, runID string, percent int, message string) {
	e.progress.Report(ctx, models.Progress{
		RunID:     runID,
		Percent:   percent,
		Message:   message,
		UpdatedAt: e.now(),
	})
}

func outcomeOf(err error) string {
	if kind := apperrors.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

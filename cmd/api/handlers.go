package main

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/models"
	"exam-allocation/internal/progress"
	"exam-allocation/internal/report"
	"exam-allocation/internal/strategy"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type runRequest struct {
	StrategyID   int64    `json:"strategy_id" validate:"gte=0"`
	CourseLabels []string `json:"course_labels" validate:"omitempty,max=16,dive,required,max=32"`
	ExamDate     string   `json:"exam_date" validate:"omitempty,datetime=2006-01-02"`
	RosterLimit  int      `json:"roster_limit" validate:"gte=0,lte=10000"`
}

type placeRequest struct {
	CourseID int64 `json:"course_id" validate:"required,gt=0"`
	RoomID   int64 `json:"room_id" validate:"required,gt=0"`
	// AutoEnroll overrides the server default when set.
	AutoEnroll *bool `json:"auto_enroll"`
}

type seedRequest struct {
	CourseID int64 `json:"course_id" validate:"required,gt=0"`
	Limit    int   `json:"limit" validate:"gte=0,lte=1000"`
}

type createStrategyRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Version     string   `json:"version" validate:"omitempty,max=20"`
	Type        string   `json:"type" validate:"omitempty,oneof=round_robin alphabetical_grouping capacity_optimization department_grouping"`
	Rules       []string `json:"rules" validate:"omitempty,max=32,dive,required,max=64"`
}

type removedResult struct {
	Removed int64 `json:"removed"`
}

type seededResult struct {
	CourseID int64 `json:"course_id"`
	Enrolled int   `json:"enrolled"`
}

// API serves the JSON endpoints.
type API struct {
	engine     *allocation.Engine
	registry   *strategy.Registry
	tracker    progress.Tracker
	validate   *validator.Validate
	logger     *zap.Logger
	autoEnroll bool
}

func NewAPI(engine *allocation.Engine, registry *strategy.Registry, tracker progress.Tracker, autoEnroll bool, logger *zap.Logger) *API {
	return &API{
		engine:     engine,
		registry:   registry,
		tracker:    tracker,
		validate:   newValidator(),
		logger:     logger,
		autoEnroll: autoEnroll,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads and validates a JSON body. It writes the error response and
// returns false when the body is unusable.
func (a *API) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := readBodyJSON(r, maxBodyBytes, out); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return false
	}
	if err := a.validate.Struct(out); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func (a *API) RunAllocation(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !a.decode(w, r, &req) {
		return
	}
	opts := allocation.RunOptions{
		StrategyID:   req.StrategyID,
		CourseLabels: req.CourseLabels,
		RosterLimit:  req.RosterLimit,
	}
	if req.ExamDate != "" {
		// already validated
		opts.ExamDate, _ = time.Parse(time.DateOnly, req.ExamDate)
	}

	res, err := a.engine.RunFullAllocation(r.Context(), opts)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (a *API) GetProgress(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("run_id is required"))
		return
	}
	p, err := a.tracker.Get(r.Context(), runID)
	if errors.Is(err, progress.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, Fail("no progress for run "+runID))
		return
	}
	if err != nil {
		a.logger.Error("failed to read progress", zap.String("run_id", runID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail("progress unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(p))
}

func (a *API) PlaceCourse(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if !a.decode(w, r, &req) {
		return
	}
	autoEnroll := a.autoEnroll
	if req.AutoEnroll != nil {
		autoEnroll = *req.AutoEnroll
	}
	res, err := a.engine.PlaceCourse(r.Context(), allocation.PlaceRequest{
		CourseID:   req.CourseID,
		RoomID:     req.RoomID,
		AutoEnroll: autoEnroll,
	})
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(res))
}

func (a *API) RemovePlacement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	courseID, ok := parseID(q.Get("course_id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, Fail("course_id must be a positive integer"))
		return
	}
	roomID, ok := parseID(q.Get("room_id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, Fail("room_id must be a positive integer"))
		return
	}
	n, err := a.engine.RemovePlacement(r.Context(), courseID, roomID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(removedResult{Removed: n}))
}

func (a *API) SeedEnrollments(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if !a.decode(w, r, &req) {
		return
	}
	n, err := a.engine.SeedCourseRoster(r.Context(), req.CourseID, req.Limit)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(seededResult{CourseID: req.CourseID, Enrolled: n}))
}

func (a *API) ListAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := a.engine.ListAssignments(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if list == nil {
		list = []*models.Assignment{}
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

func (a *API) ClearAssignments(w http.ResponseWriter, r *http.Request) {
	n, err := a.engine.ClearAll(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(removedResult{Removed: n}))
}

func (a *API) ExportAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := a.engine.ListAssignments(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	// Rooms deactivated since the run still name their rows.
	rooms, err := a.engine.Rooms(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	names := make(map[int64]string, len(rooms))
	for _, room := range rooms {
		names[room.ID] = room.Name
	}

	body, err := report.AssignmentsXLSX(list, names)
	if err != nil {
		a.logger.Error("failed to render assignments export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("export failed"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="assignments-%s.xlsx"`, time.Now().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.engine.EligibleRooms(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if rooms == nil {
		rooms = []*models.Room{}
	}
	writeJSON(w, http.StatusOK, Ok(rooms))
}

func (a *API) ListStrategies(w http.ResponseWriter, r *http.Request) {
	list, err := a.registry.List(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if list == nil {
		list = []*models.Strategy{}
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

func (a *API) GetActiveStrategy(w http.ResponseWriter, r *http.Request) {
	s, err := a.registry.GetActive(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

func (a *API) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	var req createStrategyRequest
	if !a.decode(w, r, &req) {
		return
	}
	s, err := a.registry.Create(r.Context(), strategy.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		Type:        models.StrategyType(req.Type),
		Rules:       req.Rules,
	})
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(s))
}

func (a *API) ActivateStrategy(w http.ResponseWriter, r *http.Request, id int64) {
	if err := a.registry.Activate(r.Context(), id); err != nil {
		writeError(w, a.logger, err)
		return
	}
	s, err := a.registry.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

func (a *API) DeleteStrategy(w http.ResponseWriter, r *http.Request, id int64) {
	if err := a.registry.Delete(r.Context(), id); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(removedResult{Removed: 1}))
}

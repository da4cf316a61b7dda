package main

import (
	"net/http"
	"strings"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/middleware"
	"exam-allocation/internal/progress"
	"exam-allocation/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router wraps http.ServeMux; method checks live in the route closures.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler registers a plain http.Handler such as the metrics endpoint.
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// methods dispatches on the request method and answers 405 otherwise.
func methods(routes map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		h, ok := routes[req.Method]
		if !ok {
			writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
			return
		}
		h(w, req)
	}
}

func (r *Router) RegisterAllocationRoutes(a *API) {
	r.Handle("/api/allocations/run", methods(map[string]http.HandlerFunc{http.MethodPost: a.RunAllocation}))
	r.Handle("/api/allocations/progress", methods(map[string]http.HandlerFunc{http.MethodGet: a.GetProgress}))

	r.Handle("/api/placements", methods(map[string]http.HandlerFunc{
		http.MethodPost:   a.PlaceCourse,
		http.MethodDelete: a.RemovePlacement,
	}))
	r.Handle("/api/enrollments/seed", methods(map[string]http.HandlerFunc{http.MethodPost: a.SeedEnrollments}))

	r.Handle("/api/assignments", methods(map[string]http.HandlerFunc{
		http.MethodGet:    a.ListAssignments,
		http.MethodDelete: a.ClearAssignments,
	}))
	r.Handle("/api/assignments/export", methods(map[string]http.HandlerFunc{http.MethodGet: a.ExportAssignments}))

	r.Handle("/api/rooms", methods(map[string]http.HandlerFunc{http.MethodGet: a.ListRooms}))
}

func (r *Router) RegisterStrategyRoutes(a *API) {
	r.Handle("/api/strategies", methods(map[string]http.HandlerFunc{
		http.MethodGet:  a.ListStrategies,
		http.MethodPost: a.CreateStrategy,
	}))
	r.Handle("/api/strategies/active", methods(map[string]http.HandlerFunc{http.MethodGet: a.GetActiveStrategy}))

	// /api/strategies/{id} and /api/strategies/{id}/activate
	r.Handle("/api/strategies/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/strategies/")
		idPart, action, _ := strings.Cut(rest, "/")
		id, ok := parseID(idPart)
		if !ok {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}
		switch {
		case action == "activate" && req.Method == http.MethodPost:
			a.ActivateStrategy(w, req, id)
		case action == "" && req.Method == http.MethodDelete:
			a.DeleteStrategy(w, req, id)
		case action == "" || action == "activate":
			writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		default:
			writeJSON(w, http.StatusNotFound, Fail("not found"))
		}
	})
}

func (r *Router) RegisterDashboardRoutes(d *Dashboard) {
	r.HandleHandler("/", middleware.CSRF(http.HandlerFunc(d.Index)))
	r.HandleHandler("/allocate", middleware.CSRF(http.HandlerFunc(d.Allocate)))
	r.Handle("/api/allocations/progress/stream", methods(map[string]http.HandlerFunc{http.MethodGet: d.StreamProgress}))
}

func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	})
}

// newHandler assembles every route behind the recovery and access-log
// middleware.
func newHandler(engine *allocation.Engine, registry *strategy.Registry, tracker progress.Tracker, autoEnroll bool, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	router := NewRouter(logger)
	api := NewAPI(engine, registry, tracker, autoEnroll, logger)
	router.RegisterAllocationRoutes(api)
	router.RegisterStrategyRoutes(api)
	router.RegisterDashboardRoutes(NewDashboard(engine, registry, tracker, logger))
	router.RegisterHealthRoutes()
	router.HandleHandler("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return middleware.Recover(logger)(middleware.Logging(logger)(router))
}

// Package metrics exposes allocation outcomes to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records full-roster runs and single placements.
type Collector struct {
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runPlaced       prometheus.Histogram
	runUnplaced     prometheus.Histogram
	placements      *prometheus.CounterVec
	placementPlaced prometheus.Histogram
	remaining       prometheus.Counter
}

// NewPrometheus creates and registers the collectors.
//
// Parameters:
//   - reg: registerer to use (prometheus.DefaultRegisterer if nil)
//   - namespace: metrics namespace (defaults to "exam_allocation" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "exam_allocation"
	}

	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Full-roster allocation runs by strategy type and outcome.",
		}, []string{"strategy_type", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Duration of full-roster allocation runs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"strategy_type"}),
		runPlaced: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "placed_examinees",
			Help:      "Examinees placed per successful run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		runUnplaced: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "unplaced_examinees",
			Help:      "Examinees left unplaced per successful run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "total",
			Help:      "Single-placement requests by outcome (full, partial or an error kind).",
		}, []string{"outcome"}),
		placementPlaced: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "placed_examinees",
			Help:      "Examinees placed per successful single placement.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		remaining: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "remaining_examinees_total",
			Help:      "Enrolled examinees that did not fit into the target room.",
		}),
	}
	reg.MustRegister(c.runs, c.runDuration, c.runPlaced, c.runUnplaced, c.placements, c.placementPlaced, c.remaining)
	return c
}

func (c *Collector) RecordRun(strategyType, outcome string, placed, unplaced int, duration time.Duration) {
	c.runs.WithLabelValues(strategyType, outcome).Inc()
	c.runDuration.WithLabelValues(strategyType).Observe(duration.Seconds())
	if outcome != "success" {
		return
	}
	c.runPlaced.Observe(float64(placed))
	c.runUnplaced.Observe(float64(unplaced))
}

func (c *Collector) RecordPlacement(outcome string, placed, remaining int) {
	c.placements.WithLabelValues(outcome).Inc()
	if placed > 0 {
		c.placementPlaced.Observe(float64(placed))
	}
	c.remaining.Add(float64(remaining))
}

// Nop discards everything.
type Nop struct{}

func NewNop() *Nop { return &Nop{} }

func (*Nop) RecordRun(string, string, int, int, time.Duration) {}
func (*Nop) RecordPlacement(string, int, int)                  {}

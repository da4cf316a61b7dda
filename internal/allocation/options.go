package allocation

import (
	"context"
	"time"

	"exam-allocation/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRosterLimit bounds the system-wide roster of a full run.
const DefaultRosterLimit = 50

// DefaultAutoEnrollLimit bounds opt-in enrollment seeding.
const DefaultAutoEnrollLimit = 20

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithProgress(p ProgressReporter) Option {
	return func(e *Engine) {
		if p != nil {
			e.progress = p
		}
	}
}

func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithRunIDs(next func() string) Option {
	return func(e *Engine) {
		if next != nil {
			e.newRunID = next
		}
	}
}

// WithRosterLimit caps the roster of a full run; 0 disables the cap.
func WithRosterLimit(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.rosterLimit = n
		}
	}
}

// WithCourseLabels replaces the placeholder labels cycled across groups.
func WithCourseLabels(labels ...string) Option {
	return func(e *Engine) {
		if len(labels) > 0 {
			e.courseLabels = append([]string(nil), labels...)
		}
	}
}

func WithAutoEnrollLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.autoEnrollLimit = n
		}
	}
}

type nopProgress struct{}

func (nopProgress) Report(context.Context, models.Progress) {}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string, string, int, int, time.Duration) {}
func (nopMetrics) RecordPlacement(string, int, int)                  {}

func defaultRunID() string { return uuid.NewString() }

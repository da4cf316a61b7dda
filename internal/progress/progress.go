// Package progress stores and fans out advisory progress of allocation runs.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"exam-allocation/internal/models"

	"go.uber.org/zap"
)

// ErrNotFound is returned for an unknown or expired run id.
var ErrNotFound = errors.New("progress not found")

// Reporter receives progress updates. Implementations never fail the run.
type Reporter interface {
	Report(ctx context.Context, p models.Progress)
}

// Tracker is a Reporter that can be queried by run id.
type Tracker interface {
	Reporter
	Get(ctx context.Context, runID string) (*models.Progress, error)
}

// Multi fans one update out to every reporter.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, p models.Progress) {
	for _, r := range m {
		r.Report(ctx, p)
	}
}

// LogReporter writes each update as a structured log line.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (l *LogReporter) Report(_ context.Context, p models.Progress) {
	if p.Percent < 0 {
		l.logger.Warn("allocation progress", zap.String("run_id", p.RunID), zap.Int("percent", p.Percent), zap.String("message", p.Message))
		return
	}
	l.logger.Debug("allocation progress", zap.String("run_id", p.RunID), zap.Int("percent", p.Percent), zap.String("message", p.Message))
}

// MemoryTracker keeps the latest update per run in process memory. Entries
// older than ttl are dropped on the next write.
type MemoryTracker struct {
	mu   sync.Mutex
	runs map[string]models.Progress
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{runs: make(map[string]models.Progress), ttl: ttl, now: time.Now}
}

func (m *MemoryTracker) Report(_ context.Context, p models.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ttl > 0 {
		cutoff := m.now().Add(-m.ttl)
		for id, old := range m.runs {
			if old.UpdatedAt.Before(cutoff) {
				delete(m.runs, id)
			}
		}
	}
	m.runs[p.RunID] = p
}

func (m *MemoryTracker) Get(_ context.Context, runID string) (*models.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

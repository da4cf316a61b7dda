package allocation

import (
	"context"
	"time"

	"exam-allocation/internal/models"
)

// RosterSource resolves examinees.
type RosterSource interface {
	// FetchEligibleRoster returns system-wide eligible examinees, at most limit
	// when limit > 0.
	FetchEligibleRoster(ctx context.Context, limit int) ([]*models.Examinee, error)
	// FetchCourseRoster returns examinees enrolled in the course with status "enrolled".
	FetchCourseRoster(ctx context.Context, courseID int64) ([]*models.Examinee, error)
}

// RoomSource resolves rooms. GetRoom returns apperrors.ErrRecordNotFound for
// an unknown id.
type RoomSource interface {
	FetchRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error)
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
}

// CourseSource returns apperrors.ErrRecordNotFound for an unknown id.
type CourseSource interface {
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
}

// Ledger is the Assignment Ledger sink.
type Ledger interface {
	ClearAll(ctx context.Context) (int64, error)
	BulkInsert(ctx context.Context, assignments []*models.Assignment) error
	DeleteByRoomAndCourse(ctx context.Context, roomID int64, courseLabel string) (int64, error)
	CountByRoom(ctx context.Context, roomID int64) (int64, error)
	ListAll(ctx context.Context) ([]*models.Assignment, error)
}

// LedgerTransactor runs fn with exclusive access to the ledger. Either every
// write made through the Ledger handed to fn is kept, or none is.
type LedgerTransactor interface {
	InLedgerTx(ctx context.Context, fn func(Ledger) error) error
}

// EnrollmentSeeder enrolls up to limit eligible examinees into a course.
type EnrollmentSeeder interface {
	SeedEnrollments(ctx context.Context, courseID int64, limit int) (int, error)
}

// DataStore is everything the engine needs from persistence.
type DataStore interface {
	RosterSource
	RoomSource
	CourseSource
	Ledger
	LedgerTransactor
	EnrollmentSeeder
}

// StrategyProvider is the read side of the strategy registry.
type StrategyProvider interface {
	GetActive(ctx context.Context) (*models.Strategy, error)
	GetByID(ctx context.Context, id int64) (*models.Strategy, error)
}

// ProgressReporter receives advisory progress for a full-roster run.
type ProgressReporter interface {
	Report(ctx context.Context, p models.Progress)
}

// MetricsRecorder observes workflow outcomes.
type MetricsRecorder interface {
	RecordRun(strategyType string, outcome string, placed, unplaced int, duration time.Duration)
	RecordPlacement(outcome string, placed, remaining int)
}

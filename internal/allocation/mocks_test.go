package allocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/models"
)

type MockDataStore struct {
	FetchEligibleRosterFunc   func(ctx context.Context, limit int) ([]*models.Examinee, error)
	FetchCourseRosterFunc     func(ctx context.Context, courseID int64) ([]*models.Examinee, error)
	FetchRoomsFunc            func(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error)
	GetRoomFunc               func(ctx context.Context, id int64) (*models.Room, error)
	GetCourseFunc             func(ctx context.Context, id int64) (*models.Course, error)
	ClearAllFunc              func(ctx context.Context) (int64, error)
	BulkInsertFunc            func(ctx context.Context, assignments []*models.Assignment) error
	DeleteByRoomAndCourseFunc func(ctx context.Context, roomID int64, courseLabel string) (int64, error)
	CountByRoomFunc           func(ctx context.Context, roomID int64) (int64, error)
	ListAllFunc               func(ctx context.Context) ([]*models.Assignment, error)
	InLedgerTxFunc            func(ctx context.Context, fn func(Ledger) error) error
	SeedEnrollmentsFunc       func(ctx context.Context, courseID int64, limit int) (int, error)
}

func (m *MockDataStore) FetchEligibleRoster(ctx context.Context, limit int) ([]*models.Examinee, error) {
	return m.FetchEligibleRosterFunc(ctx, limit)
}

func (m *MockDataStore) FetchCourseRoster(ctx context.Context, courseID int64) ([]*models.Examinee, error) {
	return m.FetchCourseRosterFunc(ctx, courseID)
}

func (m *MockDataStore) FetchRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error) {
	return m.FetchRoomsFunc(ctx, filter)
}

func (m *MockDataStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return m.GetRoomFunc(ctx, id)
}

func (m *MockDataStore) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	return m.GetCourseFunc(ctx, id)
}

func (m *MockDataStore) ClearAll(ctx context.Context) (int64, error) {
	return m.ClearAllFunc(ctx)
}

func (m *MockDataStore) BulkInsert(ctx context.Context, assignments []*models.Assignment) error {
	return m.BulkInsertFunc(ctx, assignments)
}

func (m *MockDataStore) DeleteByRoomAndCourse(ctx context.Context, roomID int64, courseLabel string) (int64, error) {
	return m.DeleteByRoomAndCourseFunc(ctx, roomID, courseLabel)
}

func (m *MockDataStore) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	if m.CountByRoomFunc == nil {
		return 0, nil
	}
	return m.CountByRoomFunc(ctx, roomID)
}

func (m *MockDataStore) ListAll(ctx context.Context) ([]*models.Assignment, error) {
	return m.ListAllFunc(ctx)
}

// InLedgerTx defaults to running fn against the mock itself.
func (m *MockDataStore) InLedgerTx(ctx context.Context, fn func(Ledger) error) error {
	if m.InLedgerTxFunc != nil {
		return m.InLedgerTxFunc(ctx, fn)
	}
	return fn(m)
}

func (m *MockDataStore) SeedEnrollments(ctx context.Context, courseID int64, limit int) (int, error) {
	return m.SeedEnrollmentsFunc(ctx, courseID, limit)
}

type MockStrategyProvider struct {
	GetActiveFunc func(ctx context.Context) (*models.Strategy, error)
	GetByIDFunc   func(ctx context.Context, id int64) (*models.Strategy, error)
}

func (m *MockStrategyProvider) GetActive(ctx context.Context) (*models.Strategy, error) {
	return m.GetActiveFunc(ctx)
}

func (m *MockStrategyProvider) GetByID(ctx context.Context, id int64) (*models.Strategy, error) {
	return m.GetByIDFunc(ctx, id)
}

type recordingProgress struct {
	mu      sync.Mutex
	reports []models.Progress
}

func (r *recordingProgress) Report(_ context.Context, p models.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, p)
}

func (r *recordingProgress) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.reports))
	for i, p := range r.reports {
		out[i] = p.Percent
	}
	return out
}

type recordingMetrics struct {
	runs       []string
	placements []string
}

func (r *recordingMetrics) RecordRun(strategyType, outcome string, placed, unplaced int, _ time.Duration) {
	r.runs = append(r.runs, strategyType+":"+outcome)
}

func (r *recordingMetrics) RecordPlacement(outcome string, placed, remaining int) {
	r.placements = append(r.placements, outcome)
}

func activeStrategy(typ models.StrategyType) *MockStrategyProvider {
	s := &models.Strategy{ID: 1, Name: "test " + string(typ), Type: typ, Active: true}
	return &MockStrategyProvider{
		GetActiveFunc: func(context.Context) (*models.Strategy, error) { return s, nil },
		GetByIDFunc: func(_ context.Context, id int64) (*models.Strategy, error) {
			if id == s.ID {
				return s, nil
			}
			return nil, apperrors.For(apperrors.KindStrategyNotFound, "strategy", id, "")
		},
	}
}

func intPtr(v int) *int { return &v }

func room(id int64, capacity int) *models.Room {
	return &models.Room{ID: id, Name: "Room", Capacity: capacity, Active: true, Bookable: true}
}

func examinees(names ...string) []*models.Examinee {
	out := make([]*models.Examinee, len(names))
	for i, n := range names {
		out[i] = &models.Examinee{ID: n, Name: n, Eligible: true}
	}
	return out
}

// numbered builds n examinees with distinct, zero-padded names.
func numbered(n int) []*models.Examinee {
	out := make([]*models.Examinee, n)
	for i := range out {
		id := fmt.Sprintf("%04d", i)
		out[i] = &models.Examinee{ID: id, Name: "Examinee " + id, Eligible: true}
	}
	return out
}

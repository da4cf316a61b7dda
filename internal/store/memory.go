package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/models"
	"exam-allocation/internal/strategy"
)

var (
	_ allocation.DataStore = (*MemoryStore)(nil)
	_ strategy.Store       = (*MemoryStore)(nil)
)

// MemoryStore keeps everything in process memory. It backs the API when no
// database is configured and doubles as a fake in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	rooms       map[int64]*models.Room
	courses     map[int64]*models.Course
	examinees   []*models.Examinee // insertion order stands in for created_at
	examineeIdx map[string]int
	enrollments map[int64][]*models.Enrollment
	strategies  map[int64]*models.Strategy
	assignments []*models.Assignment

	nextRoomID       int64
	nextCourseID     int64
	nextStrategyID   int64
	nextAssignmentID int64

	// ledgerMu serializes ledger writers for the whole of a callback.
	ledgerMu sync.Mutex
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:       make(map[int64]*models.Room),
		courses:     make(map[int64]*models.Course),
		examineeIdx: make(map[string]int),
		enrollments: make(map[int64][]*models.Enrollment),
		strategies:  make(map[int64]*models.Strategy),
		now:         time.Now,
	}
}

// --- fixtures ---

// AddRoom stores a copy of r. A zero ID is replaced by the next free one.
func (s *MemoryStore) AddRoom(r models.Room) *models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.nextRoomID++
		r.ID = s.nextRoomID
	} else if r.ID > s.nextRoomID {
		s.nextRoomID = r.ID
	}
	if r.ExamCapacity != nil {
		v := *r.ExamCapacity
		r.ExamCapacity = &v
	}
	s.rooms[r.ID] = &r
	return cloneRoom(&r)
}

func (s *MemoryStore) AddCourse(c models.Course) *models.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextCourseID++
		c.ID = s.nextCourseID
	} else if c.ID > s.nextCourseID {
		s.nextCourseID = c.ID
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.courses[c.ID] = &c
	out := c
	return &out
}

// AddExaminee stores e, replacing an examinee with the same ID in place.
func (s *MemoryStore) AddExaminee(e models.Examinee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.examineeIdx[e.ID]; ok {
		s.examinees[i] = &e
		return
	}
	s.examineeIdx[e.ID] = len(s.examinees)
	s.examinees = append(s.examinees, &e)
}

// Enroll adds an enrolled row. It is a no-op when the pair already exists.
func (s *MemoryStore) Enroll(courseID int64, examineeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[courseID]; !ok {
		return fmt.Errorf("course %d: %w", courseID, apperrors.ErrRecordNotFound)
	}
	if _, ok := s.examineeIdx[examineeID]; !ok {
		return fmt.Errorf("examinee %s: %w", examineeID, apperrors.ErrRecordNotFound)
	}
	s.enrollLocked(courseID, examineeID)
	return nil
}

func (s *MemoryStore) enrollLocked(courseID int64, examineeID string) bool {
	for _, en := range s.enrollments[courseID] {
		if en.ExamineeID == examineeID {
			return false
		}
	}
	s.enrollments[courseID] = append(s.enrollments[courseID], &models.Enrollment{
		CourseID:   courseID,
		ExamineeID: examineeID,
		Status:     models.EnrollmentStatusEnrolled,
		EnrolledAt: s.now(),
	})
	return true
}

// --- rooms, courses, rosters ---

func (s *MemoryStore) FetchRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Room
	for _, r := range s.rooms {
		if filter.ActiveOnly && !r.Active {
			continue
		}
		if filter.BookableOnly && !r.Bookable {
			continue
		}
		out = append(out, cloneRoom(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound
	}
	return cloneRoom(r), nil
}

func (s *MemoryStore) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) FetchEligibleRoster(ctx context.Context, limit int) ([]*models.Examinee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Examinee
	for _, e := range s.examinees {
		if limit > 0 && len(out) == limit {
			break
		}
		if e.Eligible {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryStore) FetchCourseRoster(ctx context.Context, courseID int64) ([]*models.Examinee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Examinee
	for _, en := range s.enrollments[courseID] {
		if en.Status != models.EnrollmentStatusEnrolled {
			continue
		}
		if i, ok := s.examineeIdx[en.ExamineeID]; ok {
			c := *s.examinees[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryStore) SeedEnrollments(ctx context.Context, courseID int64, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[courseID]; !ok {
		return 0, apperrors.ErrRecordNotFound
	}
	n := 0
	for _, e := range s.examinees {
		if n == limit {
			break
		}
		if e.Eligible && s.enrollLocked(courseID, e.ID) {
			n++
		}
	}
	return n, nil
}

// --- ledger ---

// InLedgerTx hands fn a private copy of the ledger and publishes it only when
// fn succeeds.
func (s *MemoryStore) InLedgerTx(ctx context.Context, fn func(allocation.Ledger) error) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	tx := &memLedgerTx{
		rows:   cloneAssignments(s.assignments),
		nextID: s.nextAssignmentID,
		now:    s.now,
	}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.assignments = tx.rows
	s.nextAssignmentID = tx.nextID
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) (int64, error) {
	var n int64
	err := s.InLedgerTx(ctx, func(l allocation.Ledger) error {
		var err error
		n, err = l.ClearAll(ctx)
		return err
	})
	return n, err
}

func (s *MemoryStore) BulkInsert(ctx context.Context, assignments []*models.Assignment) error {
	return s.InLedgerTx(ctx, func(l allocation.Ledger) error {
		return l.BulkInsert(ctx, assignments)
	})
}

func (s *MemoryStore) DeleteByRoomAndCourse(ctx context.Context, roomID int64, courseLabel string) (int64, error) {
	var n int64
	err := s.InLedgerTx(ctx, func(l allocation.Ledger) error {
		var err error
		n, err = l.DeleteByRoomAndCourse(ctx, roomID, courseLabel)
		return err
	})
	return n, err
}

func (s *MemoryStore) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countByRoom(s.assignments, roomID), nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]*models.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAssignments(s.assignments), nil
}

type memLedgerTx struct {
	rows   []*models.Assignment
	nextID int64
	now    func() time.Time
}

func (t *memLedgerTx) ClearAll(ctx context.Context) (int64, error) {
	n := int64(len(t.rows))
	t.rows = nil
	return n, ctx.Err()
}

func (t *memLedgerTx) BulkInsert(ctx context.Context, assignments []*models.Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, a := range assignments {
		t.nextID++
		a.ID = t.nextID
		if a.CreatedAt.IsZero() {
			a.CreatedAt = t.now()
		}
		row := *a
		t.rows = append(t.rows, &row)
	}
	return nil
}

func (t *memLedgerTx) DeleteByRoomAndCourse(ctx context.Context, roomID int64, courseLabel string) (int64, error) {
	kept := t.rows[:0:0]
	var n int64
	for _, a := range t.rows {
		if a.RoomID == roomID && a.CourseLabel == courseLabel {
			n++
			continue
		}
		kept = append(kept, a)
	}
	t.rows = kept
	return n, ctx.Err()
}

func (t *memLedgerTx) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	return countByRoom(t.rows, roomID), ctx.Err()
}

func (t *memLedgerTx) ListAll(ctx context.Context) ([]*models.Assignment, error) {
	return cloneAssignments(t.rows), ctx.Err()
}

// --- strategies ---

func (s *MemoryStore) ListStrategies(ctx context.Context) ([]*models.Strategy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetStrategy(ctx context.Context, id int64) (*models.Strategy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.strategies[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) GetStrategyByName(ctx context.Context, name string) (*models.Strategy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st := s.strategyByNameLocked(name); st != nil {
		return st.Clone(), nil
	}
	return nil, apperrors.ErrRecordNotFound
}

func (s *MemoryStore) GetActiveStrategy(ctx context.Context) (*models.Strategy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st := s.activeStrategyLocked(); st != nil {
		return st.Clone(), nil
	}
	return nil, apperrors.ErrRecordNotFound
}

func (s *MemoryStore) CreateStrategy(ctx context.Context, st *models.Strategy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strategyByNameLocked(st.Name) != nil {
		return fmt.Errorf("%w: strategy name %q", apperrors.ErrDuplicateRecord, st.Name)
	}
	if st.Active && s.activeStrategyLocked() != nil {
		return fmt.Errorf("%w: active strategy", apperrors.ErrDuplicateRecord)
	}
	s.insertStrategyLocked(st)
	return nil
}

func (s *MemoryStore) DeleteStrategy(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strategies[id]; !ok {
		return apperrors.ErrRecordNotFound
	}
	delete(s.strategies, id)
	return nil
}

// ActivateStrategy flips every flag under one write lock.
func (s *MemoryStore) ActivateStrategy(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.strategies[id]
	if !ok {
		return apperrors.ErrRecordNotFound
	}
	now := s.now()
	for _, st := range s.strategies {
		if st.Active && st.ID != id {
			st.Active = false
			st.UpdatedAt = now
		}
	}
	target.Active = true
	target.UpdatedAt = now
	return nil
}

func (s *MemoryStore) SeedStrategies(ctx context.Context, strategies []*models.Strategy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range strategies {
		if s.strategyByNameLocked(st.Name) != nil {
			continue
		}
		row := st.Clone()
		if row.Active && s.activeStrategyLocked() != nil {
			row.Active = false
		}
		s.insertStrategyLocked(row)
	}
	return nil
}

func (s *MemoryStore) insertStrategyLocked(st *models.Strategy) {
	s.nextStrategyID++
	now := s.now()
	st.ID = s.nextStrategyID
	st.CreatedAt = now
	st.UpdatedAt = now
	s.strategies[st.ID] = st.Clone()
}

func (s *MemoryStore) strategyByNameLocked(name string) *models.Strategy {
	for _, st := range s.strategies {
		if st.Name == name {
			return st
		}
	}
	return nil
}

func (s *MemoryStore) activeStrategyLocked() *models.Strategy {
	for _, st := range s.strategies {
		if st.Active {
			return st
		}
	}
	return nil
}

func cloneRoom(r *models.Room) *models.Room {
	c := *r
	if r.ExamCapacity != nil {
		v := *r.ExamCapacity
		c.ExamCapacity = &v
	}
	return &c
}

func cloneAssignments(rows []*models.Assignment) []*models.Assignment {
	out := make([]*models.Assignment, len(rows))
	for i, a := range rows {
		c := *a
		out[i] = &c
	}
	return out
}

func countByRoom(rows []*models.Assignment, roomID int64) int64 {
	var n int64
	for _, a := range rows {
		if a.RoomID == roomID {
			n++
		}
	}
	return n
}

package db

import (
	"context"
	"database/sql"
	"time"

	"exam-allocation/internal/models"

	"github.com/lib/pq"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries interface mimicking sqlc generated code
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// --- rooms ---

const listRooms = `SELECT id, name, building, capacity, exam_capacity, is_active, is_bookable
FROM rooms
WHERE ($1 = FALSE OR is_active) AND ($2 = FALSE OR is_bookable)
ORDER BY id`

func (q *Queries) ListRooms(ctx context.Context, activeOnly, bookableOnly bool) ([]*models.Room, error) {
	rows, err := q.db.QueryContext(ctx, listRooms, activeOnly, bookableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getRoom = `SELECT id, name, building, capacity, exam_capacity, is_active, is_bookable
FROM rooms WHERE id = $1`

func (q *Queries) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return scanRoom(q.db.QueryRowContext(ctx, getRoom, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (*models.Room, error) {
	var r models.Room
	var examCap sql.NullInt32
	if err := s.Scan(&r.ID, &r.Name, &r.Building, &r.Capacity, &examCap, &r.Active, &r.Bookable); err != nil {
		return nil, err
	}
	if examCap.Valid {
		v := int(examCap.Int32)
		r.ExamCapacity = &v
	}
	return &r, nil
}

// --- courses and rosters ---

const getCourse = `SELECT id, code, name, department, created_at FROM courses WHERE id = $1`

func (q *Queries) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	var c models.Course
	err := q.db.QueryRowContext(ctx, getCourse, id).Scan(&c.ID, &c.Code, &c.Name, &c.Department, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// A zero limit means no limit: LIMIT NULL.
const listEligibleExaminees = `SELECT id, name, department, is_eligible
FROM examinees
WHERE is_eligible
ORDER BY created_at, id
LIMIT NULLIF($1, 0)`

func (q *Queries) ListEligibleExaminees(ctx context.Context, limit int) ([]*models.Examinee, error) {
	return q.listExaminees(ctx, listEligibleExaminees, limit)
}

const listCourseRoster = `SELECT e.id, e.name, e.department, e.is_eligible
FROM enrollments en
JOIN examinees e ON e.id = en.examinee_id
WHERE en.course_id = $1 AND en.status = 'enrolled'
ORDER BY en.enrolled_at, e.id`

func (q *Queries) ListCourseRoster(ctx context.Context, courseID int64) ([]*models.Examinee, error) {
	return q.listExaminees(ctx, listCourseRoster, courseID)
}

func (q *Queries) listExaminees(ctx context.Context, query string, arg any) ([]*models.Examinee, error) {
	rows, err := q.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*models.Examinee
	for rows.Next() {
		var e models.Examinee
		if err := rows.Scan(&e.ID, &e.Name, &e.Department, &e.Eligible); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

const seedEnrollments = `INSERT INTO enrollments (course_id, examinee_id, status)
SELECT $1, e.id, 'enrolled'
FROM examinees e
WHERE e.is_eligible
  AND NOT EXISTS (SELECT 1 FROM enrollments en WHERE en.course_id = $1 AND en.examinee_id = e.id)
ORDER BY e.created_at, e.id
LIMIT $2`

func (q *Queries) SeedEnrollments(ctx context.Context, courseID int64, limit int) (int64, error) {
	res, err := q.db.ExecContext(ctx, seedEnrollments, courseID, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- assignments ---

// LedgerLockKey keys the transaction-scoped advisory lock on the ledger.
const LedgerLockKey int64 = 0x6578616d

func (q *Queries) LockLedger(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, LedgerLockKey)
	return err
}

func (q *Queries) DeleteAllAssignments(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM assignments`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertAssignment = `INSERT INTO assignments (examinee_id, room_id, course_label, exam_date, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

func (q *Queries) InsertAssignment(ctx context.Context, a *models.Assignment) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, insertAssignment, a.ExamineeID, a.RoomID, a.CourseLabel, a.ExamDate, a.CreatedAt).Scan(&id)
	return id, err
}

const deleteAssignmentsByRoomAndCourse = `DELETE FROM assignments WHERE room_id = $1 AND course_label = $2`

func (q *Queries) DeleteAssignmentsByRoomAndCourse(ctx context.Context, roomID int64, courseLabel string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAssignmentsByRoomAndCourse, roomID, courseLabel)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) CountAssignmentsByRoom(ctx context.Context, roomID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE room_id = $1`, roomID).Scan(&n)
	return n, err
}

const listAssignments = `SELECT id, examinee_id, room_id, course_label, exam_date, created_at
FROM assignments
ORDER BY id`

func (q *Queries) ListAssignments(ctx context.Context) ([]*models.Assignment, error) {
	rows, err := q.db.QueryContext(ctx, listAssignments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.ExamineeID, &a.RoomID, &a.CourseLabel, &a.ExamDate, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

// --- strategies ---

const strategyColumns = `id, name, description, version, type, rules, is_active, created_at, updated_at`

func scanStrategy(s scanner) (*models.Strategy, error) {
	var st models.Strategy
	var typ string
	var rules []string
	if err := s.Scan(&st.ID, &st.Name, &st.Description, &st.Version, &typ, pq.Array(&rules), &st.Active, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Type = models.StrategyType(typ)
	st.Rules = rules
	return &st, nil
}

func (q *Queries) ListStrategies(ctx context.Context) ([]*models.Strategy, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+strategyColumns+` FROM strategies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*models.Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (q *Queries) GetStrategy(ctx context.Context, id int64) (*models.Strategy, error) {
	return scanStrategy(q.db.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE id = $1`, id))
}

// GetStrategyForUpdate row-locks the strategy for the rest of the transaction.
func (q *Queries) GetStrategyForUpdate(ctx context.Context, id int64) (*models.Strategy, error) {
	return scanStrategy(q.db.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetStrategyByName(ctx context.Context, name string) (*models.Strategy, error) {
	return scanStrategy(q.db.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE name = $1`, name))
}

func (q *Queries) GetActiveStrategy(ctx context.Context) (*models.Strategy, error) {
	return scanStrategy(q.db.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE is_active LIMIT 1`))
}

const insertStrategy = `INSERT INTO strategies (name, description, version, type, rules, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at`

func (q *Queries) InsertStrategy(ctx context.Context, s *models.Strategy) error {
	return q.db.QueryRowContext(ctx, insertStrategy, s.Name, s.Description, s.Version, string(s.Type), pq.Array(s.Rules), s.Active).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

const insertStrategyIfAbsent = `INSERT INTO strategies (name, description, version, type, rules, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO NOTHING`

func (q *Queries) InsertStrategyIfAbsent(ctx context.Context, s *models.Strategy) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertStrategyIfAbsent, s.Name, s.Description, s.Version, string(s.Type), pq.Array(s.Rules), s.Active)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteStrategy(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM strategies WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeactivateStrategies(ctx context.Context, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE strategies SET is_active = FALSE, updated_at = $1 WHERE is_active`, now)
	return err
}

func (q *Queries) ActivateStrategy(ctx context.Context, id int64, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE strategies SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

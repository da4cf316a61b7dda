package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/db"
	"exam-allocation/internal/models"
	"exam-allocation/internal/strategy"

	"github.com/lib/pq"
	"go.uber.org/multierr"
)

var (
	_ allocation.DataStore = (*PostgresStore)(nil)
	_ strategy.Store       = (*PostgresStore)(nil)
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	q   *db.Queries
	db  *sql.DB // raw handle for transactions
	now func() time.Time
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{q: db.New(conn), db: conn, now: time.Now}
}

// mapErr translates driver errors into the store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrRecordNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateRecord, pqErr.Constraint)
	}
	return err
}

// withTx runs fn in a transaction and rolls back when fn or the commit fails.
func (s *PostgresStore) withTx(ctx context.Context, fn func(q *db.Queries) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(s.q.WithTx(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- rooms, courses, rosters ---

func (s *PostgresStore) FetchRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error) {
	rooms, err := s.q.ListRooms(ctx, filter.ActiveOnly, filter.BookableOnly)
	return rooms, mapErr(err)
}

func (s *PostgresStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := s.q.GetRoom(ctx, id)
	return room, mapErr(err)
}

func (s *PostgresStore) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	course, err := s.q.GetCourse(ctx, id)
	return course, mapErr(err)
}

func (s *PostgresStore) FetchEligibleRoster(ctx context.Context, limit int) ([]*models.Examinee, error) {
	roster, err := s.q.ListEligibleExaminees(ctx, max(limit, 0))
	return roster, mapErr(err)
}

func (s *PostgresStore) FetchCourseRoster(ctx context.Context, courseID int64) ([]*models.Examinee, error) {
	roster, err := s.q.ListCourseRoster(ctx, courseID)
	return roster, mapErr(err)
}

func (s *PostgresStore) SeedEnrollments(ctx context.Context, courseID int64, limit int) (int, error) {
	n, err := s.q.SeedEnrollments(ctx, courseID, limit)
	return int(n), mapErr(err)
}

// --- ledger ---

// InLedgerTx serializes ledger writers on a transaction-scoped advisory lock.
// Statements run after the lock is granted, so each one sees every write
// committed by the previous holder.
func (s *PostgresStore) InLedgerTx(ctx context.Context, fn func(allocation.Ledger) error) error {
	return s.withTx(ctx, func(q *db.Queries) error {
		if err := q.LockLedger(ctx); err != nil {
			return fmt.Errorf("lock ledger: %w", err)
		}
		return fn(&pgLedger{q: q})
	})
}

func (s *PostgresStore) ClearAll(ctx context.Context) (int64, error) {
	return (&pgLedger{q: s.q}).ClearAll(ctx)
}

// BulkInsert is all-or-nothing: it opens its own ledger transaction.
func (s *PostgresStore) BulkInsert(ctx context.Context, assignments []*models.Assignment) error {
	return s.InLedgerTx(ctx, func(l allocation.Ledger) error {
		return l.BulkInsert(ctx, assignments)
	})
}

func (s *PostgresStore) DeleteByRoomAndCourse(ctx context.Context, roomID int64, courseLabel string) (int64, error) {
	return (&pgLedger{q: s.q}).DeleteByRoomAndCourse(ctx, roomID, courseLabel)
}

func (s *PostgresStore) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	return (&pgLedger{q: s.q}).CountByRoom(ctx, roomID)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Assignment, error) {
	return (&pgLedger{q: s.q}).ListAll(ctx)
}

// pgLedger is a Ledger bound to one connection or transaction.
type pgLedger struct {
	q *db.Queries
}

func (l *pgLedger) ClearAll(ctx context.Context) (int64, error) {
	n, err := l.q.DeleteAllAssignments(ctx)
	return n, mapErr(err)
}

func (l *pgLedger) BulkInsert(ctx context.Context, assignments []*models.Assignment) error {
	for _, a := range assignments {
		id, err := l.q.InsertAssignment(ctx, a)
		if err != nil {
			return fmt.Errorf("insert assignment for examinee %s: %w", a.ExamineeID, mapErr(err))
		}
		a.ID = id
	}
	return nil
}

func (l *pgLedger) DeleteByRoomAndCourse(ctx context.Context, roomID int64, courseLabel string) (int64, error) {
	n, err := l.q.DeleteAssignmentsByRoomAndCourse(ctx, roomID, courseLabel)
	return n, mapErr(err)
}

func (l *pgLedger) CountByRoom(ctx context.Context, roomID int64) (int64, error) {
	n, err := l.q.CountAssignmentsByRoom(ctx, roomID)
	return n, mapErr(err)
}

func (l *pgLedger) ListAll(ctx context.Context) ([]*models.Assignment, error) {
	list, err := l.q.ListAssignments(ctx)
	return list, mapErr(err)
}

// --- strategies ---

func (s *PostgresStore) ListStrategies(ctx context.Context) ([]*models.Strategy, error) {
	list, err := s.q.ListStrategies(ctx)
	return list, mapErr(err)
}

func (s *PostgresStore) GetStrategy(ctx context.Context, id int64) (*models.Strategy, error) {
	st, err := s.q.GetStrategy(ctx, id)
	return st, mapErr(err)
}

func (s *PostgresStore) GetStrategyByName(ctx context.Context, name string) (*models.Strategy, error) {
	st, err := s.q.GetStrategyByName(ctx, name)
	return st, mapErr(err)
}

func (s *PostgresStore) GetActiveStrategy(ctx context.Context) (*models.Strategy, error) {
	st, err := s.q.GetActiveStrategy(ctx)
	return st, mapErr(err)
}

func (s *PostgresStore) CreateStrategy(ctx context.Context, st *models.Strategy) error {
	return mapErr(s.q.InsertStrategy(ctx, st))
}

func (s *PostgresStore) DeleteStrategy(ctx context.Context, id int64) error {
	n, err := s.q.DeleteStrategy(ctx, id)
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// ActivateStrategy swaps the active flag inside one transaction. The
// deactivation runs as its own statement so the single-active index never
// sees two active rows.
func (s *PostgresStore) ActivateStrategy(ctx context.Context, id int64) error {
	now := s.now()
	return s.withTx(ctx, func(q *db.Queries) error {
		if _, err := q.GetStrategyForUpdate(ctx, id); err != nil {
			return mapErr(err)
		}
		if err := q.DeactivateStrategies(ctx, now); err != nil {
			return mapErr(err)
		}
		n, err := q.ActivateStrategy(ctx, id, now)
		if err != nil {
			return mapErr(err)
		}
		if n == 0 {
			return apperrors.ErrRecordNotFound
		}
		return nil
	})
}

// SeedStrategies inserts missing strategies by name. A strategy marked active
// is inserted inactive when another strategy already holds the flag.
func (s *PostgresStore) SeedStrategies(ctx context.Context, strategies []*models.Strategy) error {
	return s.withTx(ctx, func(q *db.Queries) error {
		_, err := q.GetActiveStrategy(ctx)
		hasActive := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return mapErr(err)
		}
		for _, st := range strategies {
			row := st.Clone()
			if hasActive {
				row.Active = false
			}
			n, err := q.InsertStrategyIfAbsent(ctx, row)
			if err != nil {
				return fmt.Errorf("seed strategy %q: %w", st.Name, mapErr(err))
			}
			if n > 0 && row.Active {
				hasActive = true
			}
		}
		return nil
	})
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/db"
	"exam-allocation/internal/models"
	"exam-allocation/internal/strategy"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	return conn, mock, NewPostgresStore(conn)
}

var strategyCols = []string{"id", "name", "description", "version", "type", "rules", "is_active", "created_at", "updated_at"}

func TestPostgresStore_GetRoom(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	mock.ExpectQuery(`FROM rooms WHERE id`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "building", "capacity", "exam_capacity", "is_active", "is_bookable"}).
			AddRow(int64(1), "Main Hall", "North", 120, 100, true, true))
	mock.ExpectQuery(`FROM rooms WHERE id`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "building", "capacity", "exam_capacity", "is_active", "is_bookable"}).
			AddRow(int64(2), "Room 101", "North", 40, nil, true, false))
	mock.ExpectQuery(`FROM rooms WHERE id`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	r, err := s.GetRoom(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, r.EffectiveCapacity())

	r, err = s.GetRoom(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, r.ExamCapacity)
	assert.Equal(t, 40, r.EffectiveCapacity())
	assert.False(t, r.Bookable)

	_, err = s.GetRoom(context.Background(), 9)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchEligibleRoster(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	mock.ExpectQuery(`FROM examinees`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department", "is_eligible"}).
			AddRow("E1", "Zed", "Physics", true).
			AddRow("E2", "Amy", "", true))

	roster, err := s.FetchEligibleRoster(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Zed", roster[0].Name)
	assert.Equal(t, "Physics", roster[0].Department)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InLedgerTx_Commit(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs(db.LedgerLockKey).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM assignments`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(`INSERT INTO assignments`).
		WithArgs("E1", int64(1), "CS301", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectCommit()

	ctx := context.Background()
	a := &models.Assignment{ExamineeID: "E1", RoomID: 1, CourseLabel: "CS301", ExamDate: time.Now(), CreatedAt: time.Now()}
	var cleared int64
	err := s.InLedgerTx(ctx, func(l allocation.Ledger) error {
		var err error
		if cleared, err = l.ClearAll(ctx); err != nil {
			return err
		}
		return l.BulkInsert(ctx, []*models.Assignment{a})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), cleared)
	assert.Equal(t, int64(10), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InLedgerTx_RollbackOnFailure(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	boom := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM assignments`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(`INSERT INTO assignments`).WillReturnError(boom)
	mock.ExpectRollback()

	ctx := context.Background()
	err := s.InLedgerTx(ctx, func(l allocation.Ledger) error {
		if _, err := l.ClearAll(ctx); err != nil {
			return err
		}
		return l.BulkInsert(ctx, []*models.Assignment{{ExamineeID: "E1", RoomID: 1, CourseLabel: "CS301"}})
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InLedgerTx_RollbackErrorIsCombined(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	boom := errors.New("callback failed")
	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	err := s.InLedgerTx(context.Background(), func(allocation.Ledger) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateStrategy_Duplicate(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	mock.ExpectQuery(`INSERT INTO strategies`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "strategies_name_key"})

	err := s.CreateStrategy(context.Background(), &models.Strategy{Name: "Dup", Type: models.StrategyRoundRobin})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActivateStrategy(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(strategyCols).
			AddRow(int64(2), "Round Robin Distribution", "", "1.0", "round_robin", "{balance_load}", false, now, now))
	mock.ExpectExec(`UPDATE strategies SET is_active = FALSE`).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE strategies SET is_active = TRUE`).WithArgs(int64(2), now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.ActivateStrategy(context.Background(), 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActivateStrategy_NotFound(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(7)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.ActivateStrategy(context.Background(), 7)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteStrategy_NotFound(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	mock.ExpectExec(`DELETE FROM strategies`).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteStrategy(context.Background(), 5), apperrors.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetActiveStrategy_ScansRules(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()
	now := time.Now()

	mock.ExpectQuery(`WHERE is_active LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(strategyCols).
			AddRow(int64(1), strategy.DefaultStrategyName, "", "1.0", "alphabetical_grouping",
				"{alphabetical_sorting,group_by_last_name}", true, now, now))

	st, err := s.GetActiveStrategy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StrategyAlphabeticalGrouping, st.Type)
	assert.Equal(t, []string{models.RuleAlphabeticalSorting, models.RuleGroupByLastName}, st.Rules)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SeedStrategies_KeepsExistingActive(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE is_active LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(strategyCols).
			AddRow(int64(9), "Custom", "", "1.0", "round_robin", "{}", true, now, now))
	for _, b := range strategy.Builtins() {
		mock.ExpectExec(`ON CONFLICT \(name\) DO NOTHING`).
			WithArgs(b.Name, sqlmock.AnyArg(), sqlmock.AnyArg(), string(b.Type), sqlmock.AnyArg(), false).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.SeedStrategies(context.Background(), strategy.Builtins()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SeedStrategies_Empty(t *testing.T) {
	conn, mock, s := setupMockDB(t)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE is_active LIMIT 1`).WillReturnError(sql.ErrNoRows)
	for _, b := range strategy.Builtins() {
		mock.ExpectExec(`ON CONFLICT \(name\) DO NOTHING`).
			WithArgs(b.Name, sqlmock.AnyArg(), sqlmock.AnyArg(), string(b.Type), sqlmock.AnyArg(), b.Active).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.SeedStrategies(context.Background(), strategy.Builtins()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

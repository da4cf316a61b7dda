package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/models"
	"exam-allocation/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryStore_InLedgerTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.BulkInsert(ctx, []*models.Assignment{
		{ExamineeID: "E1", RoomID: 1, CourseLabel: "CS301"},
		{ExamineeID: "E2", RoomID: 1, CourseLabel: "CS301"},
	}))

	boom := errors.New("insert failed")
	err := s.InLedgerTx(ctx, func(l allocation.Ledger) error {
		n, err := l.ClearAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		require.NoError(t, l.BulkInsert(ctx, []*models.Assignment{{ExamineeID: "E3", RoomID: 2, CourseLabel: "MATH201"}}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "E1", rows[0].ExamineeID)
	assert.Equal(t, "E2", rows[1].ExamineeID)
}

func TestMemoryStore_LedgerOperations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	batch := []*models.Assignment{
		{ExamineeID: "E1", RoomID: 1, CourseLabel: "CS301"},
		{ExamineeID: "E2", RoomID: 1, CourseLabel: "MATH201"},
		{ExamineeID: "E3", RoomID: 2, CourseLabel: "CS301"},
	}
	require.NoError(t, s.BulkInsert(ctx, batch))
	assert.Equal(t, int64(1), batch[0].ID)
	assert.Equal(t, int64(3), batch[2].ID)
	assert.False(t, batch[0].CreatedAt.IsZero())

	n, err := s.CountByRoom(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	removed, err := s.DeleteByRoomAndCourse(ctx, 1, "CS301")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err = s.CountByRoom(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "other rooms with the same course are untouched")

	cleared, err := s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	rows, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryStore_FetchEligibleRoster(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.AddExaminee(models.Examinee{ID: "E1", Name: "Zed", Eligible: true})
	s.AddExaminee(models.Examinee{ID: "E2", Name: "Amy", Eligible: false})
	s.AddExaminee(models.Examinee{ID: "E3", Name: "Bob", Eligible: true})
	s.AddExaminee(models.Examinee{ID: "E4", Name: "Cy", Eligible: true})

	all, err := s.FetchEligibleRoster(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E3", "E4"}, ids(all))

	limited, err := s.FetchEligibleRoster(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E3"}, ids(limited))
}

func TestMemoryStore_SeedEnrollments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c := s.AddCourse(models.Course{Code: "PHY101"})
	for _, id := range []string{"E1", "E2", "E3", "E4"} {
		s.AddExaminee(models.Examinee{ID: id, Name: id, Eligible: id != "E3"})
	}
	require.NoError(t, s.Enroll(c.ID, "E1"))

	n, err := s.SeedEnrollments(ctx, c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	roster, err := s.FetchCourseRoster(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E2", "E4"}, ids(roster))

	_, err = s.SeedEnrollments(ctx, 99, 2)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestMemoryStore_Strategies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SeedStrategies(ctx, strategy.Builtins()))
	require.NoError(t, s.SeedStrategies(ctx, strategy.Builtins()), "seeding twice is a no-op")

	list, err := s.ListStrategies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)

	active, err := s.GetActiveStrategy(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategy.DefaultStrategyName, active.Name)

	rr, err := s.GetStrategyByName(ctx, "Round Robin Distribution")
	require.NoError(t, err)
	require.NoError(t, s.ActivateStrategy(ctx, rr.ID))

	list, err = s.ListStrategies(ctx)
	require.NoError(t, err)
	activeCount := 0
	for _, st := range list {
		if st.Active {
			activeCount++
			assert.Equal(t, rr.ID, st.ID)
		}
	}
	assert.Equal(t, 1, activeCount)

	assert.ErrorIs(t, s.ActivateStrategy(ctx, 999), apperrors.ErrRecordNotFound)
	assert.ErrorIs(t, s.CreateStrategy(ctx, &models.Strategy{Name: rr.Name}), apperrors.ErrDuplicateRecord)
	assert.ErrorIs(t, s.DeleteStrategy(ctx, 999), apperrors.ErrRecordNotFound)
}

func TestMemoryStore_ActivateNeverExposesZeroOrTwoActive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SeedStrategies(ctx, strategy.Builtins()))
	a, err := s.GetStrategyByName(ctx, strategy.DefaultStrategyName)
	require.NoError(t, err)
	b, err := s.GetStrategyByName(ctx, "Round Robin Distribution")
	require.NoError(t, err)
	reg := strategy.NewRegistry(s, zap.NewNop())

	var writers sync.WaitGroup
	for _, order := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
		writers.Add(1)
		go func(ids [2]int64) {
			defer writers.Done()
			for i := 0; i < 200; i++ {
				if !assert.NoError(t, reg.Activate(ctx, ids[i%2])) {
					return
				}
			}
		}(order)
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				active, err := s.GetActiveStrategy(ctx)
				if !assert.NoError(t, err, "no active strategy observed") {
					return
				}
				if !assert.Contains(t, []int64{a.ID, b.ID}, active.ID) {
					return
				}

				list, err := s.ListStrategies(ctx)
				if !assert.NoError(t, err) {
					return
				}
				n := 0
				for _, st := range list {
					if st.Active {
						n++
					}
				}
				if !assert.Equal(t, 1, n, "active strategies in one listing") {
					return
				}
			}
		}()
	}

	writers.Wait()
	close(stop)
	readers.Wait()
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := s.AddRoom(models.Room{Name: "A", Capacity: 10, ExamCapacity: intPtr(8), Active: true, Bookable: true})

	got, err := s.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	*got.ExamCapacity = 1
	got.Name = "changed"

	again, err := s.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", again.Name)
	assert.Equal(t, 8, again.EffectiveCapacity())

	_, err = s.GetRoom(ctx, 42)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestMemoryStore_SeedDemo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.SeedDemo()

	all, err := s.FetchRooms(ctx, models.RoomFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	usable, err := s.FetchRooms(ctx, models.RoomFilter{ActiveOnly: true, BookableOnly: true})
	require.NoError(t, err)
	assert.Len(t, usable, 3)

	roster, err := s.FetchEligibleRoster(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, roster, 54)

	cs, err := s.FetchCourseRoster(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cs, 40)

	phy, err := s.FetchCourseRoster(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, phy)
}

func ids(list []*models.Examinee) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

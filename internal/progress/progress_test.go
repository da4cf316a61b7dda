package progress

import (
	"context"
	"testing"
	"time"

	"exam-allocation/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRedisTracker(t *testing.T, ttl time.Duration) (*RedisTracker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTracker(client, ttl, zap.NewNop()), mr
}

func TestRedisTracker_ReportAndGet(t *testing.T) {
	ctx := context.Background()
	tr, mr := newRedisTracker(t, time.Hour)
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	tr.Report(ctx, models.Progress{RunID: "r1", Percent: 45, Message: "computing groups", UpdatedAt: at})
	tr.Report(ctx, models.Progress{RunID: "r1", Percent: 65, Message: "binding groups to rooms", UpdatedAt: at})

	got, err := tr.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 65, got.Percent)
	assert.Equal(t, "binding groups to rooms", got.Message)
	assert.True(t, got.UpdatedAt.Equal(at))

	assert.True(t, mr.Exists(keyPrefix+"r1"))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"r1"))
}

func TestRedisTracker_Expiry(t *testing.T) {
	ctx := context.Background()
	tr, mr := newRedisTracker(t, time.Minute)

	tr.Report(ctx, models.Progress{RunID: "r2", Percent: 100})
	mr.FastForward(2 * time.Minute)

	_, err := tr.Get(ctx, "r2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTracker_ReportSurvivesOutage(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	tr := NewRedisTracker(client, time.Minute, zap.New(core))

	mr.Close()
	tr.Report(context.Background(), models.Progress{RunID: "r3", Percent: 10})

	assert.Equal(t, 1, logs.FilterMessage("failed to store progress").Len())
}

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	m := NewMemoryTracker(time.Hour)
	m.now = func() time.Time { return now }

	m.Report(ctx, models.Progress{RunID: "old", Percent: 100, UpdatedAt: now.Add(-2 * time.Hour)})
	m.Report(ctx, models.Progress{RunID: "new", Percent: 25, UpdatedAt: now})

	_, err := m.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := m.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, 25, got.Percent)
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	a := NewMemoryTracker(0)
	multi := Multi{a, NewLogReporter(zap.New(core))}

	multi.Report(ctx, models.Progress{RunID: "r", Percent: -1, Message: "NoEligibleRooms"})

	got, err := a.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, -1, got.Percent)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
}

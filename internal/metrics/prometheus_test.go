package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheus(reg, "test")

	c.RecordRun("alphabetical_grouping", "success", 26, 0, 20*time.Millisecond)
	c.RecordRun("alphabetical_grouping", "NoEligibleRooms", 0, 0, time.Millisecond)
	c.RecordRun("round_robin", "success", 10, 4, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("alphabetical_grouping", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("alphabetical_grouping", "NoEligibleRooms")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.runs))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runPlaced))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_run_total"])
	assert.True(t, names["test_run_duration_seconds"])
}

func TestCollector_RecordPlacement(t *testing.T) {
	c := NewPrometheus(prometheus.NewRegistry(), "")

	c.RecordPlacement("partial", 100, 30)
	c.RecordPlacement("full", 3, 0)
	c.RecordPlacement("RoomAlreadyOccupied", 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.placements.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.placements.WithLabelValues("RoomAlreadyOccupied")))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.remaining))
}

func TestNop(t *testing.T) {
	n := NewNop()
	n.RecordRun("x", "success", 1, 1, time.Second)
	n.RecordPlacement("full", 1, 0)
}

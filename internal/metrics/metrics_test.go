package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := MustNew(registry)

	m.Recomputed("tasks")
	m.Recomputed("tasks")
	m.Recomputed("events")
	m.Skipped("tasks", 3)
	m.Skipped("tasks", 0)
	m.TimelineSize(42)
	m.TimelineSize(7)
	m.Truncated("t1")
	m.RolledOver(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recomputes.WithLabelValues("tasks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recomputes.WithLabelValues("events")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.skippedRecords.WithLabelValues("tasks")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.timelineItems))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.truncatedSeries))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rolloverCreated))

	families, err := registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "teamcal_dashboard_recomputes_total")
	assert.Contains(t, names, "teamcal_dashboard_skipped_records_total")
	assert.Contains(t, names, "teamcal_dashboard_timeline_items")
	assert.Contains(t, names, "teamcal_recurrence_truncated_total")
	assert.Contains(t, names, "teamcal_rollover_created_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Recomputed("tasks")
		m.Skipped("tasks", 1)
		m.TimelineSize(1)
		m.Truncated("t1")
		m.RolledOver(1)
	})
}

func TestMustNewPanicsOnDuplicate(t *testing.T) {
	registry := prometheus.NewRegistry()
	MustNew(registry)
	assert.Panics(t, func() { MustNew(registry) })
}

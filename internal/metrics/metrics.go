package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for dashboard activity. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	recomputes      *prometheus.CounterVec
	skippedRecords  *prometheus.CounterVec
	timelineItems   prometheus.Gauge
	truncatedSeries prometheus.Counter
	rolloverCreated prometheus.Counter
}

// MustNew registers the collectors with reg, or the default registerer when
// reg is nil. Registration errors panic, as with promauto.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		recomputes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "teamcal",
				Subsystem: "dashboard",
				Name:      "recomputes_total",
				Help:      "Full timeline recomputations, by the collection whose update triggered them.",
			},
			[]string{"collection"},
		),
		skippedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "teamcal",
				Subsystem: "dashboard",
				Name:      "skipped_records_total",
				Help:      "Records excluded from the dashboard because they could not be decoded or dated.",
			},
			[]string{"collection"},
		),
		timelineItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "teamcal",
				Subsystem: "dashboard",
				Name:      "timeline_items",
				Help:      "Items in the most recently built month timeline, before filters.",
			},
		),
		truncatedSeries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "teamcal",
				Subsystem: "recurrence",
				Name:      "truncated_total",
				Help:      "Recurring task expansions cut off at the per-task occurrence cap.",
			},
		),
		rolloverCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "teamcal",
				Subsystem: "rollover",
				Name:      "created_total",
				Help:      "Next instances created for completed recurring tasks.",
			},
		),
	}
	reg.MustRegister(m.recomputes, m.skippedRecords, m.timelineItems, m.truncatedSeries, m.rolloverCreated)
	return m
}

func (m *Metrics) Recomputed(collection string) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(collection).Inc()
}

func (m *Metrics) Skipped(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedRecords.WithLabelValues(collection).Add(float64(n))
}

func (m *Metrics) TimelineSize(n int) {
	if m == nil {
		return
	}
	m.timelineItems.Set(float64(n))
}

// Truncated matches recurrence.Options.OnTruncate.
func (m *Metrics) Truncated(string) {
	if m == nil {
		return
	}
	m.truncatedSeries.Inc()
}

func (m *Metrics) RolledOver(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rolloverCreated.Add(float64(n))
}

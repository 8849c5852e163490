package reconcile

import (
	"time"

	"inventory-sync/core/graph"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reconcile collectors. A nil *Metrics records nothing.
type Metrics struct {
	records      *prometheus.CounterVec
	runs         *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	applyPhase   *prometheus.HistogramVec
}

// NewMetrics creates the reconcile collectors and registers them on reg.
// Passing a nil registerer creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_records_total",
				Help: "Number of diff records that reached a state, by entity type and action.",
			},
			[]string{"type", "action", "state"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_runs_total",
				Help: "Number of reconcile runs by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconcile_load_duration_seconds",
				Help:    "Time taken to load a snapshot.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"side"},
		),
		applyPhase: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconcile_apply_phase_duration_seconds",
				Help:    "Time taken by each apply phase.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.records, m.runs, m.loadDuration, m.applyPhase)
	}
	return m
}

func (m *Metrics) observeRecord(t graph.EntityType, action Action, state State) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(string(t), string(action), string(state)).Inc()
}

func (m *Metrics) observeRun(mode Mode, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	m.runs.WithLabelValues(string(mode), outcome).Inc()
}

func (m *Metrics) observeLoad(side string, start time.Time) {
	if m == nil {
		return
	}
	m.loadDuration.WithLabelValues(side).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observePhase(phase string, start time.Time) {
	if m == nil {
		return
	}
	m.applyPhase.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

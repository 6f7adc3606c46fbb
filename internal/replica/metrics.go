package replica

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/sketchsync/internal/ir"
)

// Event outcomes recorded by Metrics.
const (
	OutcomeApplied   = "applied"
	OutcomeStale     = "stale"
	OutcomeEscalated = "escalated"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
)

// Metrics instruments a Replica. A nil *Metrics records nothing.
type Metrics struct {
	events   *prometheus.CounterVec
	reduce   *prometheus.HistogramVec
	version  prometheus.Gauge
	deferred *prometheus.CounterVec
}

// NewMetrics creates replica metrics registered with reg.
// A nil reg creates unregistered collectors, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sketchsync_replica_events_total",
			Help: "Events received by the replica, by kind and outcome",
		}, []string{"event", "outcome"}),
		reduce: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sketchsync_replica_reduce_duration_seconds",
			Help:    "Duration of reducing one event into a snapshot",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		}, []string{"strategy"}),
		version: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sketchsync_replica_snapshot_version",
			Help: "Version of the current snapshot",
		}),
		deferred: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sketchsync_replica_deferred_commands_total",
			Help: "Follow-up commands sent after a delay",
		}, []string{"command"}),
	}
}

func (m *Metrics) observe(ev ir.EventName, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(ev), outcome).Inc()
}

func (m *Metrics) reduceTimer(s Strategy) *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(prometheus.ObserverFunc(func(float64) {}))
	}
	return prometheus.NewTimer(m.reduce.WithLabelValues(s.String()))
}

func (m *Metrics) setVersion(v int64) {
	if m == nil {
		return
	}
	m.version.Set(float64(v))
}

func (m *Metrics) deferredSent(cmd ir.CommandName) {
	if m == nil {
		return
	}
	m.deferred.WithLabelValues(string(cmd)).Inc()
}

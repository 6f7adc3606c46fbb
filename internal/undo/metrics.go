package undo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/sketchsync/internal/ir"
)

// Metrics instruments a Tracker. A nil *Metrics records nothing.
type Metrics struct {
	available *prometheus.GaugeVec
	requests  *prometheus.CounterVec
}

// NewMetrics creates tracker metrics registered with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		available: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sketchsync_undo_available",
			Help: "1 when the backend reports the action as available",
		}, []string{"action"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sketchsync_undo_requests_total",
			Help: "Undo and redo commands sent",
		}, []string{"command"}),
	}
}

func (m *Metrics) setAvailable(action string, v bool) {
	if m == nil {
		return
	}
	f := 0.0
	if v {
		f = 1
	}
	m.available.WithLabelValues(action).Set(f)
}

func (m *Metrics) requested(cmd ir.CommandName) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(cmd)).Inc()
}

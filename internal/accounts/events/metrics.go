package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsPublisher counts events by type.
type MetricsPublisher struct {
	events *prometheus.CounterVec
}

func NewMetricsPublisher(reg prometheus.Registerer) *MetricsPublisher {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clipshare",
		Subsystem: "accounts",
		Name:      "events_total",
		Help:      "Account lifecycle events by type.",
	}, []string{"type"})
	reg.MustRegister(events)

	return &MetricsPublisher{events: events}
}

func (p *MetricsPublisher) Publish(_ context.Context, e Event) error {
	p.events.WithLabelValues(string(e.Type)).Inc()
	return nil
}

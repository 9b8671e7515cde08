package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit trail.
type Metrics struct {
	EventsEmitted  *prometheus.CounterVec
	AppendFailures prometheus.Counter

	// Outbox publishing, recorded by the Kafka worker.
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
	OutboxLag       prometheus.Gauge
}

// NewMetrics registers all audit metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "obligo_audit_events_emitted_total",
			Help: "Audit events durably persisted, by action",
		}, []string{"action"}),

		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_audit_append_failures_total",
			Help: "Audit persistence failures; each one also failed a business operation",
		}),

		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_audit_outbox_published_total",
			Help: "Outbox entries successfully published to Kafka",
		}),

		OutboxFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_audit_outbox_publish_failures_total",
			Help: "Outbox publish attempts that failed and will be retried",
		}),

		OutboxLag: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "obligo_audit_outbox_pending",
			Help: "Outbox entries not yet published to Kafka",
		}),
	}
}

func (m *Metrics) IncEventsEmitted(action string) {
	if m != nil {
		m.EventsEmitted.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncAppendFailures() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}

// Package metrics holds the application-wide Prometheus metrics. Context
// specific metrics (audit outbox, alerting) live next to their packages.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the shared Prometheus metrics for the engine.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec

	OccurrencesMaterialized prometheus.Counter
	SubmissionsRecorded     prometheus.Counter
	CorrectionsAppended     prometheus.Counter
	AlertsFired             *prometheus.CounterVec
}

// New creates and registers all shared metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "obligo_http_request_duration_seconds",
			Help:    "HTTP request duration by method, path and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "path", "status"}),

		OccurrencesMaterialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_occurrences_materialized_total",
			Help: "Occurrences materialized (first ensure per definition and period)",
		}),

		SubmissionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_submissions_recorded_total",
			Help: "Authoritative submissions recorded",
		}),

		CorrectionsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_corrections_appended_total",
			Help: "Corrections appended to submitted occurrences",
		}),

		AlertsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "obligo_alerts_fired_total",
			Help: "Alerts fired by tier",
		}, []string{"tier"}),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

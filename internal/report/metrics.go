package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

type Metrics struct {
	generations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    prometheus.Gauge
}

// NewMetrics creates the generation metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tedecom",
			Subsystem: "reports",
			Name:      "generations_total",
			Help:      "Report generation attempts by type, format and result.",
		}, []string{"type", "format", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tedecom",
			Subsystem: "reports",
			Name:      "generation_duration_seconds",
			Help:      "Time spent generating reports.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"type", "format"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tedecom",
			Subsystem: "reports",
			Name:      "generations_in_flight",
			Help:      "Report generations currently running.",
		}),
	}
}

func (m *Metrics) observe(r *models.Report, result string, elapsed time.Duration) {
	m.generations.WithLabelValues(string(r.Type), string(r.Format), result).Inc()
	m.duration.WithLabelValues(string(r.Type), string(r.Format)).Observe(elapsed.Seconds())
}

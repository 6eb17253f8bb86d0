package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Requests          *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	GenerationRetries prometheus.Counter
	GenerationErrors  *prometheus.CounterVec
	MemoriesRecalled  prometheus.Histogram
	PersistFailures   prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Assistant requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_ms",
			Help:      "End-to-end request latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
		GenerationRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_retries_total",
			Help:      "Generation attempts retried after transient failures.",
		}),
		GenerationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Generation failures by class.",
		}, []string{"class"}),
		MemoriesRecalled: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memories_recalled",
			Help:      "Memories recalled per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Best-effort persistence writes that failed after a successful generation.",
		}),
	}
}

func (m *Metrics) ObserveRequestDuration(d time.Duration) {
	m.RequestDuration.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

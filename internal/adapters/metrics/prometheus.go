package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements ports.Metrics on a private registry, so tests and
// multiple instances never collide on the global one.
type Recorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Recorder{
		registry: registry,
		requests: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wish_relay_requests_total",
				Help: "Relay calls, partitioned by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		duration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wish_relay_duration_seconds",
				Help:    "Time spent serving a relay call end to end, failed calls included.",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"mode"},
		),
	}
}

func (r *Recorder) ObserveRelay(mode, outcome string, elapsed time.Duration) {
	r.requests.WithLabelValues(mode, outcome).Inc()
	r.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Requests exposes the request counter for assertions.
func (r *Recorder) Requests() *prometheus.CounterVec {
	return r.requests
}

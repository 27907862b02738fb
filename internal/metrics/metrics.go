package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the pipeline and HTTP layer report to.
type Recorder interface {
	ObserveIdentification(outcome, source string, latency time.Duration)
	IncStoreErrors(operation string)
	IncRequestsTotal(route string, status int)
	ObserveRequestDuration(route string, duration time.Duration)
}

type Prometheus struct {
	identifications  *prometheus.CounterVec
	inferenceLatency *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	gatherer         prometheus.Gatherer
}

// New registers the collectors with reg.
func New(reg *prometheus.Registry) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		identifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insectid",
			Name:      "identifications_total",
			Help:      "Identification outcomes by result and record source.",
		}, []string{"outcome", "source"}),
		inferenceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insectid",
			Name:      "inference_duration_seconds",
			Help:      "Time spent waiting for the remote model.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"source"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insectid",
			Name:      "store_errors_total",
			Help:      "Persistence writes the medium rejected.",
		}, []string{"operation"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insectid",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		}, []string{"route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insectid",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}
}

func (m *Prometheus) ObserveIdentification(outcome, source string, latency time.Duration) {
	m.identifications.WithLabelValues(outcome, source).Inc()
	if source != "" {
		m.inferenceLatency.WithLabelValues(source).Observe(latency.Seconds())
	}
}

func (m *Prometheus) IncStoreErrors(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

func (m *Prometheus) IncRequestsTotal(route string, status int) {
	m.requestsTotal.WithLabelValues(route, statusBucket(status)).Inc()
}

func (m *Prometheus) ObserveRequestDuration(route string, duration time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Noop discards everything.
type Noop struct{}

func (Noop) ObserveIdentification(string, string, time.Duration) {}
func (Noop) IncStoreErrors(string)                                {}
func (Noop) IncRequestsTotal(string, int)                         {}
func (Noop) ObserveRequestDuration(string, time.Duration)         {}

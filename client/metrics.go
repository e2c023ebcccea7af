package client

import (
	"errors"
	"strconv"
	"time"

	"github.com/adamwoolhether/routefetch/client/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for executed routes. Routes are
// labelled by their path template, never the compiled path, to keep
// cardinality bounded. It is safe for concurrent use.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Registering twice on the same
// registerer panics, so share one Metrics between clients.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "routefetch_requests_total",
				Help: "Total number of route executions that produced a response",
			},
			[]string{"method", "route", "status_code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "routefetch_request_duration_seconds",
				Help:    "Duration of route executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "routefetch_requests_in_flight",
				Help: "Number of route executions currently in flight",
			},
			[]string{"method", "route"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "routefetch_errors_total",
				Help: "Total number of route executions that failed without a response",
			},
			[]string{"method", "route", "kind"},
		),
	}
}

// begin marks a request in flight and returns the func that records its
// outcome. A nil Metrics records nothing.
func (m *Metrics) begin(method, route string) func(resp *transport.Response, err error) {
	if m == nil {
		return func(*transport.Response, error) {}
	}

	start := time.Now()
	m.requestsInFlight.WithLabelValues(method, route).Inc()

	return func(resp *transport.Response, err error) {
		m.requestsInFlight.WithLabelValues(method, route).Dec()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		if err != nil {
			m.errorsTotal.WithLabelValues(method, route, errorKind(err)).Inc()
			return
		}
		m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(resp.Status)).Inc()
	}
}

func errorKind(err error) string {
	var netErr *transport.NetworkError
	switch {
	case errors.Is(err, transport.ErrAborted):
		return "aborted"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "other"
	}
}

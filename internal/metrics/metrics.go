// Package metrics exposes Prometheus collectors for the upload broker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sharedrop"

// URL kinds.
const (
	KindUpload   = "upload"
	KindDownload = "download"
	KindPart     = "part"
)

// Multipart outcomes.
const (
	OutcomeInitiated = "initiated"
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

// Metrics holds the broker collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	URLsIssued      *prometheus.CounterVec
	Multipart       *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		URLsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_issued_total",
			Help:      "Presigned URLs issued, by kind.",
		}, []string{"kind"}),
		Multipart: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "multipart_total",
			Help:      "Multipart sessions by lifecycle outcome.",
		}, []string{"outcome"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed broker operations, by operation and error kind.",
		}, []string{"op", "kind"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		gatherer: reg,
	}

	reg.MustRegister(m.URLsIssued, m.Multipart, m.Failures, m.RequestDuration)
	return m
}

// NewNop returns collectors on a private registry, for tests and tools that
// do not expose metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) URLIssued(kind string) {
	if m == nil {
		return
	}
	m.URLsIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) MultipartOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Multipart.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Failure(op, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "internal"
	}
	m.Failures.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus metrics of the signer and serves them on
// a dedicated listen address.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the signer's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	handlerDuration *prometheus.HistogramVec
	reconstructions *prometheus.CounterVec
	tamperEvents    prometheus.Counter
	trustRetries    *prometheus.CounterVec
}

// New registers the collectors under namespace on a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Duration of message handler invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"event", "status"}),
		reconstructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconstructions_total",
			Help:      "Master secret reconstructions by outcome.",
		}, []string{"outcome"}),
		tamperEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tamper_events_total",
			Help:      "Device share hash mismatches that triggered local cleanup.",
		}),
		trustRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_service_retries_total",
			Help:      "Retried trust service calls by operation.",
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		m.handlerDuration,
		m.reconstructions,
		m.tamperEvents,
		m.trustRetries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveHandler(event, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(event, status).Observe(elapsed.Seconds())
}

func (m *Metrics) CountReconstruction(outcome string) {
	if m == nil {
		return
	}
	m.reconstructions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CountTamper() {
	if m == nil {
		return
	}
	m.tamperEvents.Inc()
}

func (m *Metrics) CountTrustRetry(operation string) {
	if m == nil {
		return
	}
	m.trustRetries.WithLabelValues(operation).Inc()
}

// Registry returns the underlying registry, or nil for a nil *Metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// MetricsServer serves /metrics.
type MetricsServer struct {
	srv *http.Server
}

func NewMetricsServer(listenAddr string, m *Metrics) *MetricsServer {
	var gatherer prometheus.Gatherer = prometheus.NewRegistry()
	if m != nil {
		gatherer = m.Registry()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &MetricsServer{
		srv: &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

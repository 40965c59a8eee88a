// Package metrics provides the Prometheus collectors for Birdo components.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values shared by the collectors.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	cacheHit      = "hit"
	cacheMiss     = "miss"
)

// ClientMetrics tracks outbound calls to the backend and the geocoder.
type ClientMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// NewClientMetrics creates and registers outbound client metrics.
func NewClientMetrics(registry prometheus.Registerer) (*ClientMetrics, error) {
	m := &ClientMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_requests_total",
				Help:      "Outbound requests by service, endpoint and outcome",
			},
			[]string{"service", "endpoint", "status"}, // status: 2xx, 4xx, 5xx, network
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "client_request_duration_seconds",
				Help:      "Outbound request latency",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"service", "endpoint"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_cache_lookups_total",
				Help:      "Response cache lookups by service and result",
			},
			[]string{"service", "result"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ClientMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requestsTotal, m.requestDuration, m.cacheLookups}
}

// Describe implements prometheus.Collector
func (m *ClientMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *ClientMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordRequest records one outbound call. status is a status class or "network".
func (m *ClientMetrics) RecordRequest(service, endpoint, status string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(service, endpoint, status).Inc()
	m.requestDuration.WithLabelValues(service, endpoint).Observe(elapsed.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func (m *ClientMetrics) RecordCacheLookup(service string, hit bool) {
	result := cacheMiss
	if hit {
		result = cacheHit
	}
	m.cacheLookups.WithLabelValues(service, result).Inc()
}

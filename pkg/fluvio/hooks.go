package fluvio

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Hooks receives counters and histograms at well-defined points in the
// core: connections, failures, requests, retries, and circuit events;
// produce/consume volumes and request latency; active connection counts.
// The default, noopHooks, ignores all of them.
type Hooks interface {
	OnConnectionOpened(role string)
	OnConnectionClosed(role string)
	OnConnectionFailed(role string)
	OnRequest(apiKey int16, d time.Duration, err error)
	OnRetry(apiKey int16, attempt int)
	OnCircuitOpen(role string)
	OnCircuitClose(role string)
	OnRecordsProduced(topic string, n int)
	OnRecordsConsumed(topic string, n int)
}

type noopHooks struct{}

func (noopHooks) OnConnectionOpened(string)             {}
func (noopHooks) OnConnectionClosed(string)             {}
func (noopHooks) OnConnectionFailed(string)             {}
func (noopHooks) OnRequest(int16, time.Duration, error) {}
func (noopHooks) OnRetry(int16, int)                    {}
func (noopHooks) OnCircuitOpen(string)                  {}
func (noopHooks) OnCircuitClose(string)                 {}
func (noopHooks) OnRecordsProduced(string, int)         {}
func (noopHooks) OnRecordsConsumed(string, int)         {}

// PrometheusHooks is an optional Hooks implementation backed by
// prometheus client_golang collectors. Construct with NewPrometheusHooks
// and register the Collectors() with a prometheus.Registerer.
type PrometheusHooks struct {
	connectionsActive *prometheus.GaugeVec
	connectionsFailed *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	retries           *prometheus.CounterVec
	circuitOpens      *prometheus.CounterVec
	recordsProduced   *prometheus.CounterVec
	recordsConsumed   *prometheus.CounterVec
}

// NewPrometheusHooks constructs a PrometheusHooks with the given metric
// name prefix (e.g. "fluvio_client").
func NewPrometheusHooks(namespace string) *PrometheusHooks {
	return &PrometheusHooks{
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_active",
			Help: "Active connections per role.",
		}, []string{"role"}),
		connectionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_failed_total",
			Help: "Connection failures per role.",
		}, []string{"role"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total",
			Help: "Requests issued per API key, labeled by outcome.",
		}, []string{"api_key", "outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "request_duration_seconds",
			Help:    "Request latency per API key.",
			Buckets: prometheus.DefBuckets,
		}, []string{"api_key"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "retries_total",
			Help: "Retry attempts per API key.",
		}, []string{"api_key"}),
		circuitOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "circuit_opens_total",
			Help: "Calls rejected by an open circuit breaker, per role.",
		}, []string{"role"}),
		recordsProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_produced_total",
			Help: "Records produced per topic.",
		}, []string{"topic"}),
		recordsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_consumed_total",
			Help: "Records consumed per topic.",
		}, []string{"topic"}),
	}
}

// Collectors returns every collector for registration with a
// prometheus.Registerer.
func (h *PrometheusHooks) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		h.connectionsActive, h.connectionsFailed, h.requests,
		h.requestLatency, h.retries, h.circuitOpens,
		h.recordsProduced, h.recordsConsumed,
	}
}

func (h *PrometheusHooks) OnConnectionOpened(role string) {
	h.connectionsActive.WithLabelValues(role).Inc()
}

func (h *PrometheusHooks) OnConnectionClosed(role string) {
	h.connectionsActive.WithLabelValues(role).Dec()
}

func (h *PrometheusHooks) OnConnectionFailed(role string) {
	h.connectionsFailed.WithLabelValues(role).Inc()
}

func (h *PrometheusHooks) OnRequest(apiKey int16, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	label := apiKeyLabel(apiKey)
	h.requests.WithLabelValues(label, outcome).Inc()
	h.requestLatency.WithLabelValues(label).Observe(d.Seconds())
}

func (h *PrometheusHooks) OnRetry(apiKey int16, _ int) {
	h.retries.WithLabelValues(apiKeyLabel(apiKey)).Inc()
}

func (h *PrometheusHooks) OnCircuitOpen(role string) {
	h.circuitOpens.WithLabelValues(role).Inc()
}

func (h *PrometheusHooks) OnCircuitClose(string) {}

func (h *PrometheusHooks) OnRecordsProduced(topic string, n int) {
	h.recordsProduced.WithLabelValues(topic).Add(float64(n))
}

func (h *PrometheusHooks) OnRecordsConsumed(topic string, n int) {
	h.recordsConsumed.WithLabelValues(topic).Add(float64(n))
}

func apiKeyLabel(apiKey int16) string {
	switch apiKey {
	case 0:
		return "produce"
	case 1003:
		return "stream_fetch_or_list_topics"
	case 1001:
		return "create_topics"
	case 1002:
		return "delete_topics"
	case 1005:
		return "fetch_consumer_offsets"
	case 1006:
		return "update_consumer_offset"
	default:
		return "unknown"
	}
}

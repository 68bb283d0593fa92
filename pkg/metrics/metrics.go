package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HandshakesStarted prometheus.Counter
	HandshakeOutcomes *prometheus.CounterVec
	ExchangeLatency   prometheus.Histogram
	StoreErrors       *prometheus.CounterVec
	GatewayRequests   *prometheus.CounterVec
	GatewayLatency    *prometheus.HistogramVec
	ConnectedTenants  prometheus.Gauge
}

// New registers all collectors on reg (prometheus.DefaultRegisterer in main, a fresh registry in tests).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HandshakesStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "aervo_handshakes_started_total",
			Help: "Authorization handshakes initiated",
		}),
		HandshakeOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aervo_handshake_outcomes_total",
			Help: "Completed callbacks by outcome (connected or failure code)",
		}, []string{"outcome"}),
		ExchangeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "aervo_code_exchange_seconds",
			Help:    "Latency of one-time code exchanges against the platform token endpoint",
			Buckets: prometheus.DefBuckets,
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aervo_credential_store_errors_total",
			Help: "Credential store failures by operation",
		}, []string{"op"}),
		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aervo_gateway_requests_total",
			Help: "Downstream platform API calls by resource and status class",
		}, []string{"resource", "status"}),
		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aervo_gateway_request_seconds",
			Help:    "Latency of downstream platform API calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		ConnectedTenants: f.NewGauge(prometheus.GaugeOpts{
			Name: "aervo_connected_tenants",
			Help: "Tenants with a stored access credential, sampled on listing",
		}),
	}
}

func (m *Metrics) HandshakeStarted() {
	if m == nil {
		return
	}
	m.HandshakesStarted.Inc()
}

func (m *Metrics) HandshakeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.HandshakeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveExchange(d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangeLatency.Observe(d.Seconds())
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) GatewayRequest(resource, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(resource, status).Inc()
	m.GatewayLatency.WithLabelValues(resource).Observe(d.Seconds())
}

func (m *Metrics) SetConnectedTenants(n int) {
	if m == nil {
		return
	}
	m.ConnectedTenants.Set(float64(n))
}

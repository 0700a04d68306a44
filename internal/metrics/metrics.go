package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the relay. All methods are
// nil-safe so the instrumentation can be left out entirely in tests.
type Metrics struct {
	requests             *prometheus.CounterVec
	rateLimitRejections  prometheus.Counter
	upstreamFailures     prometheus.Counter
	streamTokens         prometheus.Counter
	streamDurationSecond prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		requests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_requests_total",
				Help: "Total inbound requests by route and status class",
			},
			[]string{"route", "status"},
		),
		rateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_rate_limit_rejections_total",
			Help: "Requests rejected by the fixed-window rate limiter",
		}),
		upstreamFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_upstream_failures_total",
			Help: "Completion API calls that failed or returned non-2xx",
		}),
		streamTokens: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_stream_tokens_total",
			Help: "Token fragments relayed to clients",
		}),
		streamDurationSecond: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatrelay_stream_duration_seconds",
			Help:    "Wall-clock duration of relay requests",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveRequest(route, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, status).Inc()
}

func (m *Metrics) RateLimitRejected() {
	if m == nil {
		return
	}
	m.rateLimitRejections.Inc()
}

func (m *Metrics) UpstreamFailed() {
	if m == nil {
		return
	}
	m.upstreamFailures.Inc()
}

func (m *Metrics) TokenRelayed() {
	if m == nil {
		return
	}
	m.streamTokens.Inc()
}

func (m *Metrics) ObserveDuration(seconds float64) {
	if m == nil {
		return
	}
	m.streamDurationSecond.Observe(seconds)
}

package httpcli

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moweilong/tradeclient/pkg/apierr"
)

const metricsNamespace = "tradeclient"

// outcome label values
const (
	outcomeOK       = "ok"
	outcomeFailed   = "failed"
	outcomeNoToken  = "no_refresh_token"
	outcomeReplayed = "already_rotated"
)

// Metrics holds the client collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests           *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	refreshes          *prometheus.CounterVec
	autoRetries        prometheus.Counter
	sessionExpirations prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests completed by the client, by method and classified result.",
		}, []string{"method", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of client calls including transparent recovery.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		autoRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limit_auto_retries_total",
			Help:      "Rate limited requests retried transparently.",
		}),
		sessionExpirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_expirations_total",
			Help:      "Sessions torn down after a failed refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.refreshes, m.autoRetries, m.sessionExpirations)
	}
	return m
}

func (m *Metrics) observeRequest(method string, err error, seconds float64) {
	if m == nil {
		return
	}
	result := outcomeOK
	if err != nil {
		result = apierr.KindOf(err).String()
	}
	m.requests.WithLabelValues(method, result).Inc()
	m.duration.WithLabelValues(method).Observe(seconds)
}

func (m *Metrics) observeRefresh(trigger, outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) observeAutoRetry() {
	if m == nil {
		return
	}
	m.autoRetries.Inc()
}

func (m *Metrics) observeSessionExpired() {
	if m == nil {
		return
	}
	m.sessionExpirations.Inc()
}

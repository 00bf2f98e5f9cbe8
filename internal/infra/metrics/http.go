package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitDecisions, providerCallsTotal, providerLatencyMs) }

var rateLimitDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Rate limiter admissions and denials, labeled by scope and result.",
	},
	[]string{"scope", "result"}, // scope: user|peer, result: admit|deny
)

func IncRateLimitDecision(scope, result string) {
	rateLimitDecisions.WithLabelValues(norm(scope), norm(result)).Inc()
}

var providerCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provider_calls_total",
		Help: "Generative provider calls, labeled by provider and outcome.",
	},
	[]string{"provider", "outcome"},
)

func IncProviderCall(provider, outcome string) {
	providerCallsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

var providerLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "provider_call_latency_ms",
		Help:    "Generative provider call latency in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 20000, 40000},
	},
	[]string{"provider"},
)

func ObserveProviderLatency(provider string, ms int64) {
	providerLatencyMs.WithLabelValues(norm(provider)).Observe(float64(ms))
}

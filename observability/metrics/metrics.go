package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway aggregates the Prometheus collectors exposed on /metrics.
type Gateway struct {
	JobsCreated    prometheus.Counter
	Transitions    *prometheus.CounterVec
	Settlements    *prometheus.CounterVec
	GraderRequests *prometheus.CounterVec
	GraderLatency  prometheus.Histogram
	RequestSeconds *prometheus.HistogramVec
}

// NewGateway registers the gateway collectors on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func NewGateway(reg prometheus.Registerer) *Gateway {
	factory := promauto.With(reg)
	return &Gateway{
		JobsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trustlock",
			Name:      "jobs_created_total",
			Help:      "Jobs and offers posted through the gateway.",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustlock",
			Name:      "transitions_total",
			Help:      "Escrow state transitions by event and result.",
		}, []string{"event", "result"}),
		Settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustlock",
			Name:      "settlements_total",
			Help:      "Settled jobs by terminal outcome.",
		}, []string{"outcome"}),
		GraderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustlock",
			Name:      "grader_requests_total",
			Help:      "Verification requests sent to the grader.",
		}, []string{"status"}),
		GraderLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trustlock",
			Name:      "grader_latency_seconds",
			Help:      "Grader round-trip latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		RequestSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trustlock",
			Name:      "http_request_seconds",
			Help:      "HTTP request latency by route and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "class"}),
	}
}

// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ComposeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compose_requests_total",
			Help: "Total number of compose-and-generate requests",
		},
		[]string{"mode", "status"},
	)

	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_attempts_total",
			Help: "Total number of backend generation attempts",
		},
		[]string{"backend", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "generation_duration_seconds",
			Help: "Duration of backend generation calls in seconds",
		},
		[]string{"backend"},
	)

	GuardrailViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_violations_total",
			Help: "Total number of guardrail rule violations",
		},
		[]string{"rule"},
	)

	RetrievalFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_fallbacks_total",
			Help: "Compositions that fell back to the deterministic catalog lookup",
		},
		[]string{"collection"},
	)
)

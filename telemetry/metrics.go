package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	MetricControlRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tck",
		Name:      "control_request_total",
		Help:      "Total number of control-plane requests sent to the implementation under test.",
	}, []string{"method", "outcome"})

	MetricControlRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tck",
		Name:      "control_request_duration_seconds",
		Help:      "Round-trip duration of control-plane requests.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	MetricOracleQueryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tck",
		Name:      "oracle_query_total",
		Help:      "Total number of oracle queries by oracle, entity kind and outcome.",
	}, []string{"oracle", "kind", "outcome"})

	MetricRetryAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tck",
		Name:      "retry_attempts",
		Help:      "Number of attempts a retry-until-consistent call needed before it finished.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 20, 30},
	}, []string{"outcome"})

	MetricSessionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tck",
		Name:      "session_total",
		Help:      "Session lifecycle events (opened, superseded, closed, close_failed).",
	}, []string{"event"})

	MetricSessionActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tck",
		Name:      "session_active",
		Help:      "Whether a session is currently open against the implementation under test.",
	}, []string{"operator"})
)

const (
	OutcomeSuccess   = "success"
	OutcomeDomain    = "domain_error"
	OutcomeTransport = "transport_error"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
	OutcomeExhausted = "exhausted"
)

// Push sends everything registered on the default registry to a Prometheus Pushgateway.
// A blank gateway url is a no-op.
func Push(ctx context.Context, gatewayUrl string, job string) error {
	if gatewayUrl == "" {
		return nil
	}
	return push.New(gatewayUrl, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
}

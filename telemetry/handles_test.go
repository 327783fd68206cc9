package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounterHandle_IsCachedPerLabels(t *testing.T) {
	ResetHandleCache()
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_handles_total"}, []string{"method", "outcome"})

	a := CounterHandle(cv, "createAccount", OutcomeSuccess)
	b := CounterHandle(cv, "createAccount", OutcomeSuccess)
	c := CounterHandle(cv, "createAccount", OutcomeDomain)
	assert.Same(t, a, b)

	a.Inc()
	b.Inc()
	c.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(cv.WithLabelValues("createAccount", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(cv.WithLabelValues("createAccount", OutcomeDomain)))
}

func TestPush_NoGatewayIsNoop(t *testing.T) {
	assert.NoError(t, Push(context.Background(), "", "tck"))
}

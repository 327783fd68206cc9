package telemetry

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Label-bound children are cached per vec so hot paths skip the vec's internal lookup.
type handleKey struct {
	vec    interface{}
	labels string
}

var handleCache sync.Map // map[handleKey]interface{}

func labelsKey(labels []string) string {
	return strings.Join(labels, "\x1f")
}

func cached[T any](vec interface{}, labels []string, create func() T) T {
	k := handleKey{vec: vec, labels: labelsKey(labels)}
	if v, ok := handleCache.Load(k); ok {
		return v.(T)
	}
	actual, _ := handleCache.LoadOrStore(k, create())
	return actual.(T)
}

func CounterHandle(cv *prometheus.CounterVec, labels ...string) prometheus.Counter {
	return cached(cv, labels, func() prometheus.Counter { return cv.WithLabelValues(labels...) })
}

func GaugeHandle(gv *prometheus.GaugeVec, labels ...string) prometheus.Gauge {
	return cached(gv, labels, func() prometheus.Gauge { return gv.WithLabelValues(labels...) })
}

func ObserverHandle(hv *prometheus.HistogramVec, labels ...string) prometheus.Observer {
	return cached(hv, labels, func() prometheus.Observer { return hv.WithLabelValues(labels...) })
}

// ResetHandleCache clears the handle cache. Call it after re-creating metric vecs.
func ResetHandleCache() {
	handleCache = sync.Map{}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the storefront collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "events_total",
			Help:      "Storefront event counters",
		},
		[]string{"type", "kind", "result"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "latency_seconds",
			Help:      "Storefront operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)

	reg.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":   name,
		"kind":   labels["kind"],
		"result": labels["result"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"result":    labels["result"],
	}).Observe(d.Seconds())
}

package mux

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerMetricsOnce sync.Once

var (
	backendLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "blobmux",
			Subsystem: "multiplexer",
			Name:      "backend_latency_seconds",
			Help:      "Latency of a single per-backend call, by operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "result"})

	putWriteOrder = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "blobmux",
			Subsystem: "multiplexer",
			Name:      "put_write_order",
			Help:      "Observational write-order index of a per-backend put within a logical put.",
			Buckets:   append([]float64{0}, prometheus.ExponentialBuckets(1.0, 2.0, 8)...),
		})

	operationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blobmux",
			Subsystem: "multiplexer",
			Name:      "operation_outcomes_total",
			Help:      "Count of multiplexer-level operation outcomes.",
		},
		[]string{"operation", "outcome"})
)

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(backendLatencySeconds, putWriteOrder, operationOutcomes)
	})
}

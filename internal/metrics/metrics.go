package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkdb_operations_total",
			Help: "Data-plane operations by operation and outcome",
		},
		[]string{"op", "outcome"}, // create_table|insert_data|... , ok|<error code>
	)

	UsageEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkdb_usage_events_total",
			Help: "Usage events by pipeline stage (queued, dropped, flushed, failed, skipped, poison)",
		},
		[]string{"stage"}, // queued|dropped|flushed|failed|skipped
	)

	UsageQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkdb_usage_queue_depth",
			Help: "Usage events waiting in the in-process queue",
		},
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors once per process; serve and worker may both call it.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			OperationsTotal,
			UsageEventsTotal,
			UsageQueueDepth,
		)
	})
}

package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkwatch"

var (
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_total",
			Help:      "Total outbox publish attempts by result",
		},
		[]string{"status"},
	)

	poisonPayloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "poison_payloads_total",
			Help:      "Outbox records whose payload failed to decode",
		},
	)

	pendingRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "pending_records",
			Help:      "Number of unprocessed outbox records",
		},
	)
)

// recordPublish records a publish attempt result.
func recordPublish(status string) {
	publishTotal.WithLabelValues(status).Inc()
}

// recordPoisonPayload records a record that can never serialize.
func recordPoisonPayload() {
	poisonPayloads.Inc()
}

// RecordPendingRecords updates the pending-records gauge.
func RecordPendingRecords(count int64) {
	pendingRecords.Set(float64(count))
}

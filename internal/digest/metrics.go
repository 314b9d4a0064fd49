package digest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkwatch"

var (
	entriesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "entries_appended_total",
			Help:      "Total digest entries appended",
		},
	)

	messagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "messages_dropped_total",
			Help:      "Bus messages dropped because the payload did not decode",
		},
	)
)

func recordAppended() {
	entriesAppended.Inc()
}

func recordDropped() {
	messagesDropped.Inc()
}

package tracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkwatch"

var (
	linksClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "links_claimed_total",
			Help:      "Total links claimed for a freshness check",
		},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "fetch_duration_seconds",
			Help:      "Time to fetch an update from the external provider",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)

	updatesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "updates_detected_total",
			Help:      "Total link changes that produced an outbox record",
		},
		[]string{"provider"},
	)
)

// recordClaimed records the number of links claimed in one tick.
func recordClaimed(count int) {
	linksClaimed.Add(float64(count))
}

// recordFetch records a provider fetch attempt.
func recordFetch(provider, status string, duration time.Duration) {
	fetchDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// recordUpdateDetected records a detected change.
func recordUpdateDetected(provider string) {
	updatesDetected.WithLabelValues(provider).Inc()
}

// Package metrics holds the domain counters exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ChallengeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_transitions_total",
			Help: "Challenge status transitions by source and target status",
		},
		[]string{"from", "to"},
	)
	NotificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notification jobs processed by the dispatcher, by result",
		},
		[]string{"result"},
	)
)

// Collectors lists everything this package exports, for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{ChallengeTransitions, NotificationsDispatched}
}

// Package metrics registers the hub's Prometheus collectors
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks open WebSocket connections
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "whereabouts",
		Name:      "connected_clients",
		Help:      "Number of open WebSocket connections.",
	})

	// RegisteredUsers tracks live identities in the presence registry
	RegisteredUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "whereabouts",
		Name:      "registered_users",
		Help:      "Number of users currently bound to a connection.",
	})

	// MessagesTotal counts stored chat messages by channel kind
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whereabouts",
		Name:      "messages_total",
		Help:      "Chat messages accepted into a history store.",
	}, []string{"kind"})

	// EventsOutTotal counts outbound events by name
	EventsOutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whereabouts",
		Name:      "events_out_total",
		Help:      "Events dispatched to connections.",
	}, []string{"event"})

	// SweeperEvictionsTotal counts liveness evictions
	SweeperEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whereabouts",
		Name:      "sweeper_evictions_total",
		Help:      "Connections evicted for inactivity.",
	})

	// ArchiveDropsTotal counts write-behind operations dropped on overflow
	ArchiveDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whereabouts",
		Name:      "archive_drops_total",
		Help:      "Persistence operations dropped because the queue was full.",
	})
)

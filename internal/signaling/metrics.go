package signaling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_sessions_active",
		Help: "Sessions currently held by the coordinator",
	})

	gaugeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_connections_active",
		Help: "Role slots currently holding a live connection",
	})

	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_sessions_created_total",
		Help: "Sessions created on first touch of a code",
	})

	metricSessionsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_sessions_deleted_total",
		Help: "Sessions deleted, by reason (disconnect, idle, expired, shutdown)",
	}, []string{"reason"})

	metricSuperseded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_connections_superseded_total",
		Help: "Connections closed because a newer one claimed the same role",
	}, []string{"role"})

	// Unrecognized types share the "unknown" label to bound cardinality.
	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_messages_total",
		Help: "Inbound envelopes by type",
	}, []string{"type"})

	metricRelays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_relays_total",
		Help: "Offers/answers pushed to the peer, by type and trigger (live, reconnect)",
	}, []string{"type", "trigger"})

	metricIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_messages_ignored_total",
		Help: "Offer/answer envelopes dropped because the sender holds the wrong role",
	}, []string{"type"})

	metricSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_send_failures_total",
		Help: "Outbound frames that could not be queued on a connection",
	})

	metricSweepMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signal_sweep_duration_ms",
		Help:    "Time spent in one lifecycle sweep across all shards (ms)",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

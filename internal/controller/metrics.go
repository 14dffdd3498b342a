package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "whiteboard"

type metrics struct {
	connections     prometheus.Gauge
	participants    prometheus.GaugeFunc
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	fanout          prometheus.Histogram
	snapshotBytes   prometheus.Histogram
}

// newMetrics registers the collectors. participants is read on every scrape.
func newMetrics(registerer prometheus.Registerer, participants func() int) *metrics {
	factory := promauto.With(registerer)

	return &metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Number of open websocket connections",
		}),
		participants: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "participants",
			Help:      "Number of connections that joined a room",
		}, func() float64 {
			return float64(participants())
		}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_total",
			Help:      "Inbound websocket messages by type and outcome",
		}, []string{"type", "status"}),
		messageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "message_duration_seconds",
			Help:      "Inbound websocket message handling time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		fanout: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "broadcast_fanout",
			Help:      "Connections written to per broadcast",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		snapshotBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_bytes",
			Help:      "Encoded size of saved snapshots",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}

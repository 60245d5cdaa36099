package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onionparts",
		Name:      "messages_sent_total",
		Help:      "Chat messages persisted, by message type.",
	}, []string{"kind"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "onionparts",
		Name:      "ws_connections",
		Help:      "Open live-feed websocket connections.",
	})

	UploadedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onionparts",
		Name:      "storage_uploaded_bytes_total",
		Help:      "Bytes written to object storage, by bucket.",
	}, []string{"bucket"})

	KeepAliveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "onionparts",
		Name:      "keepalive_failures_total",
		Help:      "Scheduled database keep-alive pings that failed.",
	})
)

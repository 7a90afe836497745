package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	msgTypeLabel = "msg_type"
)

var (
	wsConnectedObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connected_observers",
		Help: "The number of connected observers.",
	})

	wsReceivedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_msgs",
		Help: "The number of messages received from WebSocket connections.",
	}, []string{msgTypeLabel})

	wsSentMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_msgs",
		Help: "The number of messages sent to WebSocket connections.",
	}, []string{msgTypeLabel})

	wsDroppedSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_dropped_snapshots",
		Help: "The number of snapshots dropped because an observer was too slow.",
	})
)

func instrumentConnect() {
	wsConnectedObservers.Inc()
}

func instrumentDisconnect() {
	wsConnectedObservers.Dec()
}

func instrumentReceivedMsg(msgType string) {
	wsReceivedMsgs.
		With(prometheus.Labels{msgTypeLabel: msgType}).
		Inc()
}

func instrumentSentMsg(msgType string) {
	wsSentMsgs.
		With(prometheus.Labels{msgTypeLabel: msgType}).
		Inc()
}

func instrumentDroppedSnapshot() {
	wsDroppedSnapshots.Inc()
}

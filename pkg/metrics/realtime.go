package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RealtimeMetrics tracks websocket connection counts and fan-out volume.
type RealtimeMetrics struct {
	connections prometheus.Gauge
	delivered   *prometheus.CounterVec
	dropped     prometheus.Counter
}

// NewRealtimeMetrics registers the websocket metrics.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Current open websocket connections.",
	})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_messages_delivered_total",
		Help: "Messages delivered to websocket clients by type.",
	}, []string{"type"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_messages_dropped_total",
		Help: "Messages dropped because a client send buffer was full.",
	})
	reg.MustRegister(connections, delivered, dropped)
	return &RealtimeMetrics{
		connections: connections,
		delivered:   delivered,
		dropped:     dropped,
	}
}

// IncConnections marks a connection as registered.
func (r *RealtimeMetrics) IncConnections() {
	if r == nil || r.connections == nil {
		return
	}
	r.connections.Inc()
}

// DecConnections marks a connection as removed.
func (r *RealtimeMetrics) DecConnections() {
	if r == nil || r.connections == nil {
		return
	}
	r.connections.Dec()
}

// IncDelivered counts a delivered message.
func (r *RealtimeMetrics) IncDelivered(messageType string) {
	if r == nil || r.delivered == nil {
		return
	}
	r.delivered.WithLabelValues(normalizeLabel(messageType)).Inc()
}

// IncDropped counts a message dropped on a full client buffer.
func (r *RealtimeMetrics) IncDropped() {
	if r == nil || r.dropped == nil {
		return
	}
	r.dropped.Inc()
}

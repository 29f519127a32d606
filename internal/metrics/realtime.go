package metrics

// Inbound event results
const (
	EventHandled   = "handled"
	EventUnknown   = "unknown"
	EventMalformed = "malformed"
)

// Message kinds and delivery outcomes
const (
	KindDirect  = "direct"
	KindChannel = "channel"
	KindCall    = "call"

	OutcomeDelivered = "delivered"
	OutcomeOffline   = "offline"
	OutcomeFailed    = "failed"
)

// Push dispatch results
const (
	PushSent    = "sent"
	PushFailed  = "failed"
	PushSkipped = "skipped"
)

func (m *Metrics) RecordWebSocketConnection() {
	m.safeExecute("RecordWebSocketConnection", func() {
		m.WSConnectionsTotal.Inc()
		m.WSActiveConnections.Inc()
	})
}

func (m *Metrics) RecordWebSocketDisconnection() {
	m.safeExecute("RecordWebSocketDisconnection", func() {
		m.WSActiveConnections.Dec()
	})
}

func (m *Metrics) SetOnlineUsers(count int) {
	m.safeExecute("SetOnlineUsers", func() {
		m.OnlineUsers.Set(float64(count))
	})
}

// RecordInboundEvent counts a frame by event name. Unknown names are folded
// into one label value to keep cardinality bounded.
func (m *Metrics) RecordInboundEvent(event, result string) {
	m.safeExecute("RecordInboundEvent", func() {
		if result == EventUnknown {
			event = "unknown"
		}
		m.InboundEventsTotal.WithLabelValues(event, result).Inc()
	})
}

func (m *Metrics) RecordMessageSent(kind, outcome string) {
	m.safeExecute("RecordMessageSent", func() {
		m.MessagesSentTotal.WithLabelValues(kind, outcome).Inc()
	})
}

func (m *Metrics) RecordPushDispatch(kind, result string) {
	m.safeExecute("RecordPushDispatch", func() {
		m.PushDispatchTotal.WithLabelValues(kind, result).Inc()
	})
}

func (m *Metrics) RecordCallTransition(status string) {
	m.safeExecute("RecordCallTransition", func() {
		m.CallTransitionsTotal.WithLabelValues(status).Inc()
	})
}

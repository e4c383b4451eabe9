// Package metrics holds the prometheus collectors of the client core. A nil *Metrics is valid and records
// nothing, so components do not need to check.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "neowatch"

type Metrics struct {
	RefreshTotal      *prometheus.CounterVec
	LogoutTotal       *prometheus.CounterVec
	ChatEventsTotal   *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by result.",
		}, []string{"result"}),
		LogoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logout_total",
			Help:      "Session terminations by reason.",
		}, []string{"reason"}),
		ChatEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "events_total",
			Help:      "Inbound chat events by event name.",
		}, []string{"event"}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts of the chat transport.",
		}),
	}
	reg.MustRegister(m.RefreshTotal, m.LogoutTotal, m.ChatEventsTotal, m.ReconnectAttempts)
	return m
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Logout(reason string) {
	if m == nil {
		return
	}
	m.LogoutTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ChatEvent(event string) {
	if m == nil {
		return
	}
	m.ChatEventsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

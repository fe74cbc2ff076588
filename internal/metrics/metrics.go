package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts tray events delivered to the agent, by kind.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tray_agent_events_total",
		Help: "Tray events polled from the session, by kind.",
	}, []string{"kind"})

	// PollErrorsTotal counts polls that returned an error.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tray_agent_poll_errors_total",
		Help: "Event polls that failed.",
	})

	// ActionsTotal counts dispatched menu actions, by kind.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tray_agent_actions_total",
		Help: "Actions dispatched from menu clicks, by kind.",
	}, []string{"kind"})

	// SessionRestartsTotal counts tray session rebuilds, reloads included.
	SessionRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tray_agent_session_restarts_total",
		Help: "Times the tray session was rebuilt.",
	})

	// LoopExitsTotal counts native loop exits, by status.
	LoopExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tray_agent_loop_exits_total",
		Help: "Native tray loop exits, by status.",
	}, []string{"status"})

	// WebSocketClients tracks currently connected websocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tray_agent_websocket_clients",
		Help: "Connected websocket clients.",
	})
)

// Handler returns the scrape endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

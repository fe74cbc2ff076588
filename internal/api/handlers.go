package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/glasswing-io/tray-agent/internal/backend"
	"github.com/glasswing-io/tray-agent/internal/logging"
	"github.com/glasswing-io/tray-agent/internal/metrics"
)

// NewMux wires the agent's HTTP surface: the status page at the root, the
// JSON API under /api/, the websocket upgrade at /ws and the Prometheus
// scrape at /metrics. Pass nil to serve no static page.
func NewMux(static http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if static != nil {
		mux.Handle("/", static)
	}
	mux.HandleFunc("/ws", InitWebSocket())
	mux.HandleFunc("/api/status", handleStatusHTTP)
	mux.HandleFunc("/api/version", handleVersionHTTP)
	mux.HandleFunc("/api/health", handleHealthHTTP)
	mux.HandleFunc("/api/backends", handleBackendsHTTP)
	mux.HandleFunc("/api/logs", handleLogsHTTP)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn(logging.CatHTTP, "Failed to encode response", map[string]any{
			"error": err.Error(),
		})
	}
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func handleStatusHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, currentStatus())
}

func handleVersionHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, versionPayload())
}

func handleHealthHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, healthPayload())
}

func handleBackendsHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, backend.Available())
}

// handleLogsHTTP serves recent log entries. Query parameters: count, level
// and category, all optional.
func handleLogsHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	count := 100
	if s := r.URL.Query().Get("count"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			count = n
		}
	}

	var minLevel *logging.Level
	if s := r.URL.Query().Get("level"); s != "" {
		lv := logging.ParseLevel(s)
		minLevel = &lv
	}

	var category *logging.Category
	if s := r.URL.Query().Get("category"); s != "" {
		c := logging.Category(s)
		category = &c
	}

	writeJSON(w, http.StatusOK, logging.Get().GetEntries(count, minLevel, category))
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/glasswing-io/tray-agent/internal/backend"
	"github.com/glasswing-io/tray-agent/internal/logging"
	"github.com/glasswing-io/tray-agent/internal/metrics"
	"github.com/glasswing-io/tray-agent/internal/version"
)

// Build identity, mirrored from the version package so the API reports what
// the binary was stamped with.
var (
	Version   = version.Current
	BuildTime = version.BuildTime
	GitCommit = version.GitCommit
)

var startTime = time.Now()

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WSMessage is the envelope for everything that crosses the websocket.
// Requests carry a client-chosen ID that is echoed back on the response.
type WSMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Event is pushed to subscribed clients when the tray reports activity.
type Event struct {
	Kind   string    `json:"kind"`
	MenuID string    `json:"menuId,omitempty"`
	Action string    `json:"action,omitempty"`
	At     time.Time `json:"at"`
}

// Status is the agent snapshot reported over the status endpoints.
type Status struct {
	Running      bool     `json:"running"`
	Backend      string   `json:"backend"`
	Organization string   `json:"organization,omitempty"`
	AppID        string   `json:"appId,omitempty"`
	MenuItems    []string `json:"menuItems,omitempty"`
	UptimeSec    int64    `json:"uptimeSec"`
	Version      string   `json:"version"`
}

// StatusProvider reports the agent's live state. The agent installs one at
// startup; without it the endpoints answer with a zero snapshot.
type StatusProvider func() Status

var (
	statusMu       sync.RWMutex
	statusProvider StatusProvider
)

// SetStatusProvider installs the function the status endpoints call.
func SetStatusProvider(p StatusProvider) {
	statusMu.Lock()
	statusProvider = p
	statusMu.Unlock()
}

func currentStatus() Status {
	statusMu.RLock()
	p := statusProvider
	statusMu.RUnlock()

	var s Status
	if p != nil {
		s = p()
	}
	if s.Version == "" {
		s.Version = Version
	}
	s.UptimeSec = int64(time.Since(startTime).Seconds())
	return s
}

func versionPayload() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
		"platform":  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func healthPayload() map[string]any {
	return map[string]any{
		"status":    "ok",
		"uptimeSec": int64(time.Since(startTime).Seconds()),
	}
}

// WSHub fans messages out to connected clients.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
}

// NewWSHub creates a hub with no clients.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run owns the client set. It must run in its own goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			logging.Debug(logging.CatWebSocket, "Client connected", map[string]any{
				"id":      client.id,
				"clients": n,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketClients.Dec()
			}
			n := len(h.clients)
			h.mu.Unlock()
			logging.Debug(logging.CatWebSocket, "Client disconnected", map[string]any{
				"id":      client.id,
				"clients": n,
			})

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client is not keeping up; drop the message.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent delivers a tray event to every client whose subscription
// covers its kind.
func (h *WSHub) BroadcastEvent(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	raw, err := json.Marshal(WSMessage{Type: "event", Payload: payload})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(ev.Kind) {
			continue
		}
		select {
		case client.send <- raw:
		default:
		}
	}
}

// WSClient is one websocket connection.
type WSClient struct {
	id   string
	hub  *WSHub
	conn *websocket.Conn
	send chan []byte

	mu         sync.Mutex
	subscribed map[string]bool
}

func (c *WSClient) wants(kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed["*"] || c.subscribed[kind]
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin admits pages served from this machine and non-browser clients
// that send no Origin header at all.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

var wsHub *WSHub

// InitWebSocket starts the global hub and returns the upgrade handler.
func InitWebSocket() http.HandlerFunc {
	wsHub = NewWSHub()
	go wsHub.Run()
	return handleWebSocket
}

// BroadcastEvent pushes a tray event through the global hub. It is a no-op
// until InitWebSocket has run.
func BroadcastEvent(ev Event) {
	if wsHub == nil {
		return
	}
	wsHub.BroadcastEvent(ev)
}

// BroadcastStatus pushes a fresh status snapshot to every connected client.
func BroadcastStatus() {
	if wsHub == nil {
		return
	}
	payload, err := json.Marshal(currentStatus())
	if err != nil {
		return
	}
	raw, err := json.Marshal(WSMessage{Type: "status", Payload: payload})
	if err != nil {
		return
	}
	select {
	case wsHub.broadcast <- raw:
	default:
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(logging.CatWebSocket, "Upgrade failed", map[string]any{
			"error":  err.Error(),
			"remote": r.RemoteAddr,
		})
		return
	}

	client := &WSClient{
		id:         uuid.NewString(),
		hub:        wsHub,
		conn:       conn,
		send:       make(chan []byte, 256),
		subscribed: make(map[string]bool),
	}
	wsHub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug(logging.CatWebSocket, "Read error", map[string]any{
					"id":    c.id,
					"error": err.Error(),
				})
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", fmt.Sprintf("invalid message: %v", err))
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "status":
		c.handleStatus(msg.ID)
	case "version":
		c.handleVersion(msg.ID)
	case "health":
		c.handleHealth(msg.ID)
	case "backends":
		c.handleBackends(msg.ID)
	case "logs":
		c.handleLogs(msg.ID, msg.Payload)
	case "subscribe":
		c.handleSubscribe(msg.ID, msg.Payload)
	case "unsubscribe":
		c.handleUnsubscribe(msg.ID, msg.Payload)
	default:
		c.sendError(msg.ID, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *WSClient) handleStatus(id string) {
	c.sendResponse(id, "status", currentStatus())
}

func (c *WSClient) handleVersion(id string) {
	c.sendResponse(id, "version", versionPayload())
}

func (c *WSClient) handleHealth(id string) {
	c.sendResponse(id, "health", healthPayload())
}

func (c *WSClient) handleBackends(id string) {
	c.sendResponse(id, "backends", backend.Available())
}

type logsRequest struct {
	Count int    `json:"count"`
	Level string `json:"level"`
}

func (c *WSClient) handleLogs(id string, payload json.RawMessage) {
	req := logsRequest{Count: 100}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			c.sendError(id, fmt.Sprintf("invalid payload: %v", err))
			return
		}
	}

	var minLevel *logging.Level
	if req.Level != "" {
		lv := logging.ParseLevel(req.Level)
		minLevel = &lv
	}
	c.sendResponse(id, "logs", logging.Get().GetEntries(req.Count, minLevel, nil))
}

type subscribeRequest struct {
	Events []string `json:"events"`
}

// handleSubscribe registers interest in pushed tray events. An empty list
// subscribes to everything.
func (c *WSClient) handleSubscribe(id string, payload json.RawMessage) {
	var req subscribeRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			c.sendError(id, fmt.Sprintf("invalid payload: %v", err))
			return
		}
	}

	c.mu.Lock()
	if len(req.Events) == 0 {
		c.subscribed["*"] = true
	} else {
		for _, kind := range req.Events {
			c.subscribed[kind] = true
		}
	}
	c.mu.Unlock()

	c.sendResponse(id, "subscribed", req.Events)
}

// handleUnsubscribe drops interest in pushed events. An empty list clears
// the whole subscription.
func (c *WSClient) handleUnsubscribe(id string, payload json.RawMessage) {
	var req subscribeRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			c.sendError(id, fmt.Sprintf("invalid payload: %v", err))
			return
		}
	}

	c.mu.Lock()
	if len(req.Events) == 0 {
		for kind := range c.subscribed {
			delete(c.subscribed, kind)
		}
	} else {
		for _, kind := range req.Events {
			delete(c.subscribed, kind)
		}
	}
	c.mu.Unlock()

	c.sendResponse(id, "unsubscribed", req.Events)
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.sendError(id, fmt.Sprintf("failed to encode response: %v", err))
		return
	}
	raw, err := json.Marshal(WSMessage{Type: msgType, ID: id, Payload: data})
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
		// Slow consumer, drop rather than block the handler.
	}
}

func (c *WSClient) sendError(id, errMsg string) {
	raw, err := json.Marshal(WSMessage{Type: "error", ID: id, Error: errMsg})
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

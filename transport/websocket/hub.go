package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Outbound messages buffered per client before it is dropped
	sendBuffer = 256
)

// Outbound event names
const (
	EventFrame        = "frame"
	EventState        = "state"
	EventZoneLabel    = "zone_label"
	EventProgress     = "progress"
	EventToast        = "toast"
	EventToastDismiss = "toast_dismiss"
	EventOverlayOpen  = "overlay_open"
	EventOverlayClose = "overlay_close"
	EventSceneAdd     = "scene_add"
	EventSceneRemove  = "scene_remove"
	EventError        = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is an outbound WebSocket message
type Message struct {
	SessionID string      `json:"session_id"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
}

// ClientMessage is an inbound WebSocket message. Type is one of "keys",
// "close_overlay", "pause", "resume" or "reset".
type ClientMessage struct {
	Type      string   `json:"type"`
	Pressed   []string `json:"pressed,omitempty"`
	OverlayID string   `json:"overlay_id,omitempty"`
}

// CommandHandler applies an inbound message to a session
type CommandHandler func(sessionID string, msg ClientMessage) error

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub maintains the set of active clients and broadcasts messages. Broadcasts
// never block: a client whose buffer is full is dropped.
type Hub struct {
	mu sync.RWMutex

	// Registered clients by session ID
	sessions map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	onCommand CommandHandler
	logger    zerolog.Logger
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithCommandHandler sets the handler for inbound client messages
func WithCommandHandler(fn CommandHandler) HubOption {
	return func(h *Hub) { h.onCommand = fn }
}

// WithLogger sets the hub logger
func WithLogger(logger zerolog.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

// NewHub creates a new WebSocket hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetCommandHandler replaces the inbound message handler. It exists for
// wiring orders where the hub is built before the service.
func (h *Hub) SetCommandHandler(fn CommandHandler) {
	h.mu.Lock()
	h.onCommand = fn
	h.mu.Unlock()
}

// Run processes register and unregister requests until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.done:
			h.mu.Lock()
			for id, clients := range h.sessions {
				for client := range clients {
					close(client.send)
				}
				delete(h.sessions, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ServeWS upgrades the request and attaches the connection to a session
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		sessionID: sessionID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastEvent sends an event to all clients of a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	if h.ClientCount(sessionID) == 0 {
		return
	}

	payload, err := json.Marshal(&Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to marshal websocket message")
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.sessions[sessionID] {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn().Str("session", sessionID).Msg("dropping slow websocket client")
		h.unregisterClient(client)
	}
}

// ClientCount returns the number of clients attached to a session
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	h.logger.Debug().
		Str("session", client.sessionID).
		Int("clients", len(h.sessions[client.sessionID])).
		Msg("client registered")
}

// unregisterClient removes a client from a session and closes its send
// channel. Unregistering twice is a no-op.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)

	// Clean up empty sessions
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}

	h.logger.Debug().
		Str("session", client.sessionID).
		Int("clients", len(clients)).
		Msg("client unregistered")
}

func (h *Hub) handleCommand(client *Client, msg ClientMessage) {
	h.mu.RLock()
	handler := h.onCommand
	h.mu.RUnlock()

	if handler == nil {
		return
	}
	if err := handler(client.sessionID, msg); err != nil {
		h.logger.Debug().Err(err).Str("session", client.sessionID).Str("type", msg.Type).Msg("command rejected")
		h.sendTo(client, EventError, map[string]string{"type": msg.Type, "error": err.Error()})
	}
}

// sendTo queues a message for a single client
func (h *Hub) sendTo(client *Client, event string, data interface{}) {
	payload, err := json.Marshal(&Message{SessionID: client.sessionID, Event: event, Data: data})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.sessions[client.sessionID][client] {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// readPump decodes client messages and hands them to the command handler
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("session", c.sessionID).Msg("websocket error")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.sendTo(c, EventError, map[string]string{"error": "malformed message"})
			continue
		}
		c.hub.handleCommand(c, msg)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
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
				// The hub closed the channel
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

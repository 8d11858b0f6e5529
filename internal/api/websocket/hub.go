// Package websocket fans orchestrator.Event values out to connected
// dashboard clients. The hub itself is event-agnostic; Server pumps
// one orchestrator.Orchestrator subscription into it via Broadcast.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connected dashboard websocket.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
	log  zerolog.Logger
}

// Hub maintains the set of active clients and fans out broadcasts.
type Hub struct {
	log        zerolog.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log.With().Str("component", "ws_hub").Logger(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run pumps register/unregister/broadcast; intended to run in its own
// goroutine for the life of the server.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.ID).Msg("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.ID).Msg("websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast fans an orchestrator event out to every connected client.
func (h *Hub) Broadcast(evt orchestrator.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn().Msg("broadcast channel full, event dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.Send)
		client.Conn.Close()
		delete(h.clients, client)
	}
}

// HandleConnection upgrades the request and registers a new client,
// sending a metrics snapshot immediately so the dashboard has
// something to render before the next periodic EventMetrics tick.
func HandleConnection(c echo.Context, hub *Hub, orch *orchestrator.Orchestrator, log zerolog.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return err
	}

	client := &Client{
		ID:   c.Request().RemoteAddr,
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  hub,
		log:  log,
	}
	hub.register <- client

	if orch != nil {
		snapshot := orchestrator.Event{Kind: orchestrator.EventMetrics, Data: orch.Metrics()}
		if data, err := json.Marshal(snapshot); err == nil {
			client.Send <- data
		}
	}

	go client.writePump()
	go client.readPump()

	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("websocket read error")
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.log.Error().Err(err).Msg("websocket write error")
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// handleMessage answers the one client-initiated message this
// read-only dashboard protocol supports: a keepalive ping.
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.Debug().Err(err).Msg("failed to parse websocket message")
		return
	}
	if msg.Type != "ping" {
		return
	}
	pong, _ := json.Marshal(map[string]string{"type": "pong"})
	select {
	case c.Send <- pong:
	default:
	}
}

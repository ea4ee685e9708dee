package notify

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiendatec/chat-platform/internal/agents"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

// EventType identifies a conversation event pushed to operator screens.
type EventType string

const (
	EventCustomerMessage      EventType = "customer_message"
	EventAgentMessage         EventType = "agent_message"
	EventConversationWaiting  EventType = "conversation_waiting"
	EventConversationAssigned EventType = "conversation_assigned"
	EventConversationResolved EventType = "conversation_resolved"
)

// Event is one websocket push. StoreID and ZoneID scope delivery: sellers and
// managers only receive events for their store, zone supervisors for their
// zone, the regional manager receives all.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	CustomerID     string    `json:"customer_id,omitempty"`
	StoreID        string    `json:"store_id,omitempty"`
	ZoneID         string    `json:"zone_id,omitempty"`
	AgentID        string    `json:"agent_id,omitempty"`
	Body           string    `json:"body,omitempty"`
	At             time.Time `json:"at"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	agentID string
	role    agents.Role
	storeID string
	zoneID  string
}

// Hub keeps the set of connected operator screens and routes events to the
// ones allowed to see them.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	clients    map[*client]struct{}
	logger     *logging.Logger
	done       chan struct{}
}

// NewHub creates a hub and starts its routing loop.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		clients:    make(map[*client]struct{}),
		logger:     logger,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Broadcast queues an event for delivery; it never blocks the caller.
func (h *Hub) Broadcast(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("notify hub backlog full, dropping event", "type", event.Type)
	}
}

// Close stops the routing loop and disconnects every client.
func (h *Hub) Close() {
	close(h.done)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to encode event", "error", err)
				continue
			}
			for c := range h.clients {
				if !c.wantsEvent(event) {
					continue
				}
				select {
				case c.send <- data:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (c *client) wantsEvent(event Event) bool {
	switch c.role {
	case agents.RoleRegionalManager:
		return true
	case agents.RoleZoneSupervisor:
		return event.ZoneID == "" || event.ZoneID == c.zoneID
	default:
		return event.StoreID == "" || event.StoreID == c.storeID
	}
}

// ServeWS upgrades the request and attaches the operator screen to the hub.
// The caller resolves the agent before handing over the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, agent agents.Agent) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		agentID: agent.ID,
		role:    agent.Role,
		storeID: agent.StoreID,
		zoneID:  agent.ZoneID,
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Operator screens only listen; any read error ends the session.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

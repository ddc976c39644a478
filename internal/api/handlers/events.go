package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	// events buffered per client before that client starts dropping
	clientBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHub fans refresh events out to websocket clients.
// It implements contracts.EventSink, so the pipeline publishes into it directly.
// ⭐ SSOT: refresh event stream
type EventHub struct {
	mu      sync.RWMutex
	clients map[*eventClient]struct{}
	closed  bool
	logger  *logger.Logger
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *eventClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewEventHub creates an empty hub
func NewEventHub(log *logger.Logger) *EventHub {
	return &EventHub{
		clients: make(map[*eventClient]struct{}),
		logger:  log.WithComponent("event_hub"),
	}
}

// Publish implements contracts.EventSink; slow clients miss events instead of blocking the pipeline
func (h *EventHub) Publish(event contracts.RefreshEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to encode refresh event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.WithField("remote", c.conn.RemoteAddr().String()).Debug("Client buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client goes away
// GET /ws/events
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	c := &eventClient{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", conn.RemoteAddr().String()).Info("Event client connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *EventHub) remove(c *eventClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readLoop discards client messages and returns once the connection drops
func (h *EventHub) readLoop(c *eventClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.WithField("remote", c.conn.RemoteAddr().String()).Info("Event client disconnected")
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writeLoop(c *eventClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

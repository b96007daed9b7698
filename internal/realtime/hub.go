package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub tracks the websocket sessions of this process, keyed by user id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Client is one websocket session.
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

// Register attaches a new session for userID.
func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	c := &Client{hub: h, userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.attach(c)
	return c
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	logrus.WithField("userID", c.userID).Debug("Websocket session registered")
}

// Unregister detaches c and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[c.userID]; ok {
		if _, exists := conns[c]; exists {
			delete(conns, c)
			c.once.Do(func() { close(c.send) })
		}
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// Online reports whether userID has at least one session here.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Emit delivers the event to local sessions only.
func (h *Hub) Emit(_ context.Context, event string, recipients []primitive.ObjectID, payload interface{}) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}
	h.Deliver(hexIDs(recipients), data)
}

// Deliver queues data for every session of the recipients. A session whose queue is
// full misses the frame rather than stalling the sender.
func (h *Hub) Deliver(recipients []string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range recipients {
		for c := range h.clients[userID] {
			select {
			case c.send <- data:
			default:
				logrus.WithField("userID", userID).Warn("Dropping event for slow websocket client")
			}
		}
	}
}

// WritePump forwards queued frames to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// ReadLoop calls handle for every frame the peer sends until it goes away.
// The session is unregistered on return.
func (c *Client) ReadLoop(handle func(raw []byte)) {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("userID", c.userID).Debug("Websocket closed unexpectedly")
			}
			return
		}
		handle(raw)
	}
}

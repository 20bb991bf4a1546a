package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/probuildhq/probuild/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10

	sendBufferSize = 32
)

// Event is the payload pushed to connected notification subscribers.
type Event struct {
	Event          string `json:"event"`
	Notification   any    `json:"notification,omitempty"`
	NotificationID string `json:"notification_id,omitempty"`
	Sound          Sound  `json:"sound,omitempty"`
}

// Hub fans notification events out to each user's open connections.
// Delivery is best effort: a slow consumer is disconnected rather than
// allowed to block everyone else.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a notification hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// The API is token-authenticated; origin checks stay permissive
				// so native and dev clients can connect.
				return true
			},
		},
		log: logger.WithModule("notifications.hub"),
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers the subscriber.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		hub:    h,
		socket: conn,
		userID: userID,
		send:   make(chan Event, sendBufferSize),
	}

	h.add(cl)
	go cl.writeLoop()
	cl.readLoop()
}

// Broadcast delivers an event to every open connection of the user.
// A send failure never propagates to the caller.
func (h *Hub) Broadcast(userID string, event Event) {
	if userID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for cl := range h.clients[userID] {
		select {
		case cl.send <- event:
		default:
			h.log.Debug("dropping slow notification subscriber", zap.String("user_id", userID))
			cl.closeAsync()
		}
	}
}

// ConnectionCount reports how many sockets a user currently has open.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[cl.userID] == nil {
		h.clients[cl.userID] = make(map[*client]struct{})
	}
	h.clients[cl.userID][cl] = struct{}{}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients := h.clients[cl.userID]; clients != nil {
		delete(clients, cl)
		if len(clients) == 0 {
			delete(h.clients, cl.userID)
		}
	}
}

type client struct {
	hub    *Hub
	socket *websocket.Conn
	userID string
	send   chan Event
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		c.hub.remove(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func (c *client) closeAsync() {
	go c.close()
}

func (c *client) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Inbound frames are only keepalives; drain until the peer goes away.
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luckyblock/crash/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // browser clients connect from the game frontend origin
	},
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans round snapshots out to websocket subscribers. New
// subscribers get the current snapshot immediately on connect.
type Hub struct {
	log *zap.Logger

	// Current supplies the full snapshot for late joiners.
	Current func() models.RoundSnapshot

	mu      sync.RWMutex
	clients map[*client]bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		log:     logger,
		clients: make(map[*client]bool),
	}
}

// Publish sends a snapshot to every subscriber. Clients that fail to
// write are dropped.
func (h *Hub) Publish(snap models.RoundSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.log.Error("marshal snapshot failed", zap.Error(err))
		return
	}

	var dead []*client
	h.mu.RLock()
	for c := range h.clients {
		if err := c.write(data); err != nil {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			delete(h.clients, c)
			c.conn.Close()
		}
		h.mu.Unlock()
	}
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle upgrades the request and keeps the connection registered until
// the peer goes away.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	if h.Current != nil {
		if data, err := json.Marshal(h.Current()); err == nil {
			_ = c.write(data)
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	conn.Close()
}

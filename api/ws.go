package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"goldclose/logger"
	"goldclose/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboard runs on a different port during development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans decision records out to connected websocket clients
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	events  chan *store.DecisionRecord
}

// NewHub creates an empty broadcast hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan *store.DecisionRecord, 64),
	}
}

// Publish queues a decision for broadcast; drops when the buffer is full
// rather than blocking the trading loop
func (h *Hub) Publish(record *store.DecisionRecord) {
	select {
	case h.events <- record:
	default:
		logger.Warn("⚠️ Decision event buffer full, dropping broadcast")
	}
}

// Run broadcasts queued events until the context is canceled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case record := <-h.events:
			h.broadcast(record)
		}
	}
}

// HandleWS upgrades the connection and registers the client
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("⚠️ Websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	logger.Debugf("websocket client connected (%d total)", h.clientCount())

	// drain reads so pings and close frames are processed
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) broadcast(record *store.DecisionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(record); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.clients, conn)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

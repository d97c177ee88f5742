package system

import (
	"encoding/json"
	"sync"

	"go-pipeline/internal/board"

	"go.uber.org/zap"
)

const clientBuffer = 16

type hubMessage struct {
	Type         string              `json:"type"`
	Board        *board.Board        `json:"board,omitempty"`
	Notification *board.Notification `json:"notification,omitempty"`
}

type client struct {
	send chan []byte
}

// Hub fans board snapshots and notifications out to every connected websocket.
// A client that cannot keep up is disconnected instead of blocking the board.
type Hub struct {
	logger *zap.Logger

	mu        sync.Mutex
	clients   map[*client]struct{}
	last      []byte
	lastBoard uint64
	seen      bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// BoardChanged implements board.Listener. Snapshots older than the last one sent
// are skipped.
func (h *Hub) BoardChanged(b board.Board) {
	data, err := json.Marshal(hubMessage{Type: "board", Board: &b})
	if err != nil {
		h.logger.Error("Failed to encode board", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seen && b.Version < h.lastBoard {
		return
	}
	h.seen = true
	h.lastBoard = b.Version
	h.last = data
	h.broadcastLocked(data)
}

// Notify implements board.Notifier.
func (h *Hub) Notify(n board.Notification) {
	data, err := json.Marshal(hubMessage{Type: "notification", Notification: &n})
	if err != nil {
		h.logger.Error("Failed to encode notification", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(data)
}

// register adds a client and queues the latest board for it.
func (h *Hub) register() *client {
	c := &client{send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// LastVersion reports the version of the newest board sent to clients, if any.
func (h *Hub) LastVersion() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastBoard, h.seen
}

func (h *Hub) broadcastLocked(data []byte) {
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow websocket client")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

package ws

import (
	"context"
	"sync"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	applogger "FinScore/pkg/logger"
)

// Message is one frame sent to subscribers.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

const (
	MessageTypeLifecycle = "lifecycle"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// Hub fans lifecycle events out to connected websocket clients.
// A client whose send buffer is full is dropped rather than slowing the publisher.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *applogger.Logger
}

var _ domrepo.LifecyclePublisher = (*Hub)(nil)

func NewHub(l *applogger.Logger) *Hub {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        l.With(applogger.String("component", "ws_hub")),
	}
}

// Run serves registrations and broadcasts until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("websocket client connected", applogger.Int("total_clients", n))
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.log.Warn("dropping slow websocket client")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("websocket client disconnected", applogger.Int("total_clients", n))
}

func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishLifecycleEvent queues ev for broadcast. It never blocks; a full queue drops the event.
func (h *Hub) PublishLifecycleEvent(_ context.Context, ev models.LifecycleEvent) error {
	select {
	case h.broadcast <- Message{Type: MessageTypeLifecycle, Data: ev}:
	default:
		h.log.Warn("lifecycle broadcast queue full, event dropped", applogger.String("model_key", ev.ModelKey))
	}
	return nil
}

package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tagboard/internal/infrastructure"
)

// Broadcast message types understood by the dashboard frontend.
const (
	TypeConnection      = "connection"
	TypeDatasetReloaded = "dataset:reloaded"
	TypeError           = "error"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}

	logger  *slog.Logger
	metrics *infrastructure.Metrics
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Start runs the hub loop in its own goroutine. Safe to call more than once.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop terminates the hub loop and disconnects all clients.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.setConnectionGauge(0)
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.setConnectionGauge(count)

			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count),
			)

			h.greet(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.setConnectionGauge(count)

			h.logger.Info("client unregistered",
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)),
				slog.Int("total_clients", count),
			)

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
					h.countMessage("out")
				default:
					// Slow client, drop it rather than blocking the hub.
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
					h.mu.Unlock()
					h.logger.Warn("client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
		}
	}
}

// greet sends the connection acknowledgement to a newly registered client.
func (h *Hub) greet(client *Client) {
	msg := map[string]interface{}{
		"type": TypeConnection,
		"data": map[string]interface{}{
			"status":    "connected",
			"client_id": client.id,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case client.send <- jsonData:
		h.countMessage("out")
	default:
		h.logger.Warn("could not send connection message, client buffer full",
			slog.String("client_id", client.id))
	}
}

// BroadcastDatasetReloaded notifies all dashboards that the dataset changed
// so they refetch their views.
func (h *Hub) BroadcastDatasetReloaded(rows, tags int) {
	h.broadcastJSON(map[string]interface{}{
		"type": TypeDatasetReloaded,
		"data": map[string]interface{}{
			"rows": rows,
			"tags": tags,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// BroadcastError sends an error frame, used when a dataset reload fails.
func (h *Hub) BroadcastError(message string) {
	h.broadcastJSON(map[string]interface{}{
		"type": TypeError,
		"data": map[string]interface{}{
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Hub) broadcastJSON(message map[string]interface{}) {
	jsonData, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("error marshaling broadcast message",
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- jsonData:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) setConnectionGauge(count int) {
	if h.metrics != nil {
		h.metrics.WSConnections.Set(float64(count))
	}
}

func (h *Hub) countMessage(direction string) {
	if h.metrics != nil {
		h.metrics.WSMessages.WithLabelValues(direction).Inc()
	}
}

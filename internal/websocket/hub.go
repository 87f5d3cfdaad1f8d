package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/infrastructure"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/events"
)

const (
	// broadcastQueue bounds pending broadcasts; Publish drops when full.
	broadcastQueue = 256

	// clientQueue is each client's outbound buffer.
	clientQueue = 256
)

// Publisher is what the analysis service needs from the hub.
type Publisher interface {
	Publish(ctx context.Context, msgType events.MessageType, data interface{})
}

// HubStats are cumulative hub counters for the health endpoint.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
	SlowClients      int64 `json:"slow_clients_disconnected"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	settings config.WebSocketConfig
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
	slowClients      atomic.Int64
}

// NewHub creates a hub. metrics may be nil.
func NewHub(settings config.WebSocketConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		settings:   withDefaults(settings),
		metrics:    metrics,
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
	}
}

// withDefaults fills zero settings so a hub built from an empty config
// still pings and times out.
func withDefaults(s config.WebSocketConfig) config.WebSocketConfig {
	if s.PongWait <= 0 {
		s.PongWait = config.WebSocketPongWait
	}
	if s.PingPeriod <= 0 || s.PingPeriod >= s.PongWait {
		s.PingPeriod = (s.PongWait * 9) / 10
	}
	if s.WriteWait <= 0 {
		s.WriteWait = 10 * time.Second
	}
	if s.MaxMessageSize <= 0 {
		s.MaxMessageSize = 512
	}
	return s
}

// Start runs the hub loop in a goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)

			ctx := client.context()
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))
			if h.metrics != nil {
				h.metrics.WebSocketClients.Add(ctx, 1)
			}

			greeting := events.NewMessage(events.MessageTypeConnection, client.traceID, events.ConnectionData{
				Status:   "connected",
				ClientID: client.id,
				Message:  "Connected to FLIPR analysis",
			})
			if data, err := json.Marshal(greeting); err == nil {
				select {
				case client.send <- data:
				default:
					h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				ctx := client.context()
				h.logger.InfoContext(ctx, "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
				if h.metrics != nil {
					h.metrics.WebSocketClients.Add(ctx, -1)
				}
			}

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// fanOut delivers one message; a client whose buffer is full is dropped
// rather than stalling every other client.
func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
			h.messagesSent.Add(1)
		default:
			close(client.send)
			delete(h.clients, client)
			h.slowClients.Add(1)
			h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
			if h.metrics != nil {
				h.metrics.WebSocketClients.Add(context.Background(), -1)
			}
		}
	}
}

// Publish marshals an event and queues it for every client. It never
// blocks: when the hub is stopped or the queue is full the event is
// dropped.
func (h *Hub) Publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	h.Broadcast(ctx, events.NewMessage(msgType, infrastructure.GetTraceID(ctx), data))
}

// Broadcast queues a prepared message.
func (h *Hub) Broadcast(ctx context.Context, msg events.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(msg.Type)))
		return
	}

	select {
	case <-h.quit:
		h.messagesDropped.Add(1)
		return
	default:
	}

	select {
	case h.broadcast <- payload:
		if h.metrics != nil {
			h.metrics.WebSocketMessages.Add(ctx, 1,
				metric.WithAttributes(attribute.String("type", string(msg.Type))))
		}
	default:
		h.messagesDropped.Add(1)
		h.logger.WarnContext(ctx, "Broadcast queue full, dropping message",
			slog.String("message_type", string(msg.Type)))
	}
}

// Register adds a client to the hub. Returns false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client. Safe to call after Stop.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
		SlowClients:      h.slowClients.Load(),
	}
}

// Stop ends the hub loop and closes every client's send channel, which
// makes the write pumps send a close frame.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

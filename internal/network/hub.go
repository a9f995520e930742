package network

import (
	"context"
	"sync"
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/events"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/config"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/logger"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/metrics"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	ctrl     Controller
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	tuning   *config.Tuning
}

// NewHub initializes a new WebSocket Hub. A nil tuning picks the defaults.
func NewHub(ctrl Controller, eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector, tuning *config.Tuning) *Hub {
	if tuning == nil {
		tuning = config.DefaultTuning()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		broadcast:  make(chan []byte, tuning.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		ctrl:       ctrl,
		eventLog:   eventLog,
		logger:     log,
		metrics:    m,
		tuning:     tuning,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.tuning.MaxClients > 0 && len(h.clients) >= h.tuning.MaxClients {
				h.mu.Unlock()
				h.logger.Warn("Rejecting websocket client: hub full", "max_clients", h.tuning.MaxClients)
				client.close()
				continue
			}
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("New websocket client connected", "clients", count)
			if msg, err := snapshotMessage(h.ctrl); err == nil {
				client.enqueue(msg)
			}
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.enqueue(message) {
					delete(h.clients, client)
					client.close()
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
					h.logger.Warn("Dropping slow websocket client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues message for every client. It gives up once the hub has
// stopped.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
		h.metrics.RecordWSMessage(false)
	case <-h.done:
	}
}

// BroadcastEvent serializes a GameEvent and sends it to all connected clients.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	payload, err := eventMessage(event)
	if err != nil {
		h.logger.Errorf("Failed to serialize GameEvent for websocket broadcast: %v", err)
		return
	}
	h.Broadcast(payload)
}

// BroadcastSnapshot sends the current state to all connected clients.
func (h *Hub) BroadcastSnapshot() {
	payload, err := snapshotMessage(h.ctrl)
	if err != nil {
		h.logger.Errorf("Failed to serialize snapshot for websocket broadcast: %v", err)
		return
	}
	h.Broadcast(payload)
}

// StartEventPoller spawns a goroutine that tails the EventLog and pushes new
// events to the Hub, followed by one fresh snapshot per batch. The hub runs
// independently from the engine's lock this way.
func (h *Hub) StartEventPoller(ctx context.Context) {
	go func() {
		interval := h.tuning.PollInterval
		if interval <= 0 {
			interval = 200 * time.Millisecond
		}
		pollInterval := time.NewTicker(interval)
		defer pollInterval.Stop()

		_, offset := h.eventLog.Since(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				var batch []events.GameEvent
				batch, offset = h.eventLog.Since(offset)
				if len(batch) == 0 {
					continue
				}
				for _, event := range batch {
					h.BroadcastEvent(event)
				}
				h.BroadcastSnapshot()
			}
		}
	}()
}

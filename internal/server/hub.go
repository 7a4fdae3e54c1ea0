package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/baddbeatz/streamcast/internal/config"
	"github.com/baddbeatz/streamcast/internal/coordinator"
)

// wireEvent is one frame pushed to control clients.
type wireEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// wireName maps coordinator events to their WebSocket names.
var wireName = map[coordinator.EventType]string{
	coordinator.EventConnected:         "obs-connected",
	coordinator.EventDisconnected:      "obs-disconnected",
	coordinator.EventStreamStarted:     "stream-started",
	coordinator.EventStreamStopped:     "stream-stopped",
	coordinator.EventBPMUpdated:        "bpm-updated",
	coordinator.EventTrackUpdated:      "track-updated",
	coordinator.EventSceneChanged:      "scene-changed",
	coordinator.EventPlatformConnected: "platform-connected",
	coordinator.EventError:             "error",
}

func encodeEvent(ev coordinator.Event) ([]byte, bool) {
	name, ok := wireName[ev.Type]
	if !ok {
		return nil, false
	}
	frame := wireEvent{Event: name}
	switch ev.Type {
	case coordinator.EventBPMUpdated:
		frame.Data = ev.BPM
	case coordinator.EventTrackUpdated:
		frame.Data = ev.Track
	case coordinator.EventSceneChanged:
		frame.Data = ev.Scene
	case coordinator.EventPlatformConnected:
		frame.Data = ev.Platform
	case coordinator.EventError:
		frame.Data = ev.Message
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Hub fans coordinator events out to every connected control client.
// Broadcast preserves emission order for all clients equally.
type Hub struct {
	cfg config.WebSocketConfig
	log zerolog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(cfg config.WebSocketConfig, log zerolog.Logger) *Hub {
	return &Hub{
		cfg:        cfg,
		log:        log.With().Str("component", "hub").Logger(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[string]*Client),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.id).Msg("control client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.id).Msg("control client disconnected")

		case data := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow client: skip this frame rather than stall the fan-out.
					h.log.Warn().Str("client_id", client.id).Msg("client buffer full, dropping frame")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues one frame for every connected client.
func (h *Hub) Broadcast(frame wireEvent) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("unencodable broadcast frame")
		return
	}
	h.broadcast <- data
}

// BroadcastRaw queues pre-encoded bytes for every connected client.
func (h *Hub) BroadcastRaw(data []byte) {
	h.broadcast <- data
}

// ClientCount returns the number of connected control clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

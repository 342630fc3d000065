package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/metrics"
)

// Roster resolves workspace membership for broadcast targeting. Implemented
// by the presence session registry; attached after construction because the
// registry in turn broadcasts through the hub.
type Roster interface {
	Members(workspaceID uuid.UUID) []uuid.UUID
}

// Hub holds all live connections on this instance and delivers presence
// events to workspace members.
type Hub struct {
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	roster  Roster
}

func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		metrics: m,
		logger:  logger,
		clients: make(map[uuid.UUID]*Client),
	}
}

// SetRoster attaches the workspace membership source.
func (h *Hub) SetRoster(r Roster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roster = r
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

func (h *Hub) remove(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[connID]; ok {
		delete(h.clients, connID)
		c.close()
	}
}

// Get returns the client for a connection ID, if still connected.
func (h *Hub) Get(connID uuid.UUID) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// ClientCount returns the number of live connections on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastPresence delivers a presence update to every local connection
// joined to the workspace. Remote instances receive it through the Redis
// fan-out alongside this local delivery.
func (h *Hub) BroadcastPresence(ctx context.Context, evt domain.PresenceUpdate) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal presence update", zap.Error(err))
		return
	}
	h.deliver(evt.WorkspaceID, payload)
}

func (h *Hub) deliver(workspaceID uuid.UUID, payload []byte) {
	h.mu.RLock()
	roster := h.roster
	h.mu.RUnlock()
	if roster == nil {
		return
	}

	delivered := 0
	for _, connID := range roster.Members(workspaceID) {
		if c, ok := h.Get(connID); ok {
			c.Send(payload)
			delivered++
		}
	}
	if delivered > 0 && h.metrics != nil {
		h.metrics.PresenceBroadcasts.Inc()
	}
}

// CloseAll tears down every live connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID, c := range h.clients {
		delete(h.clients, connID)
		c.close()
	}
}

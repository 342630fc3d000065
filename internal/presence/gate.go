package presence

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

// TokenValidator is the external authentication collaborator consulted before
// a connection is admitted.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

// ConnectionGate admits or rejects new socket connections. It owns the
// per-user connection slot counter; a slot is taken on admission and handed
// back only after the reconnection grace window following disconnect.
type ConnectionGate struct {
	validator  TokenValidator
	maxPerUser int
	logger     *zap.Logger

	mu    sync.Mutex
	slots map[uuid.UUID]int       // admitted slots, including grace-held ones
	live  map[uuid.UUID]int       // currently connected sockets
	conns map[uuid.UUID]uuid.UUID // connectionID -> userID
}

func NewConnectionGate(validator TokenValidator, maxPerUser int, logger *zap.Logger) *ConnectionGate {
	return &ConnectionGate{
		validator:  validator,
		maxPerUser: maxPerUser,
		logger:     logger,
		slots:      make(map[uuid.UUID]int),
		live:       make(map[uuid.UUID]int),
		conns:      make(map[uuid.UUID]uuid.UUID),
	}
}

// Authenticate resolves the user behind a token. Failure is terminal for the
// attempted connection; the caller must close it.
func (g *ConnectionGate) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, domain.ErrAuthenticationFailed
	}
	userID, err := g.validator.ValidateToken(ctx, token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	return userID, nil
}

// Admit registers an authenticated connection. When reclaimed is true the
// user reconnected inside the grace window and reuses the slot that was
// pending release, so the counter is not incremented again.
func (g *ConnectionGate) Admit(connID, userID uuid.UUID, reclaimed bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !reclaimed {
		if g.slots[userID] >= g.maxPerUser {
			g.logger.Warn("connection limit exceeded",
				zap.String("user_id", userID.String()),
				zap.Int("limit", g.maxPerUser))
			return domain.ErrTooManyConnections
		}
		g.slots[userID]++
	}
	g.live[userID]++
	g.conns[connID] = userID
	return nil
}

// Disconnected removes a live connection. It reports the owning user and
// whether this was the user's last live connection. The slot itself stays
// taken until the reconnection window releases it.
func (g *ConnectionGate) Disconnected(connID uuid.UUID) (uuid.UUID, bool, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	userID, ok := g.conns[connID]
	if !ok {
		return uuid.Nil, false, false
	}
	delete(g.conns, connID)

	g.live[userID]--
	if g.live[userID] <= 0 {
		delete(g.live, userID)
		return userID, true, true
	}
	return userID, false, true
}

// ReleaseSlot hands a connection slot back, floored at zero. Called by the
// reconnection window when the grace period expires unclaimed.
func (g *ConnectionGate) ReleaseSlot(userID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.slots[userID] > 0 {
		g.slots[userID]--
	}
	if g.slots[userID] <= 0 {
		delete(g.slots, userID)
	}
}

// Lookup resolves the user owning a live connection. A miss means the
// connection already disconnected; in-flight work for it must become a no-op.
func (g *ConnectionGate) Lookup(connID uuid.UUID) (uuid.UUID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	userID, ok := g.conns[connID]
	return userID, ok
}

// SlotCount returns the number of slots currently held by a user, including
// slots held open by the reconnection window.
func (g *ConnectionGate) SlotCount(userID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.slots[userID]
}

// LiveCount returns the number of currently connected sockets for a user.
func (g *ConnectionGate) LiveCount(userID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live[userID]
}

// TotalLive returns the number of live connections across all users.
func (g *ConnectionGate) TotalLive() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

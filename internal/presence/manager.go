package presence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/metrics"
)

// WorkspaceAuthorizer is the external authorization collaborator that decides
// whether a user may join a workspace. The check may complete asynchronously
// relative to other connection events.
type WorkspaceAuthorizer interface {
	CanAccess(ctx context.Context, userID, workspaceID uuid.UUID) error
}

// Manager ties the gate, registry, tracker and reconnection window together
// behind the event boundary the transport layer drives. Registries are owned
// here, created at service start and injected into handlers, never ambient.
type Manager struct {
	gate     *ConnectionGate
	registry *WorkspaceSessionRegistry
	tracker  *PresenceTracker
	window   *ReconnectionWindow
	access   WorkspaceAuthorizer
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewManager(
	gate *ConnectionGate,
	registry *WorkspaceSessionRegistry,
	tracker *PresenceTracker,
	window *ReconnectionWindow,
	access WorkspaceAuthorizer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		gate:     gate,
		registry: registry,
		tracker:  tracker,
		window:   window,
		access:   access,
		metrics:  m,
		logger:   logger,
	}
}

// Connect authenticates and admits a new connection. On error the caller
// must deliver the error event and close the socket; both failures are
// terminal for the attempted connection.
func (m *Manager) Connect(ctx context.Context, connID uuid.UUID, token string) (uuid.UUID, error) {
	userID, err := m.gate.Authenticate(ctx, token)
	if err != nil {
		if m.metrics != nil {
			m.metrics.ConnectionsRejected.WithLabelValues(domain.ErrCodeAuthenticationFailed).Inc()
		}
		return uuid.Nil, err
	}

	// A reconnect inside the grace window reuses the slot whose release is
	// still pending instead of taking a new one.
	reclaimed := m.window.Cancel(userID)
	if err := m.gate.Admit(connID, userID, reclaimed); err != nil {
		if m.metrics != nil {
			m.metrics.ConnectionsRejected.WithLabelValues(domain.ErrCodeTooManyConnections).Inc()
		}
		return uuid.Nil, err
	}

	m.tracker.Connected(ctx, userID)

	if m.metrics != nil {
		m.metrics.ConnectionsAdmitted.Inc()
		m.metrics.ActiveConnections.Set(float64(m.gate.TotalLive()))
	}
	m.logger.Info("connection admitted",
		zap.String("connection_id", connID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("reclaimed_slot", reclaimed))
	return userID, nil
}

// Join runs the external access check and, if the connection is still alive
// when it resolves, records workspace membership. A join that resolves after
// disconnect is silently a no-op, not an error.
func (m *Manager) Join(ctx context.Context, connID, workspaceID uuid.UUID) error {
	userID, ok := m.gate.Lookup(connID)
	if !ok {
		return nil
	}

	if err := m.access.CanAccess(ctx, userID, workspaceID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWorkspaceAccessDenied, err)
	}

	// The access check awaited above; the connection may have disconnected
	// in the meantime. Re-check before touching any membership state.
	if _, stillAlive := m.gate.Lookup(connID); !stillAlive {
		m.logger.Debug("join resolved after disconnect, dropping",
			zap.String("connection_id", connID.String()),
			zap.String("workspace_id", workspaceID.String()))
		return nil
	}

	m.registry.Join(ctx, workspaceID, connID, userID)
	m.tracker.SetCurrentWorkspace(userID, workspaceID)
	m.tracker.RecordActivity(ctx, userID)
	return nil
}

// Leave removes the connection from a workspace.
func (m *Manager) Leave(ctx context.Context, connID, workspaceID uuid.UUID) {
	userID, ok := m.gate.Lookup(connID)
	if !ok {
		return
	}
	m.registry.Leave(ctx, workspaceID, connID, userID)
	m.tracker.RecordActivity(ctx, userID)
}

// Activity refreshes the user's presence on any inbound frame.
func (m *Manager) Activity(ctx context.Context, connID uuid.UUID) {
	if userID, ok := m.gate.Lookup(connID); ok {
		m.tracker.RecordActivity(ctx, userID)
	}
}

// Disconnect evicts the connection from all workspaces, conditionally marks
// the user offline, and defers the slot release by the grace window. The user
// goes offline only when their last live connection is gone; a user with two
// tabs keeps their status when one closes.
func (m *Manager) Disconnect(ctx context.Context, connID uuid.UUID) {
	userID, lastLive, ok := m.gate.Disconnected(connID)
	if !ok {
		return
	}

	m.registry.CleanupOnDisconnect(ctx, connID, userID)

	if lastLive {
		m.tracker.MarkOffline(ctx, userID)
	}
	m.window.ScheduleRelease(userID)

	if m.metrics != nil {
		m.metrics.ActiveConnections.Set(float64(m.gate.TotalLive()))
	}
	m.logger.Info("connection closed",
		zap.String("connection_id", connID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("last_live", lastLive))
}

// SweepIdle demotes idle users to away. Driven by the cron scheduler in
// production; tests call it directly under a fake clock.
func (m *Manager) SweepIdle(ctx context.Context) {
	demoted := m.tracker.SweepIdle(ctx)
	if m.metrics != nil {
		m.metrics.IdleSweepDemotions.Add(float64(demoted))
	}
}

// Registry exposes the session registry for read-side consumers.
func (m *Manager) Registry() *WorkspaceSessionRegistry { return m.registry }

// Tracker exposes the presence tracker for read-side consumers.
func (m *Manager) Tracker() *PresenceTracker { return m.tracker }

// Shutdown cancels outstanding reconnection timers.
func (m *Manager) Shutdown() {
	m.window.Stop()
}

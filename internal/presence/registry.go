package presence

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

// WorkspaceSessionRegistry tracks which connections are joined to which
// workspaces. Workspace entries are created on first join and garbage
// collected when their member set empties.
type WorkspaceSessionRegistry struct {
	broadcaster Broadcaster
	clock       Clock
	alive       func(connID uuid.UUID) bool
	logger      *zap.Logger

	mu         sync.Mutex
	workspaces map[uuid.UUID]map[uuid.UUID]uuid.UUID // workspaceID -> connID -> userID
	byConn     map[uuid.UUID]map[uuid.UUID]bool      // connID -> set of workspaceIDs
}

// NewWorkspaceSessionRegistry builds a registry. alive reports whether a
// connection is still registered with the gate; a nil alive skips the check.
func NewWorkspaceSessionRegistry(broadcaster Broadcaster, clock Clock, alive func(connID uuid.UUID) bool, logger *zap.Logger) *WorkspaceSessionRegistry {
	return &WorkspaceSessionRegistry{
		broadcaster: broadcaster,
		clock:       clock,
		alive:       alive,
		logger:      logger,
		workspaces:  make(map[uuid.UUID]map[uuid.UUID]uuid.UUID),
		byConn:      make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

// Join adds a connection to a workspace's member set and announces the user
// as online to the workspace. The caller must already have verified workspace
// access; access decisions are not this component's concern.
func (r *WorkspaceSessionRegistry) Join(ctx context.Context, workspaceID, connID, userID uuid.UUID) {
	r.mu.Lock()
	// Liveness check and insert share the lock: a join racing a disconnect
	// either lands before the cleanup scan or finds the connection gone.
	if r.alive != nil && !r.alive(connID) {
		r.mu.Unlock()
		r.logger.Debug("join for disconnected connection dropped",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("connection_id", connID.String()))
		return
	}
	members, ok := r.workspaces[workspaceID]
	if !ok {
		members = make(map[uuid.UUID]uuid.UUID)
		r.workspaces[workspaceID] = members
	}
	if _, already := members[connID]; already {
		r.mu.Unlock()
		return
	}
	members[connID] = userID
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[uuid.UUID]bool)
	}
	r.byConn[connID][workspaceID] = true
	now := r.clock.Now()
	r.mu.Unlock()

	r.logger.Debug("connection joined workspace",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("connection_id", connID.String()),
		zap.String("user_id", userID.String()))

	r.broadcaster.BroadcastPresence(ctx, domain.NewPresenceUpdate(userID, workspaceID, domain.PresenceOnline, now))
}

// Leave removes a connection from a workspace. Calling it twice for the same
// pair is a no-op the second time. The offline announcement is suppressed
// while the user still has another connection joined to the same workspace,
// so closing one of two tabs does not flicker the user offline.
func (r *WorkspaceSessionRegistry) Leave(ctx context.Context, workspaceID, connID, userID uuid.UUID) {
	r.mu.Lock()
	members, ok := r.workspaces[workspaceID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, present := members[connID]; !present {
		r.mu.Unlock()
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.workspaces, workspaceID)
	}
	if set := r.byConn[connID]; set != nil {
		delete(set, workspaceID)
		if len(set) == 0 {
			delete(r.byConn, connID)
		}
	}

	userStillPresent := false
	for _, owner := range members {
		if owner == userID {
			userStillPresent = true
			break
		}
	}
	now := r.clock.Now()
	r.mu.Unlock()

	r.logger.Debug("connection left workspace",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("connection_id", connID.String()),
		zap.String("user_id", userID.String()))

	if !userStillPresent {
		r.broadcaster.BroadcastPresence(ctx, domain.NewPresenceUpdate(userID, workspaceID, domain.PresenceOffline, now))
	}
}

// CleanupOnDisconnect evicts a connection from every workspace it joined.
func (r *WorkspaceSessionRegistry) CleanupOnDisconnect(ctx context.Context, connID, userID uuid.UUID) {
	r.mu.Lock()
	var joined []uuid.UUID
	for workspaceID := range r.byConn[connID] {
		joined = append(joined, workspaceID)
	}
	r.mu.Unlock()

	for _, workspaceID := range joined {
		r.Leave(ctx, workspaceID, connID, userID)
	}
}

// Members returns the connection IDs currently joined to a workspace.
func (r *WorkspaceSessionRegistry) Members(workspaceID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.workspaces[workspaceID]
	out := make([]uuid.UUID, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}

// Users returns the distinct users currently joined to a workspace.
func (r *WorkspaceSessionRegistry) Users(workspaceID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, userID := range r.workspaces[workspaceID] {
		if !seen[userID] {
			seen[userID] = true
			out = append(out, userID)
		}
	}
	return out
}

// WorkspacesForUser returns the workspaces a user is currently joined to
// through any of their connections.
func (r *WorkspaceSessionRegistry) WorkspacesForUser(userID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uuid.UUID
	for workspaceID, members := range r.workspaces {
		for _, owner := range members {
			if owner == userID {
				out = append(out, workspaceID)
				break
			}
		}
	}
	return out
}

// Contains reports whether a connection is joined to a workspace.
func (r *WorkspaceSessionRegistry) Contains(workspaceID, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.workspaces[workspaceID]
	if !ok {
		return false
	}
	_, present := members[connID]
	return present
}

// WorkspaceCount returns the number of workspaces with at least one member.
func (r *WorkspaceSessionRegistry) WorkspaceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

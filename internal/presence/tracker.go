package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

// Store persists presence transitions so REST queries survive restarts.
// Writes are best effort; a failure is logged and never blocks a transition.
type Store interface {
	SetStatus(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus, at time.Time) error
}

// Roster resolves the workspaces a user is currently joined to, used to
// target away/online announcements. Implemented by WorkspaceSessionRegistry.
type Roster interface {
	WorkspacesForUser(userID uuid.UUID) []uuid.UUID
}

type presenceRecord struct {
	status           domain.PresenceStatus
	lastActivity     time.Time
	currentWorkspace uuid.UUID
}

// PresenceTracker maintains per-user presence status and demotes idle users
// to away on a periodic sweep. Status is keyed by user, not connection.
type PresenceTracker struct {
	clock       Clock
	store       Store
	broadcaster Broadcaster
	roster      Roster
	idleTimeout time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	records map[uuid.UUID]*presenceRecord
}

func NewPresenceTracker(
	clock Clock,
	store Store,
	broadcaster Broadcaster,
	roster Roster,
	idleTimeout time.Duration,
	logger *zap.Logger,
) *PresenceTracker {
	return &PresenceTracker{
		clock:       clock,
		store:       store,
		broadcaster: broadcaster,
		roster:      roster,
		idleTimeout: idleTimeout,
		logger:      logger,
		records:     make(map[uuid.UUID]*presenceRecord),
	}
}

// Connected records a user coming online through a new connection. The
// online announcement to workspace members happens on workspace join, not
// here; a connection without a join is online but invisible.
func (t *PresenceTracker) Connected(ctx context.Context, userID uuid.UUID) {
	t.mu.Lock()
	now := t.clock.Now()
	rec, ok := t.records[userID]
	if !ok {
		rec = &presenceRecord{}
		t.records[userID] = rec
	}
	rec.status = domain.PresenceOnline
	rec.lastActivity = now
	t.mu.Unlock()

	t.persist(ctx, userID, uuid.Nil, domain.PresenceOnline, now)
}

// RecordActivity refreshes the user's activity timestamp. Called on every
// inbound frame, heartbeat or application message alike. An away user is
// promoted back to online and announced to their workspaces.
func (t *PresenceTracker) RecordActivity(ctx context.Context, userID uuid.UUID) {
	t.mu.Lock()
	rec, ok := t.records[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	rec.lastActivity = now
	promoted := rec.status == domain.PresenceAway
	if promoted {
		rec.status = domain.PresenceOnline
	}
	workspace := rec.currentWorkspace
	t.mu.Unlock()

	if promoted {
		t.announce(ctx, userID, domain.PresenceOnline, now)
		t.persist(ctx, userID, workspace, domain.PresenceOnline, now)
	}
}

// SetCurrentWorkspace records the workspace a user most recently joined.
func (t *PresenceTracker) SetCurrentWorkspace(userID, workspaceID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[userID]; ok {
		rec.currentWorkspace = workspaceID
	}
}

// SweepIdle demotes online users whose last activity is older than the idle
// threshold. Users already away or offline are left untouched, so a user
// transitions at most once per idle period.
func (t *PresenceTracker) SweepIdle(ctx context.Context) int {
	now := t.clock.Now()
	cutoff := now.Add(-t.idleTimeout)

	t.mu.Lock()
	var idle []uuid.UUID
	for userID, rec := range t.records {
		if rec.status == domain.PresenceOnline && rec.lastActivity.Before(cutoff) {
			rec.status = domain.PresenceAway
			idle = append(idle, userID)
		}
	}
	t.mu.Unlock()

	for _, userID := range idle {
		t.logger.Debug("user idle, marking away", zap.String("user_id", userID.String()))
		t.announce(ctx, userID, domain.PresenceAway, now)
		t.persist(ctx, userID, uuid.Nil, domain.PresenceAway, now)
	}
	return len(idle)
}

// MarkOffline sets the user offline unconditionally. The caller is
// responsible for invoking it only once the user's last live connection has
// disconnected; workspace-scoped offline announcements are the registry's job.
func (t *PresenceTracker) MarkOffline(ctx context.Context, userID uuid.UUID) {
	t.mu.Lock()
	now := t.clock.Now()
	rec, ok := t.records[userID]
	if ok {
		rec.status = domain.PresenceOffline
		rec.lastActivity = now
	}
	t.mu.Unlock()

	if ok {
		t.persist(ctx, userID, uuid.Nil, domain.PresenceOffline, now)
	}
}

// Status returns the user's current status, or offline if untracked.
func (t *PresenceTracker) Status(userID uuid.UUID) domain.PresenceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[userID]; ok {
		return rec.status
	}
	return domain.PresenceOffline
}

// LastActivity returns the user's last activity timestamp and whether the
// user is tracked at all.
func (t *PresenceTracker) LastActivity(userID uuid.UUID) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[userID]; ok {
		return rec.lastActivity, true
	}
	return time.Time{}, false
}

// OnlineUsers returns tracked users whose status is not offline.
func (t *PresenceTracker) OnlineUsers() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []uuid.UUID
	for userID, rec := range t.records {
		if rec.status != domain.PresenceOffline {
			out = append(out, userID)
		}
	}
	return out
}

func (t *PresenceTracker) announce(ctx context.Context, userID uuid.UUID, status domain.PresenceStatus, at time.Time) {
	for _, workspaceID := range t.roster.WorkspacesForUser(userID) {
		t.broadcaster.BroadcastPresence(ctx, domain.NewPresenceUpdate(userID, workspaceID, status, at))
	}
}

func (t *PresenceTracker) persist(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus, at time.Time) {
	if t.store == nil {
		return
	}
	if err := t.store.SetStatus(ctx, userID, workspaceID, status, at); err != nil {
		t.logger.Error("failed to persist presence status",
			zap.String("user_id", userID.String()),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

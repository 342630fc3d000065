package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

const testIdleTimeout = 5 * time.Minute

func newTestTracker(roster Roster, store Store) (*PresenceTracker, *RecordingBroadcaster, *FakeClock) {
	broadcaster := &RecordingBroadcaster{}
	clock := NewFakeClock(time.Unix(1700000000, 0))
	tracker := NewPresenceTracker(clock, store, broadcaster, roster, testIdleTimeout, zap.NewNop())
	return tracker, broadcaster, clock
}

func TestTracker_ConnectedSetsOnline(t *testing.T) {
	tracker, _, clock := newTestTracker(staticRoster{}, nil)
	ctx := context.Background()
	userID := uuid.New()

	assert.Equal(t, domain.PresenceOffline, tracker.Status(userID))

	tracker.Connected(ctx, userID)
	assert.Equal(t, domain.PresenceOnline, tracker.Status(userID))

	last, ok := tracker.LastActivity(userID)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), last)
}

func TestTracker_RecordActivityIgnoresUntrackedUser(t *testing.T) {
	tracker, broadcaster, _ := newTestTracker(staticRoster{}, nil)

	tracker.RecordActivity(context.Background(), uuid.New())

	assert.Empty(t, broadcaster.Events())
	assert.Empty(t, tracker.OnlineUsers())
}

func TestTracker_SweepIdleDemotesExactlyOnce(t *testing.T) {
	userID := uuid.New()
	workspaceID := uuid.New()
	tracker, broadcaster, clock := newTestTracker(staticRoster{userID: {workspaceID}}, nil)
	ctx := context.Background()

	tracker.Connected(ctx, userID)

	clock.Advance(testIdleTimeout + time.Second)
	assert.Equal(t, 1, tracker.SweepIdle(ctx))
	assert.Equal(t, domain.PresenceAway, tracker.Status(userID))
	assert.Equal(t, 1, broadcaster.Count(userID, domain.PresenceAway))

	// Already away; later sweeps must not re-announce.
	clock.Advance(testIdleTimeout)
	assert.Equal(t, 0, tracker.SweepIdle(ctx))
	assert.Equal(t, 1, broadcaster.Count(userID, domain.PresenceAway))
}

func TestTracker_SweepIdleSparesActiveUsers(t *testing.T) {
	active, idle := uuid.New(), uuid.New()
	tracker, _, clock := newTestTracker(staticRoster{}, nil)
	ctx := context.Background()

	tracker.Connected(ctx, active)
	tracker.Connected(ctx, idle)

	clock.Advance(testIdleTimeout - time.Second)
	tracker.RecordActivity(ctx, active)
	clock.Advance(2 * time.Second)

	assert.Equal(t, 1, tracker.SweepIdle(ctx))
	assert.Equal(t, domain.PresenceOnline, tracker.Status(active))
	assert.Equal(t, domain.PresenceAway, tracker.Status(idle))
}

func TestTracker_SweepIdleThresholdIsExclusive(t *testing.T) {
	tracker, _, clock := newTestTracker(staticRoster{}, nil)
	ctx := context.Background()
	userID := uuid.New()

	tracker.Connected(ctx, userID)

	// Exactly at the threshold the user is not yet idle.
	clock.Advance(testIdleTimeout)
	assert.Equal(t, 0, tracker.SweepIdle(ctx))
	assert.Equal(t, domain.PresenceOnline, tracker.Status(userID))
}

func TestTracker_ActivityPromotesAwayUser(t *testing.T) {
	userID := uuid.New()
	workspaceID := uuid.New()
	stored := make([]domain.PresenceStatus, 0, 4)
	store := &MockStore{
		SetStatusFunc: func(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus, at time.Time) error {
			stored = append(stored, status)
			return nil
		},
	}
	tracker, broadcaster, clock := newTestTracker(staticRoster{userID: {workspaceID}}, store)
	ctx := context.Background()

	tracker.Connected(ctx, userID)
	clock.Advance(testIdleTimeout + time.Second)
	require.Equal(t, 1, tracker.SweepIdle(ctx))
	broadcaster.Reset()

	tracker.RecordActivity(ctx, userID)

	assert.Equal(t, domain.PresenceOnline, tracker.Status(userID))
	assert.Equal(t, 1, broadcaster.Count(userID, domain.PresenceOnline))
	assert.Contains(t, stored, domain.PresenceOnline)

	// Further activity while already online stays silent.
	tracker.RecordActivity(ctx, userID)
	assert.Equal(t, 1, broadcaster.Count(userID, domain.PresenceOnline))
}

func TestTracker_MarkOffline(t *testing.T) {
	tracker, broadcaster, _ := newTestTracker(staticRoster{}, nil)
	ctx := context.Background()
	userID := uuid.New()

	tracker.Connected(ctx, userID)
	tracker.MarkOffline(ctx, userID)

	assert.Equal(t, domain.PresenceOffline, tracker.Status(userID))
	// Workspace-scoped offline announcements are the registry's job.
	assert.Equal(t, 0, broadcaster.Count(userID, domain.PresenceOffline))
	assert.Empty(t, tracker.OnlineUsers())
}

func TestTracker_StoreFailureDoesNotBlockTransition(t *testing.T) {
	store := &MockStore{
		SetStatusFunc: func(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus, at time.Time) error {
			return errors.New("connection refused")
		},
	}
	broadcaster := &RecordingBroadcaster{}
	clock := NewFakeClock(time.Unix(1700000000, 0))
	tracker := NewPresenceTracker(clock, store, broadcaster, staticRoster{}, testIdleTimeout, zap.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	tracker.Connected(ctx, userID)
	assert.Equal(t, domain.PresenceOnline, tracker.Status(userID))
}

func TestTracker_OnlineUsers(t *testing.T) {
	tracker, _, clock := newTestTracker(staticRoster{}, nil)
	ctx := context.Background()
	online, away, offline := uuid.New(), uuid.New(), uuid.New()

	tracker.Connected(ctx, away)
	clock.Advance(testIdleTimeout + time.Second)
	tracker.Connected(ctx, online)
	tracker.Connected(ctx, offline)
	tracker.SweepIdle(ctx)
	tracker.MarkOffline(ctx, offline)

	assert.ElementsMatch(t, []uuid.UUID{online, away}, tracker.OnlineUsers())
}

package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"presence-service/internal/domain"
)

// MockTokenValidator is a mock implementation of TokenValidator.
type MockTokenValidator struct {
	ValidateTokenFunc func(ctx context.Context, token string) (uuid.UUID, error)
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, token)
	}
	return uuid.Nil, nil
}

// MockWorkspaceAuthorizer is a mock implementation of WorkspaceAuthorizer.
type MockWorkspaceAuthorizer struct {
	CanAccessFunc func(ctx context.Context, userID, workspaceID uuid.UUID) error
}

func (m *MockWorkspaceAuthorizer) CanAccess(ctx context.Context, userID, workspaceID uuid.UUID) error {
	if m.CanAccessFunc != nil {
		return m.CanAccessFunc(ctx, userID, workspaceID)
	}
	return nil
}

// MockStore is a mock implementation of Store.
type MockStore struct {
	SetStatusFunc func(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus, at time.Time) error
}

func (m *MockStore) SetStatus(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus, at time.Time) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, userID, workspaceID, status, at)
	}
	return nil
}

// RecordingBroadcaster collects every presence update it is asked to deliver.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []domain.PresenceUpdate
}

func (b *RecordingBroadcaster) BroadcastPresence(ctx context.Context, evt domain.PresenceUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *RecordingBroadcaster) Events() []domain.PresenceUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.PresenceUpdate, len(b.events))
	copy(out, b.events)
	return out
}

func (b *RecordingBroadcaster) Count(userID uuid.UUID, status domain.PresenceStatus) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, evt := range b.events {
		if evt.UserID == userID && evt.Status == status {
			n++
		}
	}
	return n
}

func (b *RecordingBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// staticRoster maps users to fixed workspace lists.
type staticRoster map[uuid.UUID][]uuid.UUID

func (r staticRoster) WorkspacesForUser(userID uuid.UUID) []uuid.UUID {
	return r[userID]
}

package presence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

func newTestGate(t *testing.T, max int) *ConnectionGate {
	t.Helper()
	validator := &MockTokenValidator{
		ValidateTokenFunc: func(ctx context.Context, token string) (uuid.UUID, error) {
			if token == "bad" {
				return uuid.Nil, errors.New("signature mismatch")
			}
			return uuid.MustParse("11111111-1111-1111-1111-111111111111"), nil
		},
	}
	return NewConnectionGate(validator, max, zap.NewNop())
}

func TestConnectionGate_Authenticate(t *testing.T) {
	gate := newTestGate(t, 5)

	t.Run("valid token resolves user", func(t *testing.T) {
		userID, err := gate.Authenticate(context.Background(), "good")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, userID)
	})

	t.Run("invalid token fails with authentication error", func(t *testing.T) {
		_, err := gate.Authenticate(context.Background(), "bad")
		assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	})

	t.Run("empty token fails without hitting the validator", func(t *testing.T) {
		_, err := gate.Authenticate(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	})
}

func TestConnectionGate_AdmitEnforcesCap(t *testing.T) {
	gate := newTestGate(t, 5)
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, gate.Admit(uuid.New(), userID, false))
	}
	assert.Equal(t, 5, gate.SlotCount(userID))

	// Sixth connection must be rejected and leave the counter untouched.
	err := gate.Admit(uuid.New(), userID, false)
	assert.ErrorIs(t, err, domain.ErrTooManyConnections)
	assert.Equal(t, 5, gate.SlotCount(userID))
	assert.Equal(t, 5, gate.LiveCount(userID))
}

func TestConnectionGate_ReclaimedAdmitSkipsCounter(t *testing.T) {
	gate := newTestGate(t, 1)
	userID := uuid.New()
	first := uuid.New()

	require.NoError(t, gate.Admit(first, userID, false))
	_, lastLive, ok := gate.Disconnected(first)
	require.True(t, ok)
	assert.True(t, lastLive)

	// Slot still held; a plain admit would trip the cap of 1, a reclaimed
	// one reuses the held slot.
	require.NoError(t, gate.Admit(uuid.New(), userID, true))
	assert.Equal(t, 1, gate.SlotCount(userID))
	assert.Equal(t, 1, gate.LiveCount(userID))
}

func TestConnectionGate_DisconnectedReportsLastLive(t *testing.T) {
	gate := newTestGate(t, 5)
	userID := uuid.New()
	conn1, conn2 := uuid.New(), uuid.New()

	require.NoError(t, gate.Admit(conn1, userID, false))
	require.NoError(t, gate.Admit(conn2, userID, false))

	gotUser, lastLive, ok := gate.Disconnected(conn1)
	require.True(t, ok)
	assert.Equal(t, userID, gotUser)
	assert.False(t, lastLive, "one live connection remains")

	_, lastLive, ok = gate.Disconnected(conn2)
	require.True(t, ok)
	assert.True(t, lastLive)

	// Unknown connection is a no-op.
	_, _, ok = gate.Disconnected(conn1)
	assert.False(t, ok)
}

func TestConnectionGate_ReleaseSlotFlooredAtZero(t *testing.T) {
	gate := newTestGate(t, 5)
	userID := uuid.New()

	gate.ReleaseSlot(userID)
	assert.Equal(t, 0, gate.SlotCount(userID))

	require.NoError(t, gate.Admit(uuid.New(), userID, false))
	gate.ReleaseSlot(userID)
	gate.ReleaseSlot(userID)
	assert.Equal(t, 0, gate.SlotCount(userID))
}

func TestConnectionGate_Lookup(t *testing.T) {
	gate := newTestGate(t, 5)
	userID := uuid.New()
	connID := uuid.New()

	_, ok := gate.Lookup(connID)
	assert.False(t, ok)

	require.NoError(t, gate.Admit(connID, userID, false))
	got, ok := gate.Lookup(connID)
	require.True(t, ok)
	assert.Equal(t, userID, got)

	gate.Disconnected(connID)
	_, ok = gate.Lookup(connID)
	assert.False(t, ok)
}

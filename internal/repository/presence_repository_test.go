package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"presence-service/internal/domain"
)

func TestStatusColumns_WithWorkspace(t *testing.T) {
	updates, omitted := statusColumns(uuid.New())

	assert.Equal(t, []string{"status", "last_seen", "workspace_id"}, updates)
	assert.Empty(t, omitted)
}

func TestStatusColumns_WithoutWorkspace(t *testing.T) {
	updates, omitted := statusColumns(uuid.Nil)

	// No workspace recorded: the column stays NULL on insert and keeps its
	// previous value on conflict, never the zero UUID.
	assert.Equal(t, []string{"status", "last_seen"}, updates)
	assert.Equal(t, []string{"workspace_id"}, omitted)
}

func TestRepository_NoopsUntilDBAttaches(t *testing.T) {
	repo := NewPresenceRepository(nil)
	ctx := context.Background()

	assert.NoError(t, repo.SetStatus(ctx, uuid.New(), uuid.Nil, domain.PresenceOnline, time.Now()))

	_, err := repo.GetUserStatus(ctx, uuid.New())
	assert.Error(t, err)

	rows, err := repo.GetOnlineUsers(ctx, nil)
	assert.NoError(t, err)
	assert.Nil(t, rows)
}

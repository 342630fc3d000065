package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"presence-service/internal/domain"
)

// PresenceRepository persists presence rows. The database may attach after
// startup; until then every operation is a no-op so the in-memory core keeps
// working.
type PresenceRepository struct {
	db atomic.Pointer[gorm.DB]
}

func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	r := &PresenceRepository{}
	if db != nil {
		r.db.Store(db)
	}
	return r
}

// AttachDB swaps in a database connection that came up after startup.
func (r *PresenceRepository) AttachDB(db *gorm.DB) {
	r.db.Store(db)
}

// SetStatus upserts the user's presence row. A nil workspace ID keeps the
// previously recorded workspace on update and leaves the column NULL on
// insert, so a user who connected without joining has no phantom workspace.
func (r *PresenceRepository) SetStatus(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus, at time.Time) error {
	db := r.db.Load()
	if db == nil {
		return nil
	}

	updates, omitted := statusColumns(workspaceID)

	presence := &domain.UserPresence{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Status:      status,
		LastSeen:    at,
	}

	tx := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	})
	if len(omitted) > 0 {
		tx = tx.Omit(omitted...)
	}
	return tx.Create(presence).Error
}

// statusColumns returns the columns an upsert touches on conflict and the
// columns excluded from the insert entirely.
func statusColumns(workspaceID uuid.UUID) (updates, omitted []string) {
	updates = []string{"status", "last_seen"}
	if workspaceID == uuid.Nil {
		omitted = []string{"workspace_id"}
		return updates, omitted
	}
	updates = append(updates, "workspace_id")
	return updates, nil
}

// GetUserStatus returns the persisted presence row for a user.
func (r *PresenceRepository) GetUserStatus(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error) {
	db := r.db.Load()
	if db == nil {
		return nil, gorm.ErrRecordNotFound
	}

	var presence domain.UserPresence
	if err := db.WithContext(ctx).First(&presence, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &presence, nil
}

// GetOnlineUsers returns non-offline users, optionally scoped to a workspace.
func (r *PresenceRepository) GetOnlineUsers(ctx context.Context, workspaceID *uuid.UUID) ([]domain.UserPresence, error) {
	db := r.db.Load()
	if db == nil {
		return nil, nil
	}

	query := db.WithContext(ctx).Where("status <> ?", domain.PresenceOffline)
	if workspaceID != nil {
		query = query.Where("workspace_id = ?", workspaceID)
	}

	var presences []domain.UserPresence
	err := query.Find(&presences).Error
	return presences, err
}

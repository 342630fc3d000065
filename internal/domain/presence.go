package domain

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "ONLINE"
	PresenceAway    PresenceStatus = "AWAY"
	PresenceOffline PresenceStatus = "OFFLINE"
)

// UserPresence is the persisted presence row. The in-memory tracker is the
// source of truth while the service is running; this table backs REST queries
// and survives restarts.
type UserPresence struct {
	UserID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"userId"`
	WorkspaceID uuid.UUID      `gorm:"type:uuid;index:idx_workspace_status" json:"workspaceId"`
	Status      PresenceStatus `gorm:"type:varchar(20);default:'OFFLINE';index:idx_workspace_status" json:"status"`
	LastSeen    time.Time      `json:"lastSeen"`
}

func (UserPresence) TableName() string {
	return "user_presence"
}

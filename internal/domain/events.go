package domain

import (
	"time"

	"github.com/google/uuid"
)

// Inbound WebSocket message types.
const (
	EventWorkspaceJoin  = "workspace.join"
	EventWorkspaceLeave = "workspace.leave"
)

// Outbound WebSocket message types.
const (
	EventPresenceUpdate = "presence.update"
	EventError          = "error"
)

// ClientMessage is the envelope for inbound WebSocket messages. Any inbound
// frame, whatever its type, counts as activity for the sending user.
type ClientMessage struct {
	Type        string `json:"type"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// PresenceUpdate is broadcast to every connection currently joined to the
// workspace when a member's status changes.
type PresenceUpdate struct {
	Type        string         `json:"type"`
	UserID      uuid.UUID      `json:"userId"`
	WorkspaceID uuid.UUID      `json:"workspaceId"`
	Status      PresenceStatus `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
}

func NewPresenceUpdate(userID, workspaceID uuid.UUID, status PresenceStatus, at time.Time) PresenceUpdate {
	return PresenceUpdate{
		Type:        EventPresenceUpdate,
		UserID:      userID,
		WorkspaceID: workspaceID,
		Status:      status,
		Timestamp:   at,
	}
}

// ErrorMessage is delivered to the originating connection only.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) ErrorMessage {
	return ErrorMessage{Type: EventError, Code: code, Message: message}
}

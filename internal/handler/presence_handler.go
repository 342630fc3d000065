package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/presence"
	"presence-service/internal/repository"
)

// PresenceHandler serves REST queries over the live presence state. The
// in-memory tracker is authoritative while the service runs; the repository
// answers for users this instance has never seen.
type PresenceHandler struct {
	manager *presence.Manager
	repo    *repository.PresenceRepository
	logger  *zap.Logger
}

func NewPresenceHandler(manager *presence.Manager, repo *repository.PresenceRepository, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		manager: manager,
		repo:    repo,
		logger:  logger,
	}
}

type presenceEntry struct {
	UserID   uuid.UUID             `json:"userId"`
	Status   domain.PresenceStatus `json:"status"`
	LastSeen *time.Time            `json:"lastSeen,omitempty"`
}

// GetOnlineUsers godoc
// @Summary      List online users
// @Description  Returns non-offline users, optionally scoped to a workspace
// @Tags         presence
// @Param        workspaceId query string false "Workspace ID"
// @Success      200 {array} presenceEntry
// @Router       /online [get]
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	if wsIDStr := c.Query("workspaceId"); wsIDStr != "" {
		workspaceID, err := uuid.Parse(wsIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "BAD_REQUEST", "message": "Invalid workspace ID"},
			})
			return
		}
		c.JSON(http.StatusOK, h.workspaceRoster(workspaceID))
		return
	}

	tracker := h.manager.Tracker()
	users := tracker.OnlineUsers()
	out := make([]presenceEntry, 0, len(users))
	for _, userID := range users {
		entry := presenceEntry{UserID: userID, Status: tracker.Status(userID)}
		if at, ok := tracker.LastActivity(userID); ok {
			entry.LastSeen = &at
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

// GetWorkspaceRoster godoc
// @Summary      Workspace presence roster
// @Description  Returns the users currently joined to a workspace with status
// @Tags         presence
// @Param        workspaceId path string true "Workspace ID"
// @Success      200 {array} presenceEntry
// @Router       /workspace/{workspaceId} [get]
func (h *PresenceHandler) GetWorkspaceRoster(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "BAD_REQUEST", "message": "Invalid workspace ID"},
		})
		return
	}
	c.JSON(http.StatusOK, h.workspaceRoster(workspaceID))
}

// GetUserStatus godoc
// @Summary      User presence status
// @Tags         presence
// @Param        userId path string true "User ID"
// @Success      200 {object} presenceEntry
// @Failure      404 {object} map[string]string
// @Router       /status/{userId} [get]
func (h *PresenceHandler) GetUserStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "BAD_REQUEST", "message": "Invalid user ID"},
		})
		return
	}

	tracker := h.manager.Tracker()
	if at, tracked := tracker.LastActivity(userID); tracked {
		c.JSON(http.StatusOK, presenceEntry{
			UserID:   userID,
			Status:   tracker.Status(userID),
			LastSeen: &at,
		})
		return
	}

	// Not tracked on this instance; fall back to the persisted row.
	persisted, err := h.repo.GetUserStatus(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "NOT_FOUND", "message": "User presence not found"},
		})
		return
	}
	c.JSON(http.StatusOK, presenceEntry{
		UserID:   persisted.UserID,
		Status:   persisted.Status,
		LastSeen: &persisted.LastSeen,
	})
}

func (h *PresenceHandler) workspaceRoster(workspaceID uuid.UUID) []presenceEntry {
	tracker := h.manager.Tracker()
	users := h.manager.Registry().Users(workspaceID)
	out := make([]presenceEntry, 0, len(users))
	for _, userID := range users {
		entry := presenceEntry{UserID: userID, Status: tracker.Status(userID)}
		if at, ok := tracker.LastActivity(userID); ok {
			entry.LastSeen = &at
		}
		out = append(out, entry)
	}
	return out
}

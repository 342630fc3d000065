package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler terminates WebSocket connections and drives the presence core
// through the event boundary: connect, workspace.join, workspace.leave,
// activity and disconnect.
type Handler struct {
	hub     *Hub
	manager *presence.Manager
	logger  *zap.Logger
}

func NewHandler(hub *Hub, manager *presence.Manager, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, manager: manager, logger: logger}
}

// HandleWebSocket godoc
// @Summary      Presence WebSocket connection
// @Description  Connects a client to the workspace presence stream
// @Tags         websocket
// @Param        token query string true "JWT Access Token"
// @Success      101 {string} string "Switching Protocols"
// @Failure      400 {object} map[string]string
// @Router       /ws [get]
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	connID := uuid.New()
	client := NewClient(connID, uuid.Nil, conn, h.logger)

	// Admission runs after the upgrade so rejections surface as error events
	// on the socket. Both failure kinds are terminal for the connection.
	userID, err := h.manager.Connect(c.Request.Context(), connID, token)
	if err != nil {
		if werr := client.WriteJSONNow(domain.NewErrorMessage(domain.ErrorCode(err), err.Error())); werr != nil {
			h.logger.Debug("failed to deliver rejection frame",
				zap.String("connection_id", connID.String()),
				zap.Error(werr))
		}
		conn.Close()
		return
	}
	client.UserID = userID

	h.hub.add(client)
	go client.writePump()
	h.readLoop(client)
}

func (h *Handler) readLoop(client *Client) {
	defer func() {
		h.hub.remove(client.ID)
		h.manager.Disconnect(context.Background(), client.ID)
	}()

	client.readPump(func(message []byte) {
		h.dispatch(client, message)
	})
}

// dispatch routes one inbound frame. Every frame counts as activity; a panic
// in a handler is caught here and never takes the process down.
func (h *Handler) dispatch(client *Client, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic handling frame",
				zap.Any("panic", r),
				zap.String("connection_id", client.ID.String()))
		}
	}()

	ctx := context.Background()
	h.manager.Activity(ctx, client.ID)

	var msg domain.ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		// Unparseable frames still refreshed activity above.
		return
	}

	switch msg.Type {
	case domain.EventWorkspaceJoin:
		// The access check calls out to the workspace service; run it off the
		// read loop so a disconnect can interleave with a pending join.
		go h.handleJoin(client, msg)
	case domain.EventWorkspaceLeave:
		h.handleLeave(client, msg)
	default:
		// Heartbeats and unknown types are activity only.
	}
}

func (h *Handler) handleJoin(client *Client, msg domain.ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic handling join", zap.Any("panic", r))
		}
	}()

	workspaceID, err := uuid.Parse(msg.WorkspaceID)
	if err != nil {
		client.SendJSON(domain.NewErrorMessage(domain.ErrCodeWorkspaceJoinError, "invalid workspace id"))
		return
	}

	if err := h.manager.Join(context.Background(), client.ID, workspaceID); err != nil {
		// Terminal for this join attempt only; the connection stays open.
		client.SendJSON(domain.NewErrorMessage(domain.ErrCodeWorkspaceJoinError, err.Error()))
	}
}

func (h *Handler) handleLeave(client *Client, msg domain.ClientMessage) {
	workspaceID, err := uuid.Parse(msg.WorkspaceID)
	if err != nil {
		return
	}
	h.manager.Leave(context.Background(), client.ID, workspaceID)
}

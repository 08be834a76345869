package api

import (
	"context"
	"net/http"

	apperrors "paper-agent-chat/backend/pkg/errors"
	"paper-agent-chat/backend/session/service"

	"github.com/gin-gonic/gin"
)

// MessageWiper removes a session's messages ahead of a hard delete
type MessageWiper interface {
	DeleteAll(ctx context.Context, sessionID string) error
}

type SessionHandler struct {
	sessions *service.SessionService
	messages MessageWiper
}

func NewSessionHandler(sessions *service.SessionService, messages MessageWiper) *SessionHandler {
	return &SessionHandler{sessions: sessions, messages: messages}
}

type createSessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidArgumentError("INVALID_REQUEST", err.Error()))
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), req.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		_ = c.Error(apperrors.NewInvalidArgumentError("MISSING_USER_ID", "user_id is required"))
		return
	}

	sessions, err := h.sessions.ListActive(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

type renameRequest struct {
	Title string `json:"title"`
}

func (h *SessionHandler) RenameSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidArgumentError("INVALID_REQUEST", err.Error()))
		return
	}

	if err := h.sessions.Rename(c.Request.Context(), sessionID, req.Title); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SessionHandler) ArchiveSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.sessions.Archive(c.Request.Context(), sessionID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteSession hard-deletes a session: messages and parts first, then the
// session record itself.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("session_id")

	if _, err := h.sessions.Get(ctx, sessionID); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.messages.DeleteAll(ctx, sessionID); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.sessions.HardDelete(ctx, sessionID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

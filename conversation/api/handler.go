package api

import (
	"context"
	"net/http"

	"paper-agent-chat/backend/conversation/service"
	apperrors "paper-agent-chat/backend/pkg/errors"
	"paper-agent-chat/backend/session/models"

	"github.com/gin-gonic/gin"
)

// SessionGetter resolves a session or fails with a not-found error
type SessionGetter interface {
	Get(ctx context.Context, sessionID string) (*models.Session, error)
}

type HistoryHandler struct {
	messages *service.MessageService
	sessions SessionGetter
	// historyAfterArchive keeps archived sessions readable. Off, an
	// archived session's history reports not-found like a deleted one.
	historyAfterArchive bool
}

func NewHistoryHandler(messages *service.MessageService, sessions SessionGetter, historyAfterArchive bool) *HistoryHandler {
	return &HistoryHandler{
		messages:            messages,
		sessions:            sessions,
		historyAfterArchive: historyAfterArchive,
	}
}

func (h *HistoryHandler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("session_id")

	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !session.Active() && !h.historyAfterArchive {
		_ = c.Error(apperrors.NewNotFoundError("SESSION_NOT_FOUND", "session not found"))
		return
	}

	messages, err := h.messages.History(ctx, sessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// RegisterHistoryRoutes wires the message history endpoint
func RegisterHistoryRoutes(rg *gin.RouterGroup, handler *HistoryHandler) {
	rg.GET("/sessions/:session_id/messages", handler.GetHistory)
}

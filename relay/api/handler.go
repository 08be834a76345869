package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	convmodels "paper-agent-chat/backend/conversation/models"
	apperrors "paper-agent-chat/backend/pkg/errors"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/relay"
	"paper-agent-chat/backend/session/service"

	"github.com/gin-gonic/gin"
)

// MessageAppender persists the user turn before streaming starts
type MessageAppender interface {
	AppendText(ctx context.Context, sessionID, role, text string) error
}

// ChatHandler accepts one user turn and streams the agent's reply as SSE
type ChatHandler struct {
	engine   *relay.Engine
	sessions *service.SessionService
	messages MessageAppender
	guard    *relay.TurnGuard
	log      *logger.Logger
}

func NewChatHandler(engine *relay.Engine, sessions *service.SessionService, messages MessageAppender, guard *relay.TurnGuard, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		engine:   engine,
		sessions: sessions,
		messages: messages,
		guard:    guard,
		log:      log,
	}
}

type chatRequest struct {
	SessionID      string `json:"session_id" binding:"required"`
	Text           string `json:"text" binding:"required"`
	UsePublicPaper bool   `json:"use_public_paper"`
}

// Chat handles POST /chat. Admission errors surface as JSON before the
// response commits to streaming; after that, faults become inline error
// events on the stream.
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidArgumentError("INVALID_REQUEST", err.Error()))
		return
	}

	if _, err := h.sessions.CheckAdmission(ctx, req.SessionID); err != nil {
		_ = c.Error(err)
		return
	}

	// One turn at a time per session, so concurrent turns cannot
	// interleave persisted messages.
	if !h.guard.TryAcquire(req.SessionID) {
		_ = c.Error(apperrors.NewConflictError("TURN_IN_FLIGHT", "a turn is already in progress for this session"))
		return
	}
	defer h.guard.Release(req.SessionID)

	if err := h.messages.AppendText(ctx, req.SessionID, convmodels.RoleUser, req.Text); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.sessions.Touch(ctx, req.SessionID); err != nil {
		h.log.LogError(err, "failed to touch session", "session_id", req.SessionID)
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		_ = c.Error(apperrors.NewInternalServerError("STREAMING_UNSUPPORTED", "streaming unsupported"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(ev relay.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.engine.Stream(ctx, req.SessionID, req.Text, req.UsePublicPaper, emit); err != nil {
		// The stream already committed; nothing can be sent to the client
		// beyond what went out. Record the persistence failure.
		h.log.LogError(err, "turn persistence failed", "session_id", req.SessionID)
	}
}

// RegisterChatRoutes wires the streaming chat endpoint
func RegisterChatRoutes(rg *gin.RouterGroup, handler *ChatHandler) {
	rg.POST("/chat", handler.Chat)
}

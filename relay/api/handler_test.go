package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"paper-agent-chat/backend/agent"
	apperrors "paper-agent-chat/backend/pkg/errors"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/relay"
	"paper-agent-chat/backend/session/models"
	"paper-agent-chat/backend/session/service"
)

type fakeSessionRepo struct {
	sessions map[string]*models.Session
}

func (f *fakeSessionRepo) Create(_ context.Context, userID string) (*models.Session, error) {
	panic("not used")
}

func (f *fakeSessionRepo) GetBySessionID(_ context.Context, sessionID string) (*models.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionRepo) ListActive(_ context.Context, _ string) ([]models.Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) Touch(_ context.Context, sessionID string) error {
	if s, ok := f.sessions[sessionID]; ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeSessionRepo) SetTitle(_ context.Context, _, _ string) error { return nil }

func (f *fakeSessionRepo) Archive(_ context.Context, _ string) error { return nil }

func (f *fakeSessionRepo) HardDelete(_ context.Context, _ string) error { return nil }

type appendedMessage struct {
	role string
	text string
}

type fakeMessages struct {
	appended []appendedMessage
}

func (f *fakeMessages) AppendText(_ context.Context, _, role, text string) error {
	f.appended = append(f.appended, appendedMessage{role: role, text: text})
	return nil
}

type stubStreamer struct {
	events []agent.Event
}

func (s *stubStreamer) Stream(_ context.Context, _, _ string, _ bool) <-chan agent.Event {
	ch := make(chan agent.Event, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch
}

type nopTrigger struct{}

func (nopTrigger) Submit(string) {}

func newChatRouter(t *testing.T, events []agent.Event, guard *relay.TurnGuard) (*gin.Engine, *fakeMessages) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.Config{Level: "error"})
	repo := &fakeSessionRepo{sessions: map[string]*models.Session{
		"s-active": {SessionID: "s-active", UserID: "u-1", Status: models.StatusActive, Title: models.DefaultTitle},
		"s-gone":   {SessionID: "s-gone", UserID: "u-1", Status: models.StatusArchived, Title: models.DefaultTitle},
	}}
	sessions := service.NewSessionService(repo, nil, log)
	messages := &fakeMessages{}
	engine := relay.NewEngine(&stubStreamer{events: events}, messages, sessions, nopTrigger{}, relay.Options{ChunkSize: 64}, log)
	if guard == nil {
		guard = relay.NewTurnGuard()
	}
	handler := NewChatHandler(engine, sessions, messages, guard, log)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	RegisterChatRoutes(&r.RouterGroup, handler)
	return r, messages
}

func postChat(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatStreamsReply(t *testing.T) {
	r, messages := newChatRouter(t, []agent.Event{
		{Kind: agent.KindText, Content: "Mocked "},
		{Kind: agent.KindText, Content: "Agent "},
		{Kind: agent.KindText, Content: "Response"},
	}, nil)

	w := postChat(r, `{"session_id":"s-active","text":"hello"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"type":"text","content":"Mocked "}`)
	assert.Contains(t, body, `data: {"type":"text","content":"Response"}`)

	// User turn first, assistant turn after the stream ends.
	require.Len(t, messages.appended, 2)
	assert.Equal(t, appendedMessage{role: "user", text: "hello"}, messages.appended[0])
	assert.Equal(t, appendedMessage{role: "assistant", text: "Mocked Agent Response"}, messages.appended[1])
}

func TestChatMidStreamErrorStaysInStream(t *testing.T) {
	r, messages := newChatRouter(t, []agent.Event{
		{Kind: agent.KindText, Content: "Partial"},
		{Kind: agent.KindError, Content: "upstream died"},
	}, nil)

	w := postChat(r, `{"session_id":"s-active","text":"hello"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data: {"type":"text","content":"Partial"}`)
	assert.Contains(t, body, `data: {"type":"error","content":"upstream died"}`)

	require.Len(t, messages.appended, 2)
	assert.Equal(t, "Partial\n[Error: upstream died]", messages.appended[1].text)
}

func TestChatRejectsUnknownSession(t *testing.T) {
	r, messages := newChatRouter(t, nil, nil)

	w := postChat(r, `{"session_id":"missing","text":"hello"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_NOT_FOUND")
	assert.Empty(t, messages.appended)
}

func TestChatRejectsArchivedSession(t *testing.T) {
	r, messages := newChatRouter(t, nil, nil)

	w := postChat(r, `{"session_id":"s-gone","text":"hello"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_NOT_ACTIVE")
	assert.Empty(t, messages.appended)
}

func TestChatRejectsBadRequest(t *testing.T) {
	r, _ := newChatRouter(t, nil, nil)

	for _, body := range []string{``, `{}`, `{"session_id":"s-active"}`, `{"text":"hi"}`} {
		w := postChat(r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestChatRejectsConcurrentTurn(t *testing.T) {
	guard := relay.NewTurnGuard()
	require.True(t, guard.TryAcquire("s-active"))

	r, messages := newChatRouter(t, nil, guard)

	w := postChat(r, `{"session_id":"s-active","text":"hello"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "TURN_IN_FLIGHT")
	assert.Empty(t, messages.appended)

	// The rejected request must not have released the holder's slot.
	assert.False(t, guard.TryAcquire("s-active"))
}

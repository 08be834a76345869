package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "paper-agent-chat/backend/pkg/errors"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/session/models"
	"paper-agent-chat/backend/session/service"
)

type fakeSessionRepo struct {
	sessions map[string]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, userID string) (*models.Session, error) {
	s := &models.Session{
		SessionID: uuid.New().String(),
		UserID:    userID,
		Status:    models.StatusActive,
		Title:     models.DefaultTitle,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.sessions[s.SessionID] = s
	return s, nil
}

func (f *fakeSessionRepo) GetBySessionID(_ context.Context, sessionID string) (*models.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionRepo) ListActive(_ context.Context, userID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.Status == models.StatusActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) Touch(_ context.Context, sessionID string) error {
	if s, ok := f.sessions[sessionID]; ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeSessionRepo) SetTitle(_ context.Context, sessionID, title string) error {
	if s, ok := f.sessions[sessionID]; ok {
		s.Title = title
	}
	return nil
}

func (f *fakeSessionRepo) Archive(_ context.Context, sessionID string) error {
	if s, ok := f.sessions[sessionID]; ok {
		s.Status = models.StatusArchived
	}
	return nil
}

func (f *fakeSessionRepo) HardDelete(_ context.Context, sessionID string) error {
	delete(f.sessions, sessionID)
	return nil
}

type fakeWiper struct {
	wiped []string
}

func (f *fakeWiper) DeleteAll(_ context.Context, sessionID string) error {
	f.wiped = append(f.wiped, sessionID)
	return nil
}

func newSessionRouter(t *testing.T) (*gin.Engine, *fakeSessionRepo, *fakeWiper) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newFakeSessionRepo()
	wiper := &fakeWiper{}
	sessions := service.NewSessionService(repo, nil, logger.New(logger.Config{Level: "error"}))
	handler := NewSessionHandler(sessions, wiper)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	RegisterSessionRoutes(&r.RouterGroup, handler)
	return r, repo, wiper
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSessionEndpoint(t *testing.T) {
	r, repo, _ := newSessionRouter(t)

	w := doJSON(r, http.MethodPost, "/sessions", `{"user_id":"u-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got.SessionID)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, models.DefaultTitle, got.Title)
	assert.Len(t, repo.sessions, 1)
}

func TestCreateSessionRequiresUserID(t *testing.T) {
	r, _, _ := newSessionRouter(t)

	w := doJSON(r, http.MethodPost, "/sessions", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSessionsEndpoint(t *testing.T) {
	r, repo, _ := newSessionRouter(t)

	a, _ := repo.Create(context.Background(), "u-1")
	b, _ := repo.Create(context.Background(), "u-1")
	_, _ = repo.Create(context.Background(), "u-2")
	require.NoError(t, repo.Archive(context.Background(), b.SessionID))

	w := doJSON(r, http.MethodGet, "/sessions/list?user_id=u-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Sessions []models.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Sessions, 1)
	assert.Equal(t, a.SessionID, got.Sessions[0].SessionID)
}

func TestListSessionsRequiresUserID(t *testing.T) {
	r, _, _ := newSessionRouter(t)

	w := doJSON(r, http.MethodGet, "/sessions/list", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenameSessionEndpoint(t *testing.T) {
	r, repo, _ := newSessionRouter(t)
	s, _ := repo.Create(context.Background(), "u-1")

	w := doJSON(r, http.MethodPost, "/sessions/"+s.SessionID+"/rename", `{"title":"  reading notes "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reading notes", repo.sessions[s.SessionID].Title)
}

func TestRenameSessionRejectsBlankTitle(t *testing.T) {
	r, repo, _ := newSessionRouter(t)
	s, _ := repo.Create(context.Background(), "u-1")

	w := doJSON(r, http.MethodPost, "/sessions/"+s.SessionID+"/rename", `{"title":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "EMPTY_TITLE")
}

func TestRenameUnknownSession(t *testing.T) {
	r, _, _ := newSessionRouter(t)

	w := doJSON(r, http.MethodPost, "/sessions/nope/rename", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveSessionEndpoint(t *testing.T) {
	r, repo, _ := newSessionRouter(t)
	s, _ := repo.Create(context.Background(), "u-1")

	w := doJSON(r, http.MethodPost, "/sessions/"+s.SessionID+"/archive", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusArchived, repo.sessions[s.SessionID].Status)
}

func TestDeleteSessionEndpoint(t *testing.T) {
	r, repo, wiper := newSessionRouter(t)
	s, _ := repo.Create(context.Background(), "u-1")

	w := doJSON(r, http.MethodDelete, "/sessions/"+s.SessionID, "")
	require.Equal(t, http.StatusOK, w.Code)

	// Messages went first, then the session record.
	assert.Equal(t, []string{s.SessionID}, wiper.wiped)
	assert.NotContains(t, repo.sessions, s.SessionID)
}

func TestDeleteUnknownSession(t *testing.T) {
	r, _, wiper := newSessionRouter(t)

	w := doJSON(r, http.MethodDelete, "/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, wiper.wiped)
}

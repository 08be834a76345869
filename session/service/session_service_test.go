package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "paper-agent-chat/backend/pkg/errors"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/session/models"
)

// fakeSessionRepo is an in-memory stand-in for the gorm repository.
type fakeSessionRepo struct {
	sessions map[string]*models.Session
	listErr  error
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
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.Status == models.StatusActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) Touch(_ context.Context, sessionID string) error {
	s, ok := f.sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (f *fakeSessionRepo) SetTitle(_ context.Context, sessionID, title string) error {
	s, ok := f.sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Title = title
	return nil
}

func (f *fakeSessionRepo) Archive(_ context.Context, sessionID string) error {
	s, ok := f.sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = models.StatusArchived
	return nil
}

func (f *fakeSessionRepo) HardDelete(_ context.Context, sessionID string) error {
	if _, ok := f.sessions[sessionID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.sessions, sessionID)
	return nil
}

// countingCache records cache traffic for assertions.
type countingCache struct {
	store map[string][]byte
	hits  int
	sets  int
	dels  int
}

func newCountingCache() *countingCache {
	return &countingCache{store: make(map[string][]byte)}
}

func (c *countingCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.store[key]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *countingCache) Set(_ context.Context, key string, value []byte) {
	c.sets++
	c.store[key] = value
}

func (c *countingCache) Del(_ context.Context, key string) {
	c.dels++
	delete(c.store, key)
}

func newTestService(repo *fakeSessionRepo, cache ListCache) *SessionService {
	return NewSessionService(repo, cache, logger.New(logger.Config{Level: "error"}))
}

func TestCreateSession(t *testing.T) {
	svc := newTestService(newFakeSessionRepo(), nil)

	s, err := svc.Create(context.Background(), "u-1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, "u-1", s.UserID)
	assert.Equal(t, models.StatusActive, s.Status)
	assert.Equal(t, models.DefaultTitle, s.Title)
}

func TestGetUnknownSession(t *testing.T) {
	svc := newTestService(newFakeSessionRepo(), nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", appErr.Code)
}

func TestCheckAdmission(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, "u-1")
	require.NoError(t, err)

	_, err = svc.CheckAdmission(ctx, s.SessionID)
	assert.NoError(t, err)

	require.NoError(t, svc.Archive(ctx, s.SessionID))

	_, err = svc.CheckAdmission(ctx, s.SessionID)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
	assert.Equal(t, "SESSION_NOT_ACTIVE", appErr.Code)
}

func TestCheckAdmissionUnknownSession(t *testing.T) {
	svc := newTestService(newFakeSessionRepo(), nil)

	_, err := svc.CheckAdmission(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.GetStatusCode(err))
}

func TestListActiveExcludesArchived(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u-1")
	b, _ := svc.Create(ctx, "u-1")
	_, _ = svc.Create(ctx, "u-2")
	require.NoError(t, svc.Archive(ctx, b.SessionID))

	sessions, err := svc.ListActive(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, a.SessionID, sessions[0].SessionID)
}

func TestListActiveUsesCache(t *testing.T) {
	repo := newFakeSessionRepo()
	cache := newCountingCache()
	svc := newTestService(repo, cache)
	ctx := context.Background()

	s, err := svc.Create(ctx, "u-1")
	require.NoError(t, err)

	// First list fills the cache, second one hits it.
	_, err = svc.ListActive(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	cached, err := svc.ListActive(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	require.Len(t, cached, 1)
	assert.Equal(t, s.SessionID, cached[0].SessionID)

	// A write invalidates.
	require.NoError(t, svc.Rename(ctx, s.SessionID, "paper review"))
	_, ok := cache.store["sessions:u-1"]
	assert.False(t, ok)
}

func TestRename(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	s, _ := svc.Create(ctx, "u-1")

	require.NoError(t, svc.Rename(ctx, s.SessionID, "  transformer basics  "))
	got, err := svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "transformer basics", got.Title)
}

func TestRenameRejectsBlankTitle(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	s, _ := svc.Create(ctx, "u-1")

	for _, title := range []string{"", "   ", "\t\n"} {
		err := svc.Rename(ctx, s.SessionID, title)
		require.Error(t, err, "title %q", title)
		assert.Equal(t, 400, apperrors.GetStatusCode(err))
	}
}

func TestRenameAllowedOnArchivedSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	s, _ := svc.Create(ctx, "u-1")
	require.NoError(t, svc.Archive(ctx, s.SessionID))

	require.NoError(t, svc.Rename(ctx, s.SessionID, "kept after archive"))
	got, _ := svc.Get(ctx, s.SessionID)
	assert.Equal(t, "kept after archive", got.Title)
}

func TestArchiveIsIdempotentForReads(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	s, _ := svc.Create(ctx, "u-1")
	require.NoError(t, svc.Archive(ctx, s.SessionID))

	got, err := svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, got.Status)
}

func TestHardDelete(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	s, _ := svc.Create(ctx, "u-1")
	require.NoError(t, svc.HardDelete(ctx, s.SessionID))

	_, err := svc.Get(ctx, s.SessionID)
	assert.Equal(t, 404, apperrors.GetStatusCode(err))
}

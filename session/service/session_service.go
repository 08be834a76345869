package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	apperrors "paper-agent-chat/backend/pkg/errors"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/session/models"
	"paper-agent-chat/backend/session/repository"

	"gorm.io/gorm"
)

// ListCache caches marshaled session lists per user. Implementations are the
// in-memory cache and the redis client; a nil cache disables caching.
type ListCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Del(ctx context.Context, key string)
}

// SessionService owns the session lifecycle: creation, admission of new
// turns, rename, archive and hard delete. Sessions only move forward:
// active -> archived, or active -> gone.
type SessionService struct {
	repo  repository.SessionRepository
	cache ListCache
	log   *logger.Logger
}

func NewSessionService(repo repository.SessionRepository, cache ListCache, log *logger.Logger) *SessionService {
	return &SessionService{repo: repo, cache: cache, log: log}
}

func listCacheKey(userID string) string {
	return "sessions:" + userID
}

func (s *SessionService) Create(ctx context.Context, userID string) (*models.Session, error) {
	session, err := s.repo.Create(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return session, nil
}

// Get returns the session or a NOT_FOUND application error.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("SESSION_NOT_FOUND", "session not found")
		}
		return nil, err
	}
	return session, nil
}

// CheckAdmission validates that the session exists and still accepts new
// turns. It runs before any message is persisted, so a rejected turn never
// shows up in history.
func (s *SessionService) CheckAdmission(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, apperrors.NewConflictError("SESSION_NOT_ACTIVE", "session is not active")
	}
	return session, nil
}

func (s *SessionService) ListActive(ctx context.Context, userID string) ([]models.Session, error) {
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, listCacheKey(userID)); ok {
			var sessions []models.Session
			if err := json.Unmarshal(raw, &sessions); err == nil {
				return sessions, nil
			}
		}
	}

	sessions, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(sessions); err == nil {
			s.cache.Set(ctx, listCacheKey(userID), raw)
		}
	}
	return sessions, nil
}

// Touch advances updated_at. It never moves the timestamp backward.
func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	session, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.Touch(ctx, sessionID); err != nil {
		return err
	}
	s.invalidate(ctx, session.UserID)
	return nil
}

// Rename sets a user-chosen title. Any status is accepted as long as the
// session still exists; an all-whitespace title is rejected.
func (s *SessionService) Rename(ctx context.Context, sessionID, title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return apperrors.NewInvalidArgumentError("EMPTY_TITLE", "title must not be empty")
	}
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.SetTitle(ctx, sessionID, trimmed); err != nil {
		return err
	}
	s.invalidate(ctx, session.UserID)
	return nil
}

// SetTitle writes a derived title without the rename validation rules.
// Used by the title policy only.
func (s *SessionService) SetTitle(ctx context.Context, sessionID, title string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.SetTitle(ctx, sessionID, title); err != nil {
		return err
	}
	s.invalidate(ctx, session.UserID)
	return nil
}

// Archive soft-deletes the session. History stays readable; the session no
// longer accepts turns and never becomes active again.
func (s *SessionService) Archive(ctx context.Context, sessionID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.Archive(ctx, sessionID); err != nil {
		return err
	}
	s.invalidate(ctx, session.UserID)
	return nil
}

// HardDelete removes the session record. The caller is responsible for
// removing the session's messages first.
func (s *SessionService) HardDelete(ctx context.Context, sessionID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.HardDelete(ctx, sessionID); err != nil {
		return err
	}
	s.invalidate(ctx, session.UserID)
	return nil
}

func (s *SessionService) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Del(ctx, listCacheKey(userID))
	}
}

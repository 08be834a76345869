package repository

import (
	"context"
	"time"

	"paper-agent-chat/backend/session/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRepository is the persistence contract for chat sessions
type SessionRepository interface {
	Create(ctx context.Context, userID string) (*models.Session, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	ListActive(ctx context.Context, userID string) ([]models.Session, error)
	Touch(ctx context.Context, sessionID string) error
	SetTitle(ctx context.Context, sessionID, title string) error
	Archive(ctx context.Context, sessionID string) error
	HardDelete(ctx context.Context, sessionID string) error
}

type GormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Create(ctx context.Context, userID string) (*models.Session, error) {
	session := &models.Session{
		SessionID: uuid.New().String(),
		UserID:    userID,
		Status:    models.StatusActive,
		Title:     models.DefaultTitle,
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *GormSessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *GormSessionRepository) ListActive(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.StatusActive).
		Order("updated_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *GormSessionRepository) Touch(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Update("updated_at", time.Now()).Error
}

func (r *GormSessionRepository) SetTitle(ctx context.Context, sessionID, title string) error {
	return r.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"title":      title,
			"updated_at": time.Now(),
		}).Error
}

func (r *GormSessionRepository) Archive(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":     models.StatusArchived,
			"updated_at": time.Now(),
		}).Error
}

func (r *GormSessionRepository) HardDelete(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.Session{}).Error
}

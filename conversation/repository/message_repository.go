package repository

import (
	"context"

	"paper-agent-chat/backend/conversation/models"

	"gorm.io/gorm"
)

// MessageRepository is the persistence contract for messages and their parts
type MessageRepository interface {
	Append(ctx context.Context, sessionID, role string, parts []models.MessagePart) error
	ListBySession(ctx context.Context, sessionID string) ([]models.Message, error)
	DeleteAllBySession(ctx context.Context, sessionID string) error
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Append writes one message and all its parts in a single transaction.
// Part order is fixed by SortOrder at write time and never changes.
func (r *GormMessageRepository) Append(ctx context.Context, sessionID, role string, parts []models.MessagePart) error {
	for i := range parts {
		parts[i].SortOrder = i
	}
	message := &models.Message{
		SessionID: sessionID,
		Role:      role,
		Parts:     parts,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(message).Error
	})
}

func (r *GormMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Parts", func(db *gorm.DB) *gorm.DB {
			return db.Order("message_parts.sort_order ASC")
		}).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// DeleteAllBySession removes every message of the session; parts go with
// them through the ON DELETE CASCADE constraint.
func (r *GormMessageRepository) DeleteAllBySession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id IN (?)",
			tx.Model(&models.Message{}).Select("id").Where("session_id = ?", sessionID),
		).Delete(&models.MessagePart{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).Delete(&models.Message{}).Error
	})
}

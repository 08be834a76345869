package service

import (
	"context"

	"paper-agent-chat/backend/conversation/models"
	"paper-agent-chat/backend/conversation/repository"
)

// MessageService exposes the message store to the rest of the service
type MessageService struct {
	repo repository.MessageRepository
}

func NewMessageService(repo repository.MessageRepository) *MessageService {
	return &MessageService{repo: repo}
}

// Append persists one message with its parts atomically
func (s *MessageService) Append(ctx context.Context, sessionID, role string, parts []models.MessagePart) error {
	return s.repo.Append(ctx, sessionID, role, parts)
}

// AppendText persists one message with a single text part
func (s *MessageService) AppendText(ctx context.Context, sessionID, role, text string) error {
	return s.repo.Append(ctx, sessionID, role, []models.MessagePart{models.TextPart(text)})
}

// History returns the session's messages in turn order, parts in sort order
func (s *MessageService) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

// DeleteAll removes every message and part of a session
func (s *MessageService) DeleteAll(ctx context.Context, sessionID string) error {
	return s.repo.DeleteAllBySession(ctx, sessionID)
}

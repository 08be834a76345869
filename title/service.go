package title

import (
	"context"
	"fmt"
	"strings"

	convmodels "paper-agent-chat/backend/conversation/models"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/session/models"
	"paper-agent-chat/backend/shared/observability"
)

// transcriptMessages is how many leading messages feed the title prompt
const transcriptMessages = 4

// SessionStore is the slice of the session store the policy needs
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	SetTitle(ctx context.Context, sessionID, title string) error
}

// MessageStore lists a session's history
type MessageStore interface {
	History(ctx context.Context, sessionID string) ([]convmodels.Message, error)
}

// Service implements the title derivation policy: at most one automatic
// title per session, derived from the first user/assistant exchange. All
// faults are absorbed; a session may keep its placeholder title forever.
type Service struct {
	sessions  SessionStore
	messages  MessageStore
	generator Generator
	log       *logger.Logger
}

func NewService(sessions SessionStore, messages MessageStore, generator Generator, log *logger.Logger) *Service {
	return &Service{
		sessions:  sessions,
		messages:  messages,
		generator: generator,
		log:       log,
	}
}

// Generate runs the policy for one session. It never returns an error;
// everything is logged and abandoned.
func (s *Service) Generate(ctx context.Context, sessionID string) {
	log := s.log.WithSessionID(sessionID)

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		log.Warn("skip title generation: session lookup failed", "error", err.Error())
		observability.TitleJobs.WithLabelValues(observability.TitleOutcomeSkipped).Inc()
		return
	}

	// Manual renames and earlier derivations are permanent.
	if session.Title != models.DefaultTitle {
		log.Info("skip title generation: title already set", "title", session.Title)
		observability.TitleJobs.WithLabelValues(observability.TitleOutcomeSkipped).Inc()
		return
	}

	messages, err := s.messages.History(ctx, sessionID)
	if err != nil {
		log.Warn("skip title generation: history lookup failed", "error", err.Error())
		observability.TitleJobs.WithLabelValues(observability.TitleOutcomeSkipped).Inc()
		return
	}
	if len(messages) < 2 {
		log.Info("skip title generation: not enough messages", "count", len(messages))
		observability.TitleJobs.WithLabelValues(observability.TitleOutcomeSkipped).Inc()
		return
	}

	title, err := s.generator.Generate(ctx, buildTranscript(messages))
	if err != nil {
		log.Warn("title generation failed", "error", err.Error())
		observability.TitleJobs.WithLabelValues(observability.TitleOutcomeFailed).Inc()
		return
	}
	if strings.TrimSpace(title) == "" {
		log.Warn("title generation returned empty")
		observability.TitleJobs.WithLabelValues(observability.TitleOutcomeFailed).Inc()
		return
	}

	if err := s.sessions.SetTitle(ctx, sessionID, title); err != nil {
		log.LogError(err, "title update failed", "title", title)
		observability.TitleJobs.WithLabelValues(observability.TitleOutcomeFailed).Inc()
		return
	}

	log.Info("title updated", "title", title)
	observability.TitleJobs.WithLabelValues(observability.TitleOutcomeUpdated).Inc()
}

// buildTranscript renders the first few messages as "role: first text part"
// lines for the title prompt.
func buildTranscript(messages []convmodels.Message) string {
	limit := len(messages)
	if limit > transcriptMessages {
		limit = transcriptMessages
	}
	lines := make([]string, 0, limit)
	for _, m := range messages[:limit] {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.FirstText()))
	}
	return strings.Join(lines, "\n")
}

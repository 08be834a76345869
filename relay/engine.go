package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper-agent-chat/backend/agent"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/shared/observability"
)

// Event is what goes over the wire to the client, one per SSE data line
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// EmitFunc delivers one client event. A returned error means the client is
// gone and streaming should stop.
type EmitFunc func(Event) error

// MessageStore is the slice of the message store the engine needs
type MessageStore interface {
	AppendText(ctx context.Context, sessionID, role, text string) error
}

// SessionToucher advances a session's updated_at
type SessionToucher interface {
	Touch(ctx context.Context, sessionID string) error
}

// TitleTrigger submits a session for background title derivation
type TitleTrigger interface {
	Submit(sessionID string)
}

// Options tune chunking and pacing
type Options struct {
	ChunkSize  int
	ChunkDelay time.Duration
	PunctDelay time.Duration
}

// Engine drives one upstream streaming call per turn: it normalizes frames,
// chunks and paces text, forwards events to the client, and persists the
// accumulated answer when the stream ends.
type Engine struct {
	agent    agent.Streamer
	messages MessageStore
	sessions SessionToucher
	titles   TitleTrigger
	opts     Options
	log      *logger.Logger
}

func NewEngine(streamer agent.Streamer, messages MessageStore, sessions SessionToucher, titles TitleTrigger, opts Options, log *logger.Logger) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 16
	}
	return &Engine{
		agent:    streamer,
		messages: messages,
		sessions: sessions,
		titles:   titles,
		opts:     opts,
		log:      log,
	}
}

const assistantRole = "assistant"

// Stream relays one turn. It is finite and not restartable: each call opens
// exactly one upstream stream. Mid-stream faults degrade to an inline error
// event; only a failure to persist the assistant message is returned as a
// hard error.
func (e *Engine) Stream(ctx context.Context, sessionID, userText string, usePublicPaper bool, emit EmitFunc) error {
	observability.RelayTurns.Inc()
	log := e.log.WithSessionID(sessionID)

	var fullAnswer strings.Builder
	e.consume(ctx, sessionID, userText, usePublicPaper, emit, &fullAnswer, log)

	if fullAnswer.Len() == 0 {
		return nil
	}

	// Persist whatever accumulated even when the client disconnected
	// mid-stream; partial progress is not discarded.
	persistCtx := context.WithoutCancel(ctx)

	if err := e.messages.AppendText(persistCtx, sessionID, assistantRole, fullAnswer.String()); err != nil {
		log.LogError(err, "failed to persist assistant message")
		return err
	}
	if err := e.sessions.Touch(persistCtx, sessionID); err != nil {
		log.LogError(err, "failed to touch session")
	}
	e.titles.Submit(sessionID)
	return nil
}

// consume drains the upstream stream into client events and fullAnswer.
// Any panic while consuming becomes one final inline error event.
func (e *Engine) consume(ctx context.Context, sessionID, userText string, usePublicPaper bool, emit EmitFunc, fullAnswer *strings.Builder, log *logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			observability.RelayStreamErrors.Inc()
			log.Error("stream panic", "panic", r)
			_ = emit(Event{Type: "error", Content: fmt.Sprintf("stream error: %v", r)})
		}
	}()

	events := e.agent.Stream(ctx, sessionID, userText, usePublicPaper)
	for ev := range events {
		switch ev.Kind {
		case agent.KindText:
			for _, piece := range SplitText(ev.Content, e.opts.ChunkSize) {
				if err := emit(Event{Type: "text", Content: piece}); err != nil {
					log.Info("client went away mid-stream", "error", err.Error())
					return
				}
				fullAnswer.WriteString(piece)
				if !e.pause(ctx, piece) {
					return
				}
			}

		case agent.KindError:
			observability.RelayStreamErrors.Inc()
			// The transcript records the fault even when the client is gone
			// before the event can be delivered.
			fmt.Fprintf(fullAnswer, "\n[Error: %s]", ev.Content)
			if err := emit(Event{Type: "error", Content: ev.Content}); err != nil {
				return
			}

		case agent.KindThought:
			// Thoughts are forwarded but never persisted.
			if err := emit(Event{Type: "thought", Content: ev.Content}); err != nil {
				return
			}
		}
	}
}

// pause sleeps the computed inter-piece delay, returning false if the
// context was cancelled while waiting.
func (e *Engine) pause(ctx context.Context, piece string) bool {
	delay := PieceDelay(piece, e.opts.ChunkDelay, e.opts.PunctDelay)
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

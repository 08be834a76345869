package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-agent-chat/backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func drain(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestStreamUnconfiguredClient(t *testing.T) {
	client := NewClient(Config{}, testLogger())

	events := drain(client.Stream(context.Background(), "s-1", "hi", false))
	require.Len(t, events, 1)
	assert.Equal(t, KindError, events[0].Kind)
	assert.Contains(t, events[0].Content, "not configured")
}

func TestStreamSendsWellFormedRequest(t *testing.T) {
	var captured struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  struct {
			Configuration struct {
				Blocking bool `json:"blocking"`
			} `json:"configuration"`
			Metadata struct {
				UserID         string `json:"user_id"`
				SessionID      string `json:"session_id"`
				UsePublicPaper bool   `json:"use_public_paper"`
			} `json:"metadata"`
			Message struct {
				MessageID string `json:"messageId"`
				Role      string `json:"role"`
				Parts     []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"message"`
		} `json:"params"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key"}, testLogger())
	drain(client.Stream(context.Background(), "s-42", "explain figure 3", true))

	assert.Equal(t, "2.0", captured.JSONRPC)
	assert.Equal(t, "message/stream", captured.Method)
	assert.False(t, captured.Params.Configuration.Blocking)
	assert.Equal(t, "default_user", captured.Params.Metadata.UserID)
	assert.Equal(t, "s-42", captured.Params.Metadata.SessionID)
	assert.True(t, captured.Params.Metadata.UsePublicPaper)
	assert.NotEmpty(t, captured.Params.Message.MessageID)
	assert.Equal(t, "user", captured.Params.Message.Role)
	require.Len(t, captured.Params.Message.Parts, 1)
	assert.Equal(t, "text", captured.Params.Message.Parts[0].Type)
	assert.Equal(t, "explain figure 3", captured.Params.Message.Parts[0].Text)
}

func TestStreamParsesDataLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"result\":{\"kind\":\"thought\",\"text\":\"reading\"}}\n\n")
		io.WriteString(w, ": comment line ignored\n")
		io.WriteString(w, "data: {\"result\":{\"kind\":\"message\",\"parts\":[{\"type\":\"text\",\"text\":\"Hello\"}]}}\n\n")
		io.WriteString(w, "data: garbage that is not json\n\n")
		io.WriteString(w, "data: {\"error\":{\"message\":\"late failure\"}}\n\n")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key"}, testLogger())
	events := drain(client.Stream(context.Background(), "s-1", "hi", false))

	assert.Equal(t, []Event{
		{Kind: KindThought, Content: "reading"},
		{Kind: KindText, Content: "Hello"},
		{Kind: KindError, Content: "late failure"},
	}, events)
}

func TestStreamUpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key"}, testLogger())
	events := drain(client.Stream(context.Background(), "s-1", "hi", false))

	require.Len(t, events, 1)
	assert.Equal(t, KindError, events[0].Kind)
	assert.Contains(t, events[0].Content, "503")
}

func TestStreamOutlivesHeaderTimeout(t *testing.T) {
	// A short Timeout must only bound connection setup and headers. A healthy
	// stream whose body takes longer than that keeps delivering frames.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		flusher.Flush()
		for i := 0; i < 8; i++ {
			io.WriteString(w, "data: {\"result\":{\"kind\":\"message\",\"parts\":[{\"type\":\"text\",\"text\":\"frame\"}]}}\n\n")
			flusher.Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Timeout: 150 * time.Millisecond}, testLogger())
	events := drain(client.Stream(context.Background(), "s-1", "hi", false))

	require.Len(t, events, 8)
	for _, ev := range events {
		assert.Equal(t, KindText, ev.Kind)
	}
}

func TestStreamContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key"}, testLogger())
	events := drain(client.Stream(ctx, "s-1", "hi", false))
	// A cancelled context produces no error events, just a closed channel.
	assert.Empty(t, events)
}

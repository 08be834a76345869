package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"paper-agent-chat/backend/pkg/logger"

	"github.com/google/uuid"
)

// Streamer opens one upstream streaming call and yields canonical events
// until the stream closes. Configuration and transport faults surface as
// inline error events, never as a hard failure.
type Streamer interface {
	Stream(ctx context.Context, sessionID, text string, usePublicPaper bool) <-chan Event
}

// Config holds the upstream agent connection settings. Timeout bounds
// connection setup and the wait for response headers only; a healthy stream
// body may outlive it and is ended by context cancellation alone.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the upstream agent over JSON-RPC with SSE responses
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new upstream agent client. No client-level Timeout:
// that would cap the whole response including the streamed body and sever
// long turns that are still delivering frames.
func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		},
		log: log,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Configuration rpcConfiguration `json:"configuration"`
	Metadata      rpcMetadata      `json:"metadata"`
	Message       rpcMessage       `json:"message"`
}

type rpcConfiguration struct {
	Blocking bool `json:"blocking"`
}

type rpcMetadata struct {
	UserID         string `json:"user_id"`
	SessionID      string `json:"session_id"`
	UsePublicPaper bool   `json:"use_public_paper"`
}

type rpcMessage struct {
	MessageID string    `json:"messageId"`
	Role      string    `json:"role"`
	Parts     []rpcPart `json:"parts"`
}

type rpcPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func newStreamRequest(sessionID, text string, usePublicPaper bool) rpcRequest {
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  "message/stream",
		Params: rpcParams{
			Configuration: rpcConfiguration{Blocking: false},
			Metadata: rpcMetadata{
				UserID:         "default_user",
				SessionID:      sessionID,
				UsePublicPaper: usePublicPaper,
			},
			Message: rpcMessage{
				MessageID: uuid.New().String(),
				Role:      "user",
				Parts:     []rpcPart{{Type: "text", Text: text}},
			},
		},
	}
}

// Stream opens one streaming call and emits canonical events on the returned
// channel. The channel is closed when the upstream stream ends or the
// context is cancelled.
func (c *Client) Stream(ctx context.Context, sessionID, text string, usePublicPaper bool) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		if c.baseURL == "" {
			send(ctx, out, Event{Kind: KindError, Content: "agent is not configured: AGENTKIT_BASE_URL is missing"})
			return
		}
		if c.apiKey == "" {
			send(ctx, out, Event{Kind: KindError, Content: "agent is not configured: AGENTKIT_API_KEY is missing"})
			return
		}

		body, err := json.Marshal(newStreamRequest(sessionID, text, usePublicPaper))
		if err != nil {
			send(ctx, out, Event{Kind: KindError, Content: fmt.Sprintf("agent request failed: %v", err)})
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
		if err != nil {
			send(ctx, out, Event{Kind: KindError, Content: fmt.Sprintf("agent request failed: %v", err)})
			return
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				send(ctx, out, Event{Kind: KindError, Content: fmt.Sprintf("agent request failed: %v", err)})
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			send(ctx, out, Event{Kind: KindError, Content: fmt.Sprintf("agent responded with status %d", resp.StatusCode)})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(line[len("data:"):])
			if payload == "" {
				continue
			}
			for _, ev := range Normalize([]byte(payload)) {
				if !send(ctx, out, ev) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
			send(ctx, out, Event{Kind: KindError, Content: fmt.Sprintf("agent stream failed: %v", err)})
		}
	}()

	return out
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

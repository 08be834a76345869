package title

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/pkg/resilience"
)

// Generator produces a short title from a conversation transcript. Any fault
// or an empty result means "no title produced".
type Generator interface {
	Generate(ctx context.Context, transcript string) (string, error)
}

// MaxTitleRunes bounds the length of a derived title
const MaxTitleRunes = 40

const systemPrompt = "You are a title generator. Produce one short title for the given " +
	"conversation: a noun phrase, no punctuation, no quoting, and never words " +
	"like \"chat\" or \"conversation\". Output only the title itself."

// LLMConfig holds the title model connection settings
type LLMConfig struct {
	BaseURL             string
	APIKey              string
	Model               string
	Timeout             time.Duration
	MaxCompletionTokens int
}

// LLMClient derives titles through a chat-completions endpoint
type LLMClient struct {
	cfg        LLMConfig
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	log        *logger.Logger
}

// NewLLMClient creates a title generation client. Calls run through a
// circuit breaker so a misbehaving model endpoint stops being hammered by
// background jobs.
func NewLLMClient(cfg LLMConfig, log *logger.Logger) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if cfg.MaxCompletionTokens <= 0 {
		cfg.MaxCompletionTokens = 256
	}
	return &LLMClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("title-llm"), log),
		log:        log,
	}
}

type completionRequest struct {
	Model               string              `json:"model"`
	MaxCompletionTokens int                 `json:"max_completion_tokens"`
	Messages            []completionMessage `json:"messages"`
	ReasoningEffort     string              `json:"reasoning_effort"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate asks the model for a title. When the first attempt is cut off by
// the token limit it retries once with a larger budget.
func (c *LLMClient) Generate(ctx context.Context, transcript string) (string, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" || c.cfg.Model == "" {
		return "", errors.New("title model is not configured")
	}

	var title string
	budgets := []int{c.cfg.MaxCompletionTokens, c.cfg.MaxCompletionTokens * 4}
	for _, maxTokens := range budgets {
		text, finishReason, err := c.complete(ctx, transcript, maxTokens)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			title = text
			break
		}
		if finishReason != "length" {
			break
		}
	}

	title = SanitizeTitle(title)
	if title == "" {
		return "", errors.New("title model returned no usable text")
	}
	return title, nil
}

func (c *LLMClient) complete(ctx context.Context, transcript string, maxTokens int) (string, string, error) {
	payload := completionRequest{
		Model:               c.cfg.Model,
		MaxCompletionTokens: maxTokens,
		Messages: []completionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
		ReasoningEffort: "minimal",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	var parsed completionResponse
	err = c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.BaseURL+"/api/v3/chat/completions", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("title model responded with status %d", resp.StatusCode)
		}
		return json.Unmarshal(raw, &parsed)
	})
	if err != nil {
		return "", "", err
	}

	if parsed.Error != nil {
		return "", "", errors.New(parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", "", nil
	}
	return parsed.Choices[0].Message.Content, parsed.Choices[0].FinishReason, nil
}

// SanitizeTitle normalizes model output into a storable title: collapse
// whitespace, strip quoting and trailing punctuation, cap the length.
func SanitizeTitle(raw string) string {
	title := strings.Join(strings.Fields(raw), " ")
	title = strings.Trim(title, "\"'“”‘’「」《》")
	title = strings.TrimRightFunc(title, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})

	runes := []rune(title)
	if len(runes) > MaxTitleRunes {
		runes = runes[:MaxTitleRunes]
		title = strings.TrimRightFunc(string(runes), unicode.IsSpace)
	}
	return title
}

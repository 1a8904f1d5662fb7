package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-oss-20b"
	DefaultTitle   = "AI RFP Management System"

	DefaultMaxRetries = 3

	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 30 * time.Second
	httpTimeout    = 120 * time.Second
)

const providerName = "openrouter"

var wait = utils.WaitFor

// Config describes how to reach the OpenRouter chat completions API.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Referer    string
	Title      string
	MaxRetries int
}

// Generator talks to an OpenAI compatible chat completions endpoint.
type Generator struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter api returned status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGenerator(cfg Config, log *zap.Logger) (*Generator, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter api key is required")
	}
	if cfg.Model = strings.TrimSpace(cfg.Model); cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	return &Generator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: httpTimeout},
		logger:     logger.WithCommonFields(log, providerName, cfg.Model),
	}, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.cfg.Model
}

// GenerateContent sends one system+user exchange and returns the assistant's answer.
func (g *Generator) GenerateContent(ctx context.Context, systemInstruction, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	payload := chatRequest{Model: g.cfg.Model, Temperature: 0}
	if system := strings.TrimSpace(systemInstruction); system != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: message})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		text, err := g.send(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.temporary() || attempt == g.cfg.MaxRetries-1 {
			break
		}

		delay := utils.Backoff(attempt, retryBaseDelay, retryMaxDelay)
		if apiErr.RetryAfter > 0 {
			if apiErr.RetryAfter > retryMaxDelay {
				break
			}
			delay = apiErr.RetryAfter
		}

		g.logger.Warn("temporary openrouter error, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
	}

	return "", fmt.Errorf("chat completion: %w", lastErr)
}

func (g *Generator) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("X-Title", g.cfg.Title)
	if referer := strings.TrimSpace(g.cfg.Referer); referer != "" {
		req.Header.Set("HTTP-Referer", referer)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(data))
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    utils.TruncateForLog(message, 500),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("openrouter error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openrouter api returned no choices")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openrouter api returned empty response")
	}

	return text, nil
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

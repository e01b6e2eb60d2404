// Package llm adapts an OpenAI-compatible chat-completions endpoint to the
// conversation engine's Generator interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aniladanir/retry"
	"github.com/go-resty/resty/v2"
)

// Failure taxonomy. Callers that need a fallback can distinguish why
// generation produced nothing.
var (
	ErrUnavailable   = errors.New("llm: capability unavailable")
	ErrTimeout       = errors.New("llm: capability timed out")
	ErrEmptyResponse = errors.New("llm: capability returned empty response")
)

const (
	defaultRequestTimeout = 25 * time.Second
	maxTransientAttempts  = 3
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client talks to the model endpoint. Transient transport and 5xx failures
// are retried a bounded number of times; client errors are not.
type Client struct {
	http    *resty.Client
	model   string
	retrier *retry.Retrier
	log     *slog.Logger
}

func New(baseURL, apiKey, model string, log *slog.Logger) (*Client, error) {
	if baseURL == "" || model == "" {
		return nil, errors.New("llm: base url and model are required")
	}
	if log == nil {
		log = slog.Default()
	}
	retrier, err := retry.New(retry.WithMaxAttemps(maxTransientAttempts))
	if err != nil {
		return nil, fmt.Errorf("llm: init retrier: %w", err)
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultRequestTimeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		rc.SetAuthToken(apiKey)
	}

	return &Client{http: rc, model: model, retrier: retrier, log: log}, nil
}

// Generate implements conversation.Generator.
func (c *Client) Generate(ctx context.Context, promptText string, maxTokens int, temperature float64) (string, error) {
	var (
		content  string
		finalErr error
	)

	attemptFunc := func(attempt int) (terminate bool) {
		body := chatRequest{
			Model:       c.model,
			Messages:    []chatMessage{{Role: "user", Content: promptText}},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}
		var parsed chatResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&parsed).
			Post("/chat/completions")
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				finalErr = fmt.Errorf("%w: %v", ErrTimeout, err)
				return true
			}
			c.log.Warn("llm request failed", "attempt", attempt, "err", err)
			finalErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return false
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			c.log.Warn("llm server error", "attempt", attempt, "status", resp.StatusCode())
			finalErr = fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
			return false
		}
		if resp.StatusCode() >= http.StatusBadRequest {
			finalErr = fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
			return true
		}
		if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
			finalErr = ErrEmptyResponse
			return true
		}
		content = strings.TrimSpace(parsed.Choices[0].Message.Content)
		finalErr = nil
		return true
	}

	<-c.retrier.Retry(ctx, attemptFunc, true)
	if finalErr != nil {
		return "", finalErr
	}
	return content, nil
}

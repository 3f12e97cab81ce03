// Package groq calls the Groq OpenAI-compatible chat-completion endpoint.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/classify"
)

const defaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"

// Client implements classify.Completer. Temperature is kept low and output
// length bounded: the prompt demands a small deterministic JSON object.
type Client struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a completion client for the given model.
func NewClient(apiKey, model string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      apiKey,
		model:       model,
		temperature: 0.1,
		maxTokens:   200,
		baseURL:     defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends one chat completion and returns the raw response text.
// Quota rejections are wrapped in classify.ErrRateLimited.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("status 429: %w", classify.ErrRateLimited)
	}
	if payload.Error != nil {
		if strings.Contains(strings.ToLower(payload.Error.Code), "rate_limit") ||
			strings.Contains(strings.ToLower(payload.Error.Message), "rate_limit") {
			return "", fmt.Errorf("%s: %w", payload.Error.Message, classify.ErrRateLimited)
		}
		return "", fmt.Errorf("completion error: %s", payload.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API error: status %d", resp.StatusCode)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return payload.Choices[0].Message.Content, nil
}

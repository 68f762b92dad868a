// Package generation adapts an OpenAI-compatible chat-completion service as
// the answer generation capability. The pipeline treats it as a black box.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"docrag/internal/domain"
	"docrag/internal/retry"
)

// Client calls a chat-completion endpoint (OpenRouter, OpenAI, or any
// compatible server) with bounded retries on transient failures.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	policy      retry.Policy
	log         *logrus.Logger
}

// ClientOptions tunes the generation client. Temperature is a pointer so an
// explicit 0 (deterministic sampling) is distinguishable from unset.
type ClientOptions struct {
	BaseURL     string
	MaxTokens   int
	Temperature *float64
	Policy      retry.Policy
	Logger      *logrus.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient reads the API key from the named environment variable.
func NewClient(apiKeyEnv, model string, opts ClientOptions) (*Client, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = "https://openrouter.ai/api/v1"
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1000
	}
	temperature := 0.7
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	return &Client{
		apiKey:      apiKey,
		model:       model,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		maxTokens:   opts.MaxTokens,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		policy:      opts.Policy,
		log:         opts.Logger,
	}, nil
}

// Generate produces text from a system prompt and user message.
func (c *Client) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	var text string
	err := c.policy.Do(ctx, func() error {
		out, err := c.generateOnce(ctx, systemPrompt, userMessage)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}

	c.log.WithFields(logrus.Fields{
		"model":  c.model,
		"length": len(text),
	}).Debug("generation completed")

	return text, nil
}

func (c *Client) generateOnce(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", domain.Permanentf(domain.DepGeneration, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", domain.Permanentf(domain.DepGeneration, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.Transientf(domain.DepGeneration, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.Transientf(domain.DepGeneration, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", domain.Transientf(domain.DepGeneration, apiErr)
		}
		return "", domain.Permanentf(domain.DepGeneration, apiErr)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", domain.Permanentf(domain.DepGeneration, fmt.Errorf("failed to parse response: %w", err))
	}

	if chatResp.Error != nil {
		return "", domain.Permanentf(domain.DepGeneration, fmt.Errorf("API error: %s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return "", domain.Permanentf(domain.DepGeneration, fmt.Errorf("no choices in response"))
	}

	return chatResp.Choices[0].Message.Content, nil
}

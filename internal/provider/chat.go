package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/leadintel/internal/domain"
)

// ChatConfig configures a ChatClient.
type ChatConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ChatClient calls an OpenAI-compatible chat-completions endpoint.
type ChatClient struct {
	cfg ChatConfig
	t   transport
}

// NewChatClient creates a chat client. A nil httpClient uses a pooled default.
func NewChatClient(cfg ChatConfig, httpClient *http.Client, logger *slog.Logger) *ChatClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ChatClient{
		cfg: cfg,
		t:   newTransport(domain.ProviderChat, httpClient, cfg.Timeout, logger),
	}
}

// Model returns the configured model name.
func (c *ChatClient) Model() string {
	return c.cfg.Model
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends messages and returns the content of the first choice.
func (c *ChatClient) Complete(ctx context.Context, token string, messages []domain.Message) (string, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	data, err := c.t.doJSON(ctx, c.cfg.BaseURL+"/chat/completions", token, body)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.t.markMalformed()
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		c.t.markMalformed()
		return "", fmt.Errorf("%w: no choices", domain.ErrMalformedResponse)
	}
	return *resp.Choices[0].Message.Content, nil
}

// Package genai provides GenAI-rendered alert messages using the OpenAI API.
//
// It is an optional enhancement over the built-in templates: when a client is
// configured, the dispatcher asks it for a one-line alert message and falls
// back to templates on any failure.
package genai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/twinsense/twintuition/internal/models"
)

// ErrNoChoicesReturned indicates the API responded without any completion.
var ErrNoChoicesReturned = errors.New("no choices returned")

const systemPrompt = "You write a single playful one-line push notification for a twin " +
	"telepathy app. The notification tells a user their twin just did something " +
	"in sync with them. Never exceed 120 characters. Never use emoji."

// chatService defines the minimal slice of the OpenAI client used here.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service for rendering alert text.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// RenderAlertMessage produces a one-line alert message for a sync event.
func (c *Client) RenderAlertMessage(ctx context.Context, sync models.SyncEvent) (string, error) {
	userPrompt := fmt.Sprintf(
		"Sync type: %s. Detector note: %s. Confidence: %d%%.",
		sync.Type, sync.Description, int(sync.Confidence*100),
	)

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to render alert message: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/twinsense/twintuition/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp openai.ChatCompletion
	err  error
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.resp, nil
}

func syncEvent() models.SyncEvent {
	return models.SyncEvent{
		Type:        models.SyncTypeAppSync,
		Confidence:  0.82,
		Description: "Both twins opened the app within 4s of each other",
	}
}

func TestRenderAlertMessage_Success(t *testing.T) {
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "  Your twin just opened the app too\n"}},
		},
	}
	client := &Client{chat: &mockChatService{resp: mockResp}, model: openai.ChatModelGPT4oMini}

	out, err := client.RenderAlertMessage(context.Background(), syncEvent())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Your twin just opened the app too" {
		t.Errorf("expected trimmed message, got %q", out)
	}
}

func TestRenderAlertMessage_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.RenderAlertMessage(context.Background(), syncEvent())
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestRenderAlertMessage_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.RenderAlertMessage(context.Background(), syncEvent())
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Error("expected client instance, got nil")
	}
}

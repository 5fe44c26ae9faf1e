package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type mockSender struct {
	lastParams *twilioApi.CreateMessageParams
	err        error
}

func (m *mockSender) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	m.lastParams = params
	return &twilioApi.ApiV2010Message{}, m.err
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier()
	if err := n.Notify(context.Background(), "Twin moment", "Your twin opened the app too", nil); err != nil {
		t.Errorf("log notifier should never fail: %v", err)
	}
}

func TestNewTwilioNotifierMissingCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	if _, err := NewTwilioNotifier(); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestTwilioNotifierSendsTitleAndBody(t *testing.T) {
	sender := &mockSender{}
	n := &TwilioNotifier{sender: sender, from: "+15550001111", to: "+15550002222"}

	err := n.Notify(context.Background(), "Twintuition", "You both felt it", map[string]string{"type": "feeling"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.lastParams == nil || sender.lastParams.Body == nil {
		t.Fatal("expected a message to be sent")
	}
	if !strings.Contains(*sender.lastParams.Body, "Twintuition") || !strings.Contains(*sender.lastParams.Body, "You both felt it") {
		t.Errorf("message body missing title or body: %q", *sender.lastParams.Body)
	}
}

func TestTwilioNotifierPropagatesError(t *testing.T) {
	sender := &mockSender{err: errors.New("twilio unavailable")}
	n := &TwilioNotifier{sender: sender, from: "+15550001111", to: "+15550002222"}

	if err := n.Notify(context.Background(), "t", "b", nil); err == nil {
		t.Error("expected delivery error to propagate")
	}
}

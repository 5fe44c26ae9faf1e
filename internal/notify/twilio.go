// Package notify defines the outbound notification contract of the
// twintuition engine.
//
// This file implements SMS delivery through the Twilio API.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// smsSender is the slice of the Twilio REST API the notifier needs; it allows
// tests to substitute a mock.
type smsSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// Option defines a configuration option for the Twilio notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithTo sets the receiving phone number.
func WithTo(to string) Option {
	return func(o *Opts) { o.To = to }
}

// TwilioNotifier delivers twintuition alerts as SMS messages.
type TwilioNotifier struct {
	sender smsSender
	from   string
	to     string
}

// NewTwilioNotifier creates a Twilio-backed notifier. Credentials fall back to
// the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER, and
// TWILIO_TO_NUMBER environment variables when not provided via options.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.To == "" {
		cfg.To = os.Getenv("TWILIO_TO_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"To_set", cfg.To != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("from and to numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioNotifier{sender: client.Api, from: cfg.From, to: cfg.To}, nil
}

// Notify sends the alert as an SMS. The data payload is not transmitted over
// SMS; only the rendered title and body go out.
func (n *TwilioNotifier) Notify(ctx context.Context, title, body string, data map[string]string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(fmt.Sprintf("%s\n%s", title, body))

	_, err := n.sender.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioNotifier Notify failed", "error", err)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	slog.Debug("TwilioNotifier Notify succeeded")
	return nil
}

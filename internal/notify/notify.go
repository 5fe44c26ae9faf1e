// Package notify defines the outbound notification contract of the
// twintuition engine.
//
// Delivery is fire-and-forget: the engine logs failures and never retries or
// inspects delivery results.
package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers a rendered alert to the user's device or channel.
type Notifier interface {
	// Notify sends a notification. Implementations own their timeouts.
	Notify(ctx context.Context, title, body string, data map[string]string) error
}

// LogNotifier writes notifications to the structured log. It is the default
// when no delivery channel is configured, and doubles as a test double.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, title, body string, data map[string]string) error {
	slog.Info("LogNotifier delivering notification", "title", title, "body", body, "data_keys", len(data))
	return nil
}

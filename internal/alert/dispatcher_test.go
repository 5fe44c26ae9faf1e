package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/twinsense/twintuition/internal/models"
	"github.com/twinsense/twintuition/internal/store"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}, 10)}
}

func (n *recordingNotifier) Notify(ctx context.Context, title, body string, data map[string]string) error {
	n.mu.Lock()
	n.calls = append(n.calls, body)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func (n *recordingNotifier) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func (n *recordingNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type recordingAnalytics struct {
	mu      sync.Mutex
	records []string
}

func (a *recordingAnalytics) RecordAlert(syncType models.SyncType, bucket string, hour int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, string(syncType)+"/"+bucket)
}

type failingRenderer struct{}

func (failingRenderer) Render(ctx context.Context, sync models.SyncEvent) (string, error) {
	return "", errors.New("renderer down")
}

func pairedIdentity() StaticIdentity {
	return StaticIdentity{User: "twinA", Twin: "twinB", IsPaired: true, NotifyEnabled: true}
}

func syncEvent(conf float64) models.SyncEvent {
	return models.SyncEvent{
		Type:       models.SyncTypeAppSync,
		Confidence: conf,
		InvolvedEvents: []models.BehaviorEvent{
			{ID: "e1", UserID: "twinA"},
			{ID: "e2", UserID: "twinB"},
		},
		DetectedAt: time.Now(),
	}
}

func TestDispatchBelowThresholdIsDropped(t *testing.T) {
	st := store.NewInMemoryStore()
	notifier := newRecordingNotifier()
	d := NewDispatcher(st, notifier, pairedIdentity())

	cfg := models.DefaultConfig()
	cfg.MinConfidenceThreshold = 0.9

	if alert := d.Dispatch(context.Background(), syncEvent(0.7), cfg); alert != nil {
		t.Fatal("sync event below threshold must not produce an alert")
	}

	alerts, _ := st.Alerts()
	if len(alerts) != 0 {
		t.Errorf("no alert should be persisted, found %d", len(alerts))
	}
	if notifier.callCount() != 0 {
		t.Error("no notification should be sent")
	}
}

func TestDispatchCreatesAlertAndNotifies(t *testing.T) {
	st := store.NewInMemoryStore()
	notifier := newRecordingNotifier()
	analytics := &recordingAnalytics{}
	d := NewDispatcher(st, notifier, pairedIdentity(), WithAnalytics(analytics))

	alert := d.Dispatch(context.Background(), syncEvent(0.85), models.DefaultConfig())
	if alert == nil {
		t.Fatal("expected an alert")
	}
	if alert.Type != models.AlertTypeAction {
		t.Errorf("app sync should map to action alert, got %s", alert.Type)
	}
	if alert.IsRead {
		t.Error("new alerts start unread")
	}
	if !strings.Contains(alert.Message, "85% sync") {
		t.Errorf("message should carry the rounded confidence, got %q", alert.Message)
	}

	alerts, _ := st.Alerts()
	if len(alerts) != 1 || alerts[0].ID != alert.ID {
		t.Error("alert should be persisted to history")
	}

	notifier.waitForCall(t)

	analytics.mu.Lock()
	defer analytics.mu.Unlock()
	if len(analytics.records) != 1 || analytics.records[0] != "app_synchronization/high" {
		t.Errorf("unexpected analytics records: %v", analytics.records)
	}
}

func TestDispatchSkipsNotificationWhenUnpaired(t *testing.T) {
	st := store.NewInMemoryStore()
	notifier := newRecordingNotifier()
	identity := StaticIdentity{User: "twinA", IsPaired: false, NotifyEnabled: true}
	d := NewDispatcher(st, notifier, identity)

	alert := d.Dispatch(context.Background(), syncEvent(0.85), models.DefaultConfig())
	if alert == nil {
		t.Fatal("expected an alert")
	}

	// The alert is still persisted; only delivery is skipped.
	alerts, _ := st.Alerts()
	if len(alerts) != 1 {
		t.Error("alert should be persisted even when unpaired")
	}
	time.Sleep(50 * time.Millisecond)
	if notifier.callCount() != 0 {
		t.Error("unpaired installation must not receive notifications")
	}
}

func TestDispatchDeduplicatesAcrossCadences(t *testing.T) {
	st := store.NewInMemoryStore()
	notifier := newRecordingNotifier()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	d := NewDispatcher(st, notifier, pairedIdentity(), WithClock(clock))

	cfg := models.DefaultConfig()
	ev := syncEvent(0.9)

	if d.Dispatch(context.Background(), ev, cfg) == nil {
		t.Fatal("first dispatch should produce an alert")
	}
	// The batch sweep re-detects the same pair moments later.
	now = now.Add(30 * time.Second)
	if d.Dispatch(context.Background(), ev, cfg) != nil {
		t.Error("duplicate within the window must be suppressed")
	}
	// Past the window the same key may alert again.
	now = now.Add(DefaultDedupWindow + time.Minute)
	if d.Dispatch(context.Background(), ev, cfg) == nil {
		t.Error("dedup must expire after the trailing window")
	}
}

func TestDispatchFallsBackWhenRendererFails(t *testing.T) {
	st := store.NewInMemoryStore()
	d := NewDispatcher(st, newRecordingNotifier(), pairedIdentity(), WithRenderer(failingRenderer{}))

	alert := d.Dispatch(context.Background(), syncEvent(0.85), models.DefaultConfig())
	if alert == nil {
		t.Fatal("renderer failure must not drop the alert")
	}
	if !strings.Contains(alert.Message, "% sync)") {
		t.Errorf("fallback template should render, got %q", alert.Message)
	}
}

func TestTemplateRendererDeterministicWithPinnedSource(t *testing.T) {
	r := NewTemplateRenderer(func(n int) int { return 0 })
	ev := syncEvent(0.8)

	first, _ := r.Render(context.Background(), ev)
	second, _ := r.Render(context.Background(), ev)
	if first != second {
		t.Error("pinned random source should make rendering deterministic")
	}
	if !strings.Contains(first, "(80% sync)") {
		t.Errorf("expected confidence suffix, got %q", first)
	}
}

func TestConfidenceBucket(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.95, "high"},
		{0.8, "high"},
		{0.6, "medium"},
		{0.3, "low"},
	}
	for _, tt := range tests {
		if got := confidenceBucket(tt.confidence); got != tt.want {
			t.Errorf("confidenceBucket(%v) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}

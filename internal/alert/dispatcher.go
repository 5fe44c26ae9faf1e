// Package alert converts scored sync events into user-facing twintuition
// alerts: threshold gating, deduplication, message rendering, history
// persistence, and notification dispatch.
package alert

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/twinsense/twintuition/internal/models"
	"github.com/twinsense/twintuition/internal/notify"
	"github.com/twinsense/twintuition/internal/store"
)

// DefaultDedupWindow is the trailing window inside which a sync event with
// the same type and involved events is considered a duplicate. The immediate
// and batch cadences can both detect the same underlying pair; this keeps the
// user from seeing it twice.
const DefaultDedupWindow = 5 * time.Minute

// NotificationTitle is the push title for every twintuition alert.
const NotificationTitle = "Twintuition Alert"

// IdentityProvider exposes the pairing context of the current installation.
// It is polled at the moment of each dispatch decision.
type IdentityProvider interface {
	UserID() string
	TwinID() string
	Paired() bool
	NotificationsEnabled() bool
}

// StaticIdentity is a fixed IdentityProvider for composition roots and tests.
type StaticIdentity struct {
	User          string
	Twin          string
	IsPaired      bool
	NotifyEnabled bool
}

func (s StaticIdentity) UserID() string             { return s.User }
func (s StaticIdentity) TwinID() string             { return s.Twin }
func (s StaticIdentity) Paired() bool               { return s.IsPaired }
func (s StaticIdentity) NotificationsEnabled() bool { return s.NotifyEnabled }

// AnalyticsSink receives one anonymized record per dispatched alert: sync
// type, confidence bucket, and hour of day. No event payload ever reaches it.
type AnalyticsSink interface {
	RecordAlert(syncType models.SyncType, confidenceBucket string, hour int)
}

// LogAnalytics writes analytics records to the structured log.
type LogAnalytics struct{}

func (LogAnalytics) RecordAlert(syncType models.SyncType, confidenceBucket string, hour int) {
	slog.Info("Twintuition alert recorded", "sync_type", syncType, "confidence_bucket", confidenceBucket, "hour", hour)
}

// Opts holds configuration for dispatcher construction.
type Opts struct {
	Renderer    MessageRenderer
	Analytics   AnalyticsSink
	Clock       func() time.Time
	DedupWindow time.Duration
}

// Option defines a configuration option for dispatcher construction.
type Option func(*Opts)

// WithRenderer sets the primary message renderer. The template renderer
// remains the fallback when the primary fails.
func WithRenderer(r MessageRenderer) Option {
	return func(o *Opts) { o.Renderer = r }
}

// WithAnalytics sets the analytics sink.
func WithAnalytics(a AnalyticsSink) Option {
	return func(o *Opts) { o.Analytics = a }
}

// WithClock injects a time source for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// WithDedupWindow overrides the duplicate suppression window.
func WithDedupWindow(d time.Duration) Option {
	return func(o *Opts) { o.DedupWindow = d }
}

// Dispatcher owns the path from scored sync event to persisted alert.
type Dispatcher struct {
	store     store.Store
	notifier  notify.Notifier
	identity  IdentityProvider
	renderer  MessageRenderer
	fallback  *TemplateRenderer
	analytics AnalyticsSink
	clock     func() time.Time
	window    time.Duration

	mu     sync.Mutex
	recent map[string]time.Time
}

// NewDispatcher creates a dispatcher around a store, notifier, and identity
// context.
func NewDispatcher(st store.Store, notifier notify.Notifier, identity IdentityProvider, opts ...Option) *Dispatcher {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	fallback := NewTemplateRenderer(nil)
	if cfg.Renderer == nil {
		cfg.Renderer = fallback
	}
	if cfg.Analytics == nil {
		cfg.Analytics = LogAnalytics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}

	return &Dispatcher{
		store:     st,
		notifier:  notifier,
		identity:  identity,
		renderer:  cfg.Renderer,
		fallback:  fallback,
		analytics: cfg.Analytics,
		clock:     cfg.Clock,
		window:    cfg.DedupWindow,
		recent:    make(map[string]time.Time),
	}
}

// Dispatch converts a sync event into an alert. It returns nil when the event
// falls below the confidence threshold or duplicates a recent dispatch.
// Persistence and notification failures are logged, never returned: a missed
// alert is a silent miss, not a crash.
func (d *Dispatcher) Dispatch(ctx context.Context, sync models.SyncEvent, cfg models.Config) *models.Alert {
	if sync.Confidence < cfg.MinConfidenceThreshold {
		slog.Debug("Dispatcher dropping sync event below threshold",
			"sync_type", sync.Type, "confidence", sync.Confidence, "threshold", cfg.MinConfidenceThreshold)
		return nil
	}

	now := d.clock()
	if d.isDuplicate(sync, now) {
		slog.Debug("Dispatcher suppressing duplicate sync event", "sync_type", sync.Type)
		return nil
	}

	message, err := d.renderer.Render(ctx, sync)
	if err != nil {
		slog.Warn("Dispatcher primary renderer failed, using template fallback", "error", err)
		message, _ = d.fallback.Render(ctx, sync)
	}

	alert := models.Alert{
		ID:         uuid.NewString(),
		Message:    message,
		Timestamp:  now,
		Type:       sync.AlertType(),
		Confidence: sync.Confidence,
	}

	if err := d.store.AddAlert(alert); err != nil {
		slog.Error("Dispatcher failed to persist alert, continuing", "error", err, "alert_id", alert.ID)
	}

	d.analytics.RecordAlert(sync.Type, confidenceBucket(sync.Confidence), now.Hour())

	if d.identity.Paired() && d.identity.NotificationsEnabled() {
		go func() {
			data := map[string]string{"alert_id": alert.ID, "type": string(alert.Type)}
			if err := d.notifier.Notify(context.Background(), NotificationTitle, message, data); err != nil {
				slog.Error("Dispatcher notification delivery failed", "error", err, "alert_id", alert.ID)
			}
		}()
	}

	slog.Debug("Dispatcher alert created", "alert_id", alert.ID, "alert_type", alert.Type, "confidence", alert.Confidence)
	return &alert
}

// isDuplicate records the sync event's dedup key and reports whether it was
// already dispatched within the trailing window. Stale entries are pruned on
// the way through.
func (d *Dispatcher) isDuplicate(sync models.SyncEvent, now time.Time) bool {
	key := dedupKey(sync)

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, ts := range d.recent {
		if now.Sub(ts) > d.window {
			delete(d.recent, k)
		}
	}

	if ts, seen := d.recent[key]; seen && now.Sub(ts) <= d.window {
		return true
	}
	d.recent[key] = now
	return false
}

// dedupKey identifies a sync event by its type and the sorted IDs of the
// events that produced it.
func dedupKey(sync models.SyncEvent) string {
	ids := make([]string, 0, len(sync.InvolvedEvents))
	for _, ev := range sync.InvolvedEvents {
		ids = append(ids, ev.ID)
	}
	sort.Strings(ids)
	return string(sync.Type) + "|" + strings.Join(ids, ",")
}

func confidenceBucket(c float64) string {
	switch {
	case c >= 0.8:
		return "high"
	case c >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

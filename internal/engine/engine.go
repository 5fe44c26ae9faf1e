// Package engine wires the twintuition pipeline together: event ingestion,
// the in-memory behavior buffer, the two correlation cadences, alert
// dispatch, and the configuration model.
//
// A Service is an explicit object owned by the application's composition
// root; there is no package-level singleton.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/twinsense/twintuition/internal/alert"
	"github.com/twinsense/twintuition/internal/analytics"
	"github.com/twinsense/twintuition/internal/buffer"
	"github.com/twinsense/twintuition/internal/correlator"
	"github.com/twinsense/twintuition/internal/models"
	"github.com/twinsense/twintuition/internal/notify"
	"github.com/twinsense/twintuition/internal/scheduler"
	"github.com/twinsense/twintuition/internal/store"
)

// Opts holds configuration for engine construction.
type Opts struct {
	Store         store.Store
	Notifier      notify.Notifier
	Identity      alert.IdentityProvider
	Renderer      alert.MessageRenderer
	Clock         func() time.Time
	BufferCap     int
	SweepInterval time.Duration
}

// Option defines a configuration option for engine construction.
type Option func(*Opts)

// WithStore sets the persistence backend. Defaults to the in-memory store.
func WithStore(st store.Store) Option {
	return func(o *Opts) { o.Store = st }
}

// WithNotifier sets the notification channel. Defaults to the log notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Opts) { o.Notifier = n }
}

// WithIdentity sets the pairing context provider.
func WithIdentity(id alert.IdentityProvider) Option {
	return func(o *Opts) { o.Identity = id }
}

// WithRenderer sets the primary alert message renderer.
func WithRenderer(r alert.MessageRenderer) Option {
	return func(o *Opts) { o.Renderer = r }
}

// WithClock injects a time source for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// WithBufferCap overrides the behavior buffer capacity.
func WithBufferCap(n int) Option {
	return func(o *Opts) { o.BufferCap = n }
}

// WithSweepInterval overrides the batch sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(o *Opts) { o.SweepInterval = d }
}

// Service is the twintuition engine. All state mutation goes through its
// methods; the buffer and config are never written by other components.
type Service struct {
	store         store.Store
	buf           *buffer.Ring
	dispatcher    *alert.Dispatcher
	identity      alert.IdentityProvider
	clock         func() time.Time
	sweepInterval time.Duration

	mu    sync.RWMutex
	cfg   models.Config
	sched *scheduler.Scheduler
}

// NewService constructs an engine from options. Every dependency has a
// working default so a bare NewService() is usable in tests and demos.
func NewService(opts ...Option) *Service {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		cfg.Store = store.NewInMemoryStore()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogNotifier()
	}
	if cfg.Identity == nil {
		cfg.Identity = alert.StaticIdentity{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = scheduler.DefaultSweepInterval
	}

	dispatcherOpts := []alert.Option{alert.WithClock(cfg.Clock)}
	if cfg.Renderer != nil {
		dispatcherOpts = append(dispatcherOpts, alert.WithRenderer(cfg.Renderer))
	}

	return &Service{
		store:         cfg.Store,
		buf:           buffer.NewRing(cfg.BufferCap),
		dispatcher:    alert.NewDispatcher(cfg.Store, cfg.Notifier, cfg.Identity, dispatcherOpts...),
		identity:      cfg.Identity,
		clock:         cfg.Clock,
		sweepInterval: cfg.SweepInterval,
		cfg:           models.DefaultConfig(),
	}
}

// Initialize loads the persisted configuration and starts the batch sweep
// cadence. Calling it twice is an error.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.sched != nil {
		s.mu.Unlock()
		return fmt.Errorf("engine already initialized")
	}

	if persisted, err := s.store.LoadConfig(); err != nil {
		slog.Warn("Engine failed to load persisted config, using defaults", "error", err)
	} else if persisted != nil {
		if err := persisted.Validate(); err != nil {
			slog.Warn("Engine ignoring invalid persisted config", "error", err)
		} else {
			s.cfg = *persisted
		}
	}

	s.sched = scheduler.NewScheduler()
	sched := s.sched
	s.mu.Unlock()

	if err := sched.AddEvery(s.sweepInterval, s.sweep); err != nil {
		return fmt.Errorf("failed to schedule batch sweep: %w", err)
	}

	slog.Info("Twintuition engine initialized",
		"sweep_interval", s.sweepInterval,
		"buffer_cap", s.buf.Cap(),
		"paired", s.identity.Paired())
	return nil
}

// Stop halts the batch sweep cadence and closes nothing else; the store is
// owned by the composition root.
func (s *Service) Stop() {
	s.mu.Lock()
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	slog.Info("Twintuition engine stopped")
}

// Ingest accepts a partially built event, assigns its identity and timestamp,
// buffers it, persists a redacted copy, and runs the immediate correlation
// check when the event carries a twin pairing. Persistence failures never
// reach the caller; the returned error covers invalid input only.
func (s *Service) Ingest(ctx context.Context, ev models.BehaviorEvent) (models.BehaviorEvent, error) {
	if err := ev.Validate(); err != nil {
		return models.BehaviorEvent{}, err
	}

	ev.ID = uuid.NewString()
	ev.Timestamp = s.clock()
	if ev.TwinID == "" {
		ev.TwinID = s.identity.TwinID()
	}

	s.buf.Append(ev)
	slog.Debug("Engine ingested event", "event_id", ev.ID, "type", ev.Type, "action", ev.Action, "buffered", s.buf.Len())

	go func(persisted models.BehaviorEvent) {
		if err := s.store.AddEvent(persisted); err != nil {
			slog.Error("Engine failed to persist event, buffer remains authoritative", "error", err, "event_id", persisted.ID)
		}
	}(ev.Redacted())

	if ev.TwinID != "" {
		cfg := s.GetConfig()
		if match, ok := correlator.CheckImmediate(ev, s.buf.Snapshot(), cfg, s.clock()); ok {
			s.dispatcher.Dispatch(ctx, match, cfg)
		}
	}

	return ev, nil
}

// sweep is the batch cadence: it re-examines the whole buffer for patterns
// the per-event check cannot see. Sweeps with fewer than 2 buffered events
// are skipped outright.
func (s *Service) sweep() {
	if s.buf.Len() < 2 {
		return
	}

	cfg := s.GetConfig()
	events := s.buf.Snapshot()
	results := correlator.AnalyzeBatch(events, cfg, s.clock())
	slog.Debug("Engine batch sweep complete", "buffered", len(events), "matches", len(results))

	for _, match := range results {
		s.dispatcher.Dispatch(context.Background(), match, cfg)
	}
}

// UpdateConfig merges a partial update into the current configuration,
// rejecting out-of-range values. The merged config is persisted best-effort:
// a storage failure is logged and the in-memory config still changes.
func (s *Service) UpdateConfig(ctx context.Context, patch models.ConfigPatch) (models.Config, error) {
	s.mu.Lock()
	merged := patch.Apply(s.cfg)
	if err := merged.Validate(); err != nil {
		s.mu.Unlock()
		return models.Config{}, err
	}
	s.cfg = merged
	s.mu.Unlock()

	if err := s.store.SaveConfig(merged); err != nil {
		slog.Error("Engine failed to persist config, in-memory value updated", "error", err)
	}
	slog.Debug("Engine config updated",
		"sensitivity", merged.Sensitivity,
		"window_minutes", merged.TimeWindowMinutes,
		"threshold", merged.MinConfidenceThreshold)
	return merged, nil
}

// GetConfig returns the current configuration.
func (s *Service) GetConfig() models.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// GetAlertHistory returns the retained alerts from the most recent N days,
// newest first. days <= 0 returns the whole retained history.
func (s *Service) GetAlertHistory(days int) ([]models.Alert, error) {
	alerts, err := s.store.Alerts()
	if err != nil {
		return nil, fmt.Errorf("failed to load alert history: %w", err)
	}
	if days <= 0 {
		return alerts, nil
	}

	cutoff := s.clock().AddDate(0, 0, -days)
	filtered := alerts[:0]
	for _, a := range alerts {
		if !a.Timestamp.Before(cutoff) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// MarkAlertRead acknowledges a single alert.
func (s *Service) MarkAlertRead(id string) error {
	return s.store.MarkAlertRead(id)
}

// MarkAllAlertsRead acknowledges the whole history.
func (s *Service) MarkAllAlertsRead() error {
	return s.store.MarkAllAlertsRead()
}

// GetSyncScore derives the twin sync score from the alert history.
func (s *Service) GetSyncScore() (analytics.SyncScore, error) {
	alerts, err := s.store.Alerts()
	if err != nil {
		return analytics.SyncScore{}, fmt.Errorf("failed to load alert history: %w", err)
	}
	return analytics.ComputeSyncScore(alerts, s.clock()), nil
}

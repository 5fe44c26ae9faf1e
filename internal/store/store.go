// Package store provides storage backends for the twintuition engine.
//
// It persists the day-partitioned behavior event log, the alert history, and
// the configuration blob. Backends: in-memory, SQLite, and PostgreSQL.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/twinsense/twintuition/internal/models"
)

// DayKey returns the partition key for a timestamp. Partitions are UTC days.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Store is the persistence contract required by the engine. Events reaching a
// store are already redacted; backends never see raw coordinates.
type Store interface {
	// AddEvent appends an event to its day partition, evicting the oldest
	// entries beyond the per-day cap.
	AddEvent(ev models.BehaviorEvent) error
	// EventsByDay returns the retained events for a partition key, oldest first.
	EventsByDay(day string) ([]models.BehaviorEvent, error)

	// AddAlert appends an alert, evicting the oldest beyond the history cap.
	AddAlert(a models.Alert) error
	// Alerts returns the retained alert history, newest first.
	Alerts() ([]models.Alert, error)
	// MarkAlertRead flips an alert's IsRead flag to true.
	MarkAlertRead(id string) error
	// MarkAllAlertsRead flips every retained alert to read.
	MarkAllAlertsRead() error

	// SaveConfig persists the configuration blob.
	SaveConfig(cfg models.Config) error
	// LoadConfig returns the persisted configuration, or nil if none exists.
	LoadConfig() (*models.Config, error)

	Close() error
}

// Opts holds configuration for store construction.
type Opts struct {
	DSN             string
	EventsPerDayCap int
	AlertHistoryCap int
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithEventsPerDayCap overrides the per-day event retention cap.
func WithEventsPerDayCap(n int) Option {
	return func(o *Opts) { o.EventsPerDayCap = n }
}

// WithAlertHistoryCap overrides the alert history retention cap.
func WithAlertHistoryCap(n int) Option {
	return func(o *Opts) { o.AlertHistoryCap = n }
}

func applyOpts(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.EventsPerDayCap <= 0 {
		cfg.EventsPerDayCap = models.DefaultEventsPerDayCap
	}
	if cfg.AlertHistoryCap <= 0 {
		cfg.AlertHistoryCap = models.DefaultAlertHistoryCap
	}
	return cfg
}

// InMemoryStore keeps everything in process memory. It backs tests and
// installations that opt out of durable storage.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   map[string][]models.BehaviorEvent
	alerts   []models.Alert
	config   *models.Config
	eventCap int
	alertCap int
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := applyOpts(opts)
	return &InMemoryStore{
		events:   make(map[string][]models.BehaviorEvent),
		eventCap: cfg.EventsPerDayCap,
		alertCap: cfg.AlertHistoryCap,
	}
}

func (s *InMemoryStore) AddEvent(ev models.BehaviorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := DayKey(ev.Timestamp)
	partition := append(s.events[day], ev)
	if len(partition) > s.eventCap {
		partition = partition[len(partition)-s.eventCap:]
	}
	s.events[day] = partition
	return nil
}

func (s *InMemoryStore) EventsByDay(day string) ([]models.BehaviorEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.BehaviorEvent, len(s.events[day]))
	copy(out, s.events[day])
	return out, nil
}

func (s *InMemoryStore) AddAlert(a models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, a)
	if len(s.alerts) > s.alertCap {
		s.alerts = s.alerts[len(s.alerts)-s.alertCap:]
	}
	return nil
}

func (s *InMemoryStore) Alerts() ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *InMemoryStore) MarkAlertRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].IsRead = true
			return nil
		}
	}
	return models.ErrAlertNotFound
}

func (s *InMemoryStore) MarkAllAlertsRead() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		s.alerts[i].IsRead = true
	}
	return nil
}

func (s *InMemoryStore) SaveConfig(cfg models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cfg
	s.config = &c
	return nil
}

func (s *InMemoryStore) LoadConfig() (*models.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, nil
	}
	c := *s.config
	return &c, nil
}

func (s *InMemoryStore) Close() error { return nil }

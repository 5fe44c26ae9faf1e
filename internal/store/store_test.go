package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/twinsense/twintuition/internal/models"
)

func testEvent(i int, ts time.Time) models.BehaviorEvent {
	return models.BehaviorEvent{
		ID:        fmt.Sprintf("e%d", i),
		UserID:    "u1",
		TwinID:    "u2",
		Timestamp: ts,
		Type:      models.EventTypeAppInteraction,
		Action:    "open_app",
	}
}

func testAlert(i int, ts time.Time) models.Alert {
	return models.Alert{
		ID:         fmt.Sprintf("a%d", i),
		Message:    "Your twin just opened the app too",
		Timestamp:  ts,
		Type:       models.AlertTypeAction,
		Confidence: 0.8,
	}
}

func TestInMemoryStoreDayPartitionCap(t *testing.T) {
	s := NewInMemoryStore(WithEventsPerDayCap(50))
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 60; i++ {
		if err := s.AddEvent(testEvent(i, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	events, err := s.EventsByDay(DayKey(base))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 50 {
		t.Fatalf("expected 50 retained events, got %d", len(events))
	}
	if events[0].ID != "e10" {
		t.Errorf("expected oldest survivor e10, got %s", events[0].ID)
	}
}

func TestInMemoryStoreAlertHistory(t *testing.T) {
	s := NewInMemoryStore(WithAlertHistoryCap(100))
	base := time.Now()

	for i := 0; i < 110; i++ {
		if err := s.AddAlert(testAlert(i, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	alerts, err := s.Alerts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 100 {
		t.Fatalf("expected 100 retained alerts, got %d", len(alerts))
	}
	// Newest first.
	if alerts[0].ID != "a109" {
		t.Errorf("expected newest alert a109 first, got %s", alerts[0].ID)
	}

	if err := s.MarkAlertRead("a109"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alerts, _ = s.Alerts()
	if !alerts[0].IsRead {
		t.Error("a109 should be marked read")
	}

	if err := s.MarkAlertRead("a0"); err != models.ErrAlertNotFound {
		t.Errorf("expected ErrAlertNotFound for evicted alert, got %v", err)
	}

	if err := s.MarkAllAlertsRead(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alerts, _ = s.Alerts()
	for _, a := range alerts {
		if !a.IsRead {
			t.Fatalf("alert %s should be read", a.ID)
		}
	}
}

func TestInMemoryStoreConfigRoundTrip(t *testing.T) {
	s := NewInMemoryStore()

	cfg, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil config before first save")
	}

	want := models.DefaultConfig()
	want.Sensitivity = 0.9
	if err := s.SaveConfig(want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("config round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "twintuition.db")
	s, err := NewSQLiteStore(WithDSN(dsn), WithEventsPerDayCap(3), WithAlertHistoryCap(2))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	defer s.Close()

	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ev := testEvent(i, base.Add(time.Duration(i)*time.Minute))
		ev.Context = models.EventContext{Mood: "happy", MoodIntensity: 0.6}
		if err := s.AddEvent(ev); err != nil {
			t.Fatalf("AddEvent failed: %v", err)
		}
	}

	events, err := s.EventsByDay(DayKey(base))
	if err != nil {
		t.Fatalf("EventsByDay failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(events))
	}
	if events[0].ID != "e2" {
		t.Errorf("expected oldest survivor e2, got %s", events[0].ID)
	}
	if events[0].Context.Mood != "happy" {
		t.Errorf("context did not round trip: %+v", events[0].Context)
	}

	for i := 0; i < 3; i++ {
		if err := s.AddAlert(testAlert(i, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("AddAlert failed: %v", err)
		}
	}
	alerts, err := s.Alerts()
	if err != nil {
		t.Fatalf("Alerts failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 retained alerts, got %d", len(alerts))
	}
	if alerts[0].ID != "a2" {
		t.Errorf("expected newest alert a2 first, got %s", alerts[0].ID)
	}

	if err := s.MarkAlertRead("a2"); err != nil {
		t.Fatalf("MarkAlertRead failed: %v", err)
	}
	if err := s.MarkAlertRead("missing"); err != models.ErrAlertNotFound {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}

	want := models.DefaultConfig()
	want.TimeWindowMinutes = 45
	if err := s.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	// Second save overwrites the singleton row.
	want.Sensitivity = 0.25
	if err := s.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig overwrite failed: %v", err)
	}
	got, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("config round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set TWINTUITION_TEST_DATABASE_URL.
	dsn := getenvOrSkip(t, "TWINTUITION_TEST_DATABASE_URL")
	s, err := NewPostgresStore(WithDSN(dsn), WithEventsPerDayCap(3))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()

	s.db.Exec("DELETE FROM behavior_events")
	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.AddEvent(testEvent(i, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("AddEvent failed: %v", err)
		}
	}
	events, err := s.EventsByDay(DayKey(base))
	if err != nil {
		t.Fatalf("EventsByDay failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 retained events, got %d", len(events))
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}

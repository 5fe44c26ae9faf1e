// Package store provides storage backends for the twintuition engine.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/twinsense/twintuition/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists engine state to a local SQLite database file.
type SQLiteStore struct {
	db       *sql.DB
	eventCap int
	alertCap int
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db, eventCap: cfg.EventsPerDayCap, alertCap: cfg.AlertHistoryCap}, nil
}

func (s *SQLiteStore) AddEvent(ev models.BehaviorEvent) error {
	ctxJSON, err := json.Marshal(ev.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal event context: %w", err)
	}

	day := DayKey(ev.Timestamp)
	_, err = s.db.Exec(
		`INSERT INTO behavior_events (id, day, user_id, twin_id, ts, type, action, context, location_redacted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, day, ev.UserID, ev.TwinID, ev.Timestamp, string(ev.Type), ev.Action, string(ctxJSON), ev.LocationRedacted,
	)
	if err != nil {
		slog.Error("SQLiteStore AddEvent failed", "error", err, "event_id", ev.ID)
		return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
	}

	// Enforce the per-day retention cap, oldest evicted first.
	_, err = s.db.Exec(
		`DELETE FROM behavior_events WHERE day = ? AND id NOT IN (
			SELECT id FROM behavior_events WHERE day = ? ORDER BY ts DESC LIMIT ?)`,
		day, day, s.eventCap,
	)
	if err != nil {
		slog.Error("SQLiteStore AddEvent retention trim failed", "error", err, "day", day)
		return fmt.Errorf("failed to trim day partition %s: %w", day, err)
	}

	slog.Debug("SQLiteStore AddEvent succeeded", "event_id", ev.ID, "day", day)
	return nil
}

func (s *SQLiteStore) EventsByDay(day string) ([]models.BehaviorEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, twin_id, ts, type, action, context, location_redacted
		 FROM behavior_events WHERE day = ? ORDER BY ts ASC`, day)
	if err != nil {
		slog.Error("SQLiteStore EventsByDay failed", "error", err, "day", day)
		return nil, fmt.Errorf("failed to query events for %s: %w", day, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *SQLiteStore) AddAlert(a models.Alert) error {
	_, err := s.db.Exec(
		`INSERT INTO alerts (id, message, ts, is_read, type, confidence) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Message, a.Timestamp, a.IsRead, string(a.Type), a.Confidence,
	)
	if err != nil {
		slog.Error("SQLiteStore AddAlert failed", "error", err, "alert_id", a.ID)
		return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
	}

	_, err = s.db.Exec(
		`DELETE FROM alerts WHERE id NOT IN (SELECT id FROM alerts ORDER BY ts DESC LIMIT ?)`,
		s.alertCap,
	)
	if err != nil {
		slog.Error("SQLiteStore AddAlert retention trim failed", "error", err)
		return fmt.Errorf("failed to trim alert history: %w", err)
	}

	slog.Debug("SQLiteStore AddAlert succeeded", "alert_id", a.ID)
	return nil
}

func (s *SQLiteStore) Alerts() ([]models.Alert, error) {
	rows, err := s.db.Query(
		`SELECT id, message, ts, is_read, type, confidence FROM alerts ORDER BY ts DESC`)
	if err != nil {
		slog.Error("SQLiteStore Alerts failed", "error", err)
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func (s *SQLiteStore) MarkAlertRead(id string) error {
	res, err := s.db.Exec(`UPDATE alerts SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore MarkAlertRead failed", "error", err, "alert_id", id)
		return fmt.Errorf("failed to mark alert %s read: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrAlertNotFound
	}
	return nil
}

func (s *SQLiteStore) MarkAllAlertsRead() error {
	_, err := s.db.Exec(`UPDATE alerts SET is_read = 1`)
	if err != nil {
		slog.Error("SQLiteStore MarkAllAlertsRead failed", "error", err)
		return fmt.Errorf("failed to mark alerts read: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveConfig(cfg models.Config) error {
	blob, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO engine_config (id, config) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET config = excluded.config`, string(blob))
	if err != nil {
		slog.Error("SQLiteStore SaveConfig failed", "error", err)
		return fmt.Errorf("failed to save config: %w", err)
	}
	slog.Debug("SQLiteStore SaveConfig succeeded")
	return nil
}

func (s *SQLiteStore) LoadConfig() (*models.Config, error) {
	var blob string
	err := s.db.QueryRow(`SELECT config FROM engine_config WHERE id = 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LoadConfig failed", "error", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg models.Config
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Package store provides storage backends for the twintuition engine.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/twinsense/twintuition/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists engine state to PostgreSQL.
type PostgresStore struct {
	db       *sql.DB
	eventCap int
	alertCap int
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied")

	return &PostgresStore{db: db, eventCap: cfg.EventsPerDayCap, alertCap: cfg.AlertHistoryCap}, nil
}

func (s *PostgresStore) AddEvent(ev models.BehaviorEvent) error {
	ctxJSON, err := json.Marshal(ev.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal event context: %w", err)
	}

	day := DayKey(ev.Timestamp)
	_, err = s.db.Exec(
		`INSERT INTO behavior_events (id, day, user_id, twin_id, ts, type, action, context, location_redacted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, day, ev.UserID, ev.TwinID, ev.Timestamp, string(ev.Type), ev.Action, string(ctxJSON), ev.LocationRedacted,
	)
	if err != nil {
		slog.Error("PostgresStore AddEvent failed", "error", err, "event_id", ev.ID)
		return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
	}

	_, err = s.db.Exec(
		`DELETE FROM behavior_events WHERE day = $1 AND id NOT IN (
			SELECT id FROM behavior_events WHERE day = $1 ORDER BY ts DESC LIMIT $2)`,
		day, s.eventCap,
	)
	if err != nil {
		slog.Error("PostgresStore AddEvent retention trim failed", "error", err, "day", day)
		return fmt.Errorf("failed to trim day partition %s: %w", day, err)
	}

	slog.Debug("PostgresStore AddEvent succeeded", "event_id", ev.ID, "day", day)
	return nil
}

func (s *PostgresStore) EventsByDay(day string) ([]models.BehaviorEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, twin_id, ts, type, action, context, location_redacted
		 FROM behavior_events WHERE day = $1 ORDER BY ts ASC`, day)
	if err != nil {
		slog.Error("PostgresStore EventsByDay failed", "error", err, "day", day)
		return nil, fmt.Errorf("failed to query events for %s: %w", day, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PostgresStore) AddAlert(a models.Alert) error {
	_, err := s.db.Exec(
		`INSERT INTO alerts (id, message, ts, is_read, type, confidence) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Message, a.Timestamp, a.IsRead, string(a.Type), a.Confidence,
	)
	if err != nil {
		slog.Error("PostgresStore AddAlert failed", "error", err, "alert_id", a.ID)
		return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
	}

	_, err = s.db.Exec(
		`DELETE FROM alerts WHERE id NOT IN (SELECT id FROM alerts ORDER BY ts DESC LIMIT $1)`,
		s.alertCap,
	)
	if err != nil {
		slog.Error("PostgresStore AddAlert retention trim failed", "error", err)
		return fmt.Errorf("failed to trim alert history: %w", err)
	}

	slog.Debug("PostgresStore AddAlert succeeded", "alert_id", a.ID)
	return nil
}

func (s *PostgresStore) Alerts() ([]models.Alert, error) {
	rows, err := s.db.Query(
		`SELECT id, message, ts, is_read, type, confidence FROM alerts ORDER BY ts DESC`)
	if err != nil {
		slog.Error("PostgresStore Alerts failed", "error", err)
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func (s *PostgresStore) MarkAlertRead(id string) error {
	res, err := s.db.Exec(`UPDATE alerts SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore MarkAlertRead failed", "error", err, "alert_id", id)
		return fmt.Errorf("failed to mark alert %s read: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrAlertNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllAlertsRead() error {
	_, err := s.db.Exec(`UPDATE alerts SET is_read = TRUE`)
	if err != nil {
		slog.Error("PostgresStore MarkAllAlertsRead failed", "error", err)
		return fmt.Errorf("failed to mark alerts read: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveConfig(cfg models.Config) error {
	blob, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO engine_config (id, config) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config`, string(blob))
	if err != nil {
		slog.Error("PostgresStore SaveConfig failed", "error", err)
		return fmt.Errorf("failed to save config: %w", err)
	}
	slog.Debug("PostgresStore SaveConfig succeeded")
	return nil
}

func (s *PostgresStore) LoadConfig() (*models.Config, error) {
	var blob string
	err := s.db.QueryRow(`SELECT config FROM engine_config WHERE id = 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadConfig failed", "error", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg models.Config
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

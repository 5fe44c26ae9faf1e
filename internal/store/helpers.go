package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twinsense/twintuition/internal/models"
)

// scanEvents converts behavior_events rows into model events. Shared by the
// SQLite and Postgres backends, whose row shapes are identical.
func scanEvents(rows *sql.Rows) ([]models.BehaviorEvent, error) {
	var events []models.BehaviorEvent
	for rows.Next() {
		var (
			ev      models.BehaviorEvent
			twinID  sql.NullString
			ctxJSON sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &twinID, &ev.Timestamp, &ev.Type, &ev.Action, &ctxJSON, &ev.LocationRedacted); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if twinID.Valid {
			ev.TwinID = twinID.String
		}
		if ctxJSON.Valid && ctxJSON.String != "" {
			if err := json.Unmarshal([]byte(ctxJSON.String), &ev.Context); err != nil {
				slog.Warn("Skipping undecodable event context", "event_id", ev.ID, "error", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// scanAlerts converts alerts rows into model alerts.
func scanAlerts(rows *sql.Rows) ([]models.Alert, error) {
	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.Message, &a.Timestamp, &a.IsRead, &a.Type, &a.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Package models defines the core data structures for the twintuition engine.
//
// It includes behavior events, sync events, alerts, and the sensitivity
// configuration shared across modules.
package models

import (
	"errors"
	"time"
)

// EventType classifies an observed user action.
type EventType string

const (
	// EventTypeAppInteraction covers app lifecycle actions such as open_app.
	EventTypeAppInteraction EventType = "app_interaction"
	// EventTypeCommunication covers messaging actions such as send_message.
	EventTypeCommunication EventType = "communication"
	// EventTypeMoodUpdate covers mood check-ins.
	EventTypeMoodUpdate EventType = "mood_update"
	// EventTypeLocationUpdate covers location pings.
	EventTypeLocationUpdate EventType = "location_update"
	// EventTypeGameAction covers in-app game moves.
	EventTypeGameAction EventType = "game_action"
)

// SyncType classifies a detected synchronicity between twins.
type SyncType string

const (
	SyncTypeSimultaneousAction SyncType = "simultaneous_action"
	SyncTypeMoodSync           SyncType = "mood_synchronization"
	SyncTypeAppSync            SyncType = "app_synchronization"
	SyncTypeLocationSync       SyncType = "location_synchronization"
	SyncTypeTemporalPattern    SyncType = "temporal_pattern"
)

// AlertType is the user-facing category of a twintuition alert.
type AlertType string

const (
	AlertTypeFeeling AlertType = "feeling"
	AlertTypeThought AlertType = "thought"
	AlertTypeAction  AlertType = "action"
)

// Validation and retention constants shared across modules.
const (
	// MaxActionLength defines the maximum allowed length for an event action discriminator.
	MaxActionLength = 100
	// DefaultBufferCap is the default capacity of the in-memory behavior buffer.
	DefaultBufferCap = 100
	// DefaultEventsPerDayCap is the default per-day retention cap for the persisted event log.
	DefaultEventsPerDayCap = 50
	// DefaultAlertHistoryCap is the default retention cap for the alert history.
	DefaultAlertHistoryCap = 100
)

// Error variables for better error handling and testability.
var (
	ErrMissingUserID         = errors.New("event user id cannot be empty")
	ErrInvalidEventType      = errors.New("invalid event type")
	ErrEmptyAction           = errors.New("event action cannot be empty")
	ErrActionTooLong         = errors.New("event action exceeds maximum length")
	ErrSensitivityRange      = errors.New("sensitivity must be in [0,1]")
	ErrThresholdRange        = errors.New("minimum confidence threshold must be in [0,1]")
	ErrTimeWindowNotPositive = errors.New("time window minutes must be positive")
	ErrAlertNotFound         = errors.New("alert not found")
)

// IsValidEventType checks if the given event type is supported.
func IsValidEventType(et EventType) bool {
	switch et {
	case EventTypeAppInteraction, EventTypeCommunication, EventTypeMoodUpdate,
		EventTypeLocationUpdate, EventTypeGameAction:
		return true
	default:
		return false
	}
}

// Coordinates is a latitude/longitude pair attached to location events.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EventContext carries the narrow, typed payload matchers need. Anything a
// matcher does not inspect goes into Meta.
type EventContext struct {
	Mood          string            `json:"mood,omitempty"`
	MoodIntensity float64           `json:"mood_intensity,omitempty"` // 0..1
	MessageLength int               `json:"message_length,omitempty"`
	GameID        string            `json:"game_id,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// BehaviorEvent represents one observed user action relevant to synchronicity
// detection. Events are immutable after ingestion.
type BehaviorEvent struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	TwinID    string       `json:"twin_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Type      EventType    `json:"type"`
	Action    string       `json:"action"`
	Context   EventContext `json:"context,omitempty"`
	// Location is present only while the event lives in the in-memory buffer;
	// persisted copies carry LocationRedacted instead.
	Location         *Coordinates `json:"location,omitempty"`
	LocationRedacted bool         `json:"location_redacted,omitempty"`
}

// Validate checks the fields a caller must supply before ingestion. ID and
// Timestamp are assigned by the engine and are not validated here.
func (e *BehaviorEvent) Validate() error {
	if e.UserID == "" {
		return ErrMissingUserID
	}
	if !IsValidEventType(e.Type) {
		return ErrInvalidEventType
	}
	if e.Action == "" {
		return ErrEmptyAction
	}
	if len(e.Action) > MaxActionLength {
		return ErrActionTooLong
	}
	return nil
}

// Redacted returns a copy safe for persistence: the raw coordinates are
// dropped and replaced with the LocationRedacted sentinel.
func (e BehaviorEvent) Redacted() BehaviorEvent {
	if e.Location == nil {
		return e
	}
	redacted := e
	redacted.Location = nil
	redacted.LocationRedacted = true
	return redacted
}

// SyncEvent is the structured output of a successful correlation, prior to
// threshold filtering.
type SyncEvent struct {
	Type           SyncType        `json:"type"`
	Confidence     float64         `json:"confidence"` // 0..1
	Description    string          `json:"description"`
	InvolvedEvents []BehaviorEvent `json:"involved_events"`
	DetectedAt     time.Time       `json:"detected_at"`
}

// AlertType maps the sync type onto the user-facing alert category: mood
// synchronicity reads as a shared feeling, temporal rhythm as a shared
// thought, everything else as a mirrored action.
func (s SyncEvent) AlertType() AlertType {
	switch s.Type {
	case SyncTypeMoodSync:
		return AlertTypeFeeling
	case SyncTypeTemporalPattern:
		return AlertTypeThought
	default:
		return AlertTypeAction
	}
}

// Alert is the user-facing record created once a sync event clears the
// confidence threshold. IsRead is the only mutable field.
type Alert struct {
	ID         string    `json:"id"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"is_read"`
	Type       AlertType `json:"type"`
	Confidence float64   `json:"confidence"`
}

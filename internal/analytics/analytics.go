// Package analytics provides derived, read-only views over the alert history:
// the sync score and the current streak. Nothing here is persisted; values
// are recomputed on demand from the history they derive from.
package analytics

import (
	"time"

	"github.com/twinsense/twintuition/internal/models"
)

// HighConfidenceThreshold marks the alerts that earn the score bonus.
const HighConfidenceThreshold = 0.8

// Score weights and cap.
const (
	maxScore            = 100
	perAlertPoints      = 2
	highConfidenceBonus = 5
)

// Breakdown explains how a sync score was earned.
type Breakdown struct {
	TotalAlerts          int                      `json:"total_alerts"`
	HighConfidenceAlerts int                      `json:"high_confidence_alerts"`
	StreakDays           int                      `json:"streak_days"`
	ByType               map[models.AlertType]int `json:"by_type"`
}

// SyncScore is the headline twin-sync metric plus its breakdown.
type SyncScore struct {
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// ComputeSyncScore derives the sync score from the alert history:
// min(100, total*2 + highConfidence*5).
func ComputeSyncScore(alerts []models.Alert, now time.Time) SyncScore {
	breakdown := Breakdown{
		TotalAlerts: len(alerts),
		ByType:      make(map[models.AlertType]int),
	}
	for _, a := range alerts {
		if a.Confidence >= HighConfidenceThreshold {
			breakdown.HighConfidenceAlerts++
		}
		breakdown.ByType[a.Type]++
	}
	breakdown.StreakDays = Streak(alerts, now)

	score := breakdown.TotalAlerts*perAlertPoints + breakdown.HighConfidenceAlerts*highConfidenceBonus
	if score > maxScore {
		score = maxScore
	}
	return SyncScore{Score: score, Breakdown: breakdown}
}

// Streak counts consecutive calendar days, walking backward from today, that
// contain at least one alert. A day without alerts breaks the chain; a quiet
// today means the streak is zero.
func Streak(alerts []models.Alert, now time.Time) int {
	days := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		days[a.Timestamp.UTC().Format("2006-01-02")] = true
	}

	streak := 0
	for day := now.UTC(); days[day.Format("2006-01-02")]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

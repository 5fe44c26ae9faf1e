package correlator

import (
	"fmt"
	"math"
	"time"

	"github.com/twinsense/twintuition/internal/models"
)

// Temporal pattern tuning constants.
const (
	// minRecurringDays is the minimum number of distinct days both twins must
	// be active in the same hour for a rhythm to count.
	minRecurringDays = 3
	// temporalBaseConfidence and temporalPerDayBoost shape how recurrence
	// count feeds confidence before tightness and sensitivity scaling.
	temporalBaseConfidence = 0.4
	temporalPerDayBoost    = 0.1
)

// detectTemporalPattern looks for a recurring hour of day on which both twins
// were active across several distinct days of the buffer. Confidence grows
// with the number of recurring days and with how tightly the events cluster
// inside the hour.
func detectTemporalPattern(events []models.BehaviorEvent, cfg models.Config, now time.Time) (models.SyncEvent, bool) {
	type bucket struct {
		days    map[string]map[string]bool // day -> user ids active
		events  []models.BehaviorEvent
		minutes []float64
	}

	buckets := make(map[int]*bucket)
	for _, ev := range events {
		if ev.TwinID == "" {
			continue
		}
		hour := ev.Timestamp.UTC().Hour()
		b := buckets[hour]
		if b == nil {
			b = &bucket{days: make(map[string]map[string]bool)}
			buckets[hour] = b
		}
		day := ev.Timestamp.UTC().Format("2006-01-02")
		if b.days[day] == nil {
			b.days[day] = make(map[string]bool)
		}
		b.days[day][ev.UserID] = true
		b.events = append(b.events, ev)
		b.minutes = append(b.minutes, float64(ev.Timestamp.UTC().Minute()))
	}

	var (
		best     models.SyncEvent
		bestHour int
		found    bool
	)
	for hour, b := range buckets {
		recurring := 0
		for _, users := range b.days {
			if len(users) >= 2 {
				recurring++
			}
		}
		if recurring < minRecurringDays {
			continue
		}

		raw := temporalBaseConfidence + temporalPerDayBoost*float64(recurring)
		confidence := clamp01(raw * hourTightness(b.minutes) * cfg.Sensitivity)
		if confidence <= 0 {
			continue
		}
		if !found || confidence > best.Confidence {
			bestHour = hour
			best = models.SyncEvent{
				Type:           models.SyncTypeTemporalPattern,
				Confidence:     confidence,
				Description:    fmt.Sprintf("The twins keep showing up around %02d:00, %d days running", bestHour, recurring),
				InvolvedEvents: b.events,
				DetectedAt:     now,
			}
			found = true
		}
	}
	return best, found
}

// hourTightness maps the spread of minute offsets inside an hour bucket onto
// (0,1]: events all at the same minute score 1, a mean deviation of a full
// half hour scores near 0.
func hourTightness(minutes []float64) float64 {
	if len(minutes) == 0 {
		return 0
	}
	var sum float64
	for _, m := range minutes {
		sum += m
	}
	mean := sum / float64(len(minutes))

	var dev float64
	for _, m := range minutes {
		dev += math.Abs(m - mean)
	}
	dev /= float64(len(minutes))

	return clamp01(1 - dev/30)
}

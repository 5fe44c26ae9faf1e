// Package correlator implements the synchronicity matchers for the
// twintuition engine.
//
// All functions are pure: given events, a config, and a detection time they
// return scored sync events without side effects. Confidence is always a
// monotone function of closeness (time, distance, mood, or recurrence)
// multiplied by the user-tunable sensitivity, clamped to [0,1].
package correlator

import (
	"time"

	"github.com/twinsense/twintuition/internal/models"
)

// CheckImmediate evaluates a freshly ingested event against the buffered
// events inside the configured time window and returns the highest-confidence
// match, or false when nothing matched. Threshold filtering happens
// downstream in the dispatcher.
func CheckImmediate(ev models.BehaviorEvent, buffered []models.BehaviorEvent, cfg models.Config, now time.Time) (models.SyncEvent, bool) {
	window := time.Duration(cfg.TimeWindowMinutes) * time.Minute

	var best models.SyncEvent
	found := false
	for _, other := range buffered {
		if other.ID == ev.ID {
			continue
		}
		if gap(ev, other) > window {
			continue
		}
		for _, match := range matchPair(ev, other, cfg, now) {
			if !found || match.Confidence > best.Confidence {
				best = match
				found = true
			}
		}
	}
	return best, found
}

// AnalyzeBatch evaluates all matchers across the whole buffer: every in-window
// twin pair, plus recurring same-hour activity across days. It returns every
// match with positive confidence; deduplication and threshold filtering
// happen downstream.
func AnalyzeBatch(events []models.BehaviorEvent, cfg models.Config, now time.Time) []models.SyncEvent {
	window := time.Duration(cfg.TimeWindowMinutes) * time.Minute

	var results []models.SyncEvent
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if gap(events[i], events[j]) > window {
				continue
			}
			results = append(results, matchPair(events[i], events[j], cfg, now)...)
		}
	}

	if cfg.EnableActionSync {
		if pattern, ok := detectTemporalPattern(events, cfg, now); ok {
			results = append(results, pattern)
		}
	}
	return results
}

// matchPair runs every enabled pair matcher on two events and returns the
// matches with positive confidence.
func matchPair(a, b models.BehaviorEvent, cfg models.Config, now time.Time) []models.SyncEvent {
	if !isTwinPair(a, b) {
		return nil
	}

	var matches []models.SyncEvent
	if cfg.EnableActionSync {
		// App opens match the more specific matcher only.
		if m, ok := matchAppSync(a, b, cfg, now); ok {
			matches = append(matches, m)
		} else if m, ok := matchSimultaneousAction(a, b, cfg, now); ok {
			matches = append(matches, m)
		}
	}
	if cfg.EnableMoodSync {
		if m, ok := matchMoodSync(a, b, cfg, now); ok {
			matches = append(matches, m)
		}
	}
	if cfg.EnableLocationSync {
		if m, ok := matchLocationSync(a, b, cfg, now); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

// isTwinPair reports whether two events belong to opposite sides of a twin
// pairing.
func isTwinPair(a, b models.BehaviorEvent) bool {
	if a.UserID == b.UserID {
		return false
	}
	return a.TwinID == b.UserID || b.TwinID == a.UserID
}

// gap returns the absolute time distance between two events.
func gap(a, b models.BehaviorEvent) time.Duration {
	d := a.Timestamp.Sub(b.Timestamp)
	if d < 0 {
		d = -d
	}
	return d
}

// timeCloseness maps a time gap onto (0,1]: zero gap scores 1, a gap equal to
// the window scores 0.
func timeCloseness(a, b models.BehaviorEvent, cfg models.Config) float64 {
	window := time.Duration(cfg.TimeWindowMinutes) * time.Minute
	if window <= 0 {
		return 0
	}
	c := 1 - float64(gap(a, b))/float64(window)
	if c < 0 {
		return 0
	}
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

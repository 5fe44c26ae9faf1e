package correlator

import (
	"fmt"
	"math"
	"time"

	"github.com/twinsense/twintuition/internal/models"
)

// Matcher tuning constants.
const (
	// ProximityRadiusMeters is the distance under which two location pings
	// count as a location synchronicity.
	ProximityRadiusMeters = 1000.0
	// moodAdjacentSimilarity scores moods one step apart on the ladder.
	moodAdjacentSimilarity = 0.6
	// moodCategoryWeight and moodIntensityWeight combine category similarity
	// with intensity closeness in the mood matcher.
	moodCategoryWeight  = 0.7
	moodIntensityWeight = 0.3

	earthRadiusMeters = 6371000.0
)

// moodLadder orders mood categories so adjacency is meaningful. Moods not on
// the ladder only match themselves.
var moodLadder = []string{"sad", "anxious", "calm", "content", "happy", "excited"}

// matchSimultaneousAction detects the same action performed by both twins
// inside the window. Confidence rises as the time gap shrinks.
func matchSimultaneousAction(a, b models.BehaviorEvent, cfg models.Config, now time.Time) (models.SyncEvent, bool) {
	if a.Type != b.Type || a.Action != b.Action {
		return models.SyncEvent{}, false
	}
	// Mood and location events belong to their dedicated matchers and toggles.
	if a.Type == models.EventTypeMoodUpdate || a.Type == models.EventTypeLocationUpdate {
		return models.SyncEvent{}, false
	}
	confidence := clamp01(timeCloseness(a, b, cfg) * cfg.Sensitivity)
	if confidence <= 0 {
		return models.SyncEvent{}, false
	}
	return models.SyncEvent{
		Type:           models.SyncTypeSimultaneousAction,
		Confidence:     confidence,
		Description:    fmt.Sprintf("Both twins performed %s within %s of each other", a.Action, gap(a, b).Round(time.Second)),
		InvolvedEvents: []models.BehaviorEvent{a, b},
		DetectedAt:     now,
	}, true
}

// matchAppSync detects both twins opening the app inside the window.
func matchAppSync(a, b models.BehaviorEvent, cfg models.Config, now time.Time) (models.SyncEvent, bool) {
	if a.Type != models.EventTypeAppInteraction || b.Type != models.EventTypeAppInteraction {
		return models.SyncEvent{}, false
	}
	if a.Action != "open_app" || b.Action != "open_app" {
		return models.SyncEvent{}, false
	}
	confidence := clamp01(timeCloseness(a, b, cfg) * cfg.Sensitivity)
	if confidence <= 0 {
		return models.SyncEvent{}, false
	}
	return models.SyncEvent{
		Type:           models.SyncTypeAppSync,
		Confidence:     confidence,
		Description:    fmt.Sprintf("Both twins opened the app within %s of each other", gap(a, b).Round(time.Second)),
		InvolvedEvents: []models.BehaviorEvent{a, b},
		DetectedAt:     now,
	}, true
}

// matchMoodSync detects equal or adjacent mood categories reported by both
// twins inside the window. Confidence combines category similarity with
// intensity closeness.
func matchMoodSync(a, b models.BehaviorEvent, cfg models.Config, now time.Time) (models.SyncEvent, bool) {
	if a.Type != models.EventTypeMoodUpdate || b.Type != models.EventTypeMoodUpdate {
		return models.SyncEvent{}, false
	}

	similarity := moodSimilarity(a.Context.Mood, b.Context.Mood)
	if similarity == 0 {
		return models.SyncEvent{}, false
	}

	intensityCloseness := 1 - math.Abs(a.Context.MoodIntensity-b.Context.MoodIntensity)
	confidence := clamp01((moodCategoryWeight*similarity + moodIntensityWeight*intensityCloseness) * cfg.Sensitivity)
	if confidence <= 0 {
		return models.SyncEvent{}, false
	}

	desc := fmt.Sprintf("Both twins are feeling %s", a.Context.Mood)
	if a.Context.Mood != b.Context.Mood {
		desc = fmt.Sprintf("The twins reported closely related moods: %s and %s", a.Context.Mood, b.Context.Mood)
	}
	return models.SyncEvent{
		Type:           models.SyncTypeMoodSync,
		Confidence:     confidence,
		Description:    desc,
		InvolvedEvents: []models.BehaviorEvent{a, b},
		DetectedAt:     now,
	}, true
}

// matchLocationSync detects both twins pinging locations under the proximity
// radius inside the window. Confidence rises as the distance shrinks. Events
// without raw coordinates (permission denied, or already redacted) are
// skipped, never an error.
func matchLocationSync(a, b models.BehaviorEvent, cfg models.Config, now time.Time) (models.SyncEvent, bool) {
	if a.Type != models.EventTypeLocationUpdate || b.Type != models.EventTypeLocationUpdate {
		return models.SyncEvent{}, false
	}
	if a.Location == nil || b.Location == nil {
		return models.SyncEvent{}, false
	}

	distance := haversineMeters(*a.Location, *b.Location)
	if distance > ProximityRadiusMeters {
		return models.SyncEvent{}, false
	}

	closeness := 1 - distance/ProximityRadiusMeters
	confidence := clamp01(closeness * cfg.Sensitivity)
	if confidence <= 0 {
		return models.SyncEvent{}, false
	}
	return models.SyncEvent{
		Type:           models.SyncTypeLocationSync,
		Confidence:     confidence,
		Description:    fmt.Sprintf("The twins were within %.0fm of each other", distance),
		InvolvedEvents: []models.BehaviorEvent{a, b},
		DetectedAt:     now,
	}, true
}

// moodSimilarity returns 1 for equal moods, a reduced score for ladder
// neighbours, and 0 otherwise.
func moodSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ai, bi := moodIndex(a), moodIndex(b)
	if ai < 0 || bi < 0 {
		return 0
	}
	if ai-bi == 1 || bi-ai == 1 {
		return moodAdjacentSimilarity
	}
	return 0
}

func moodIndex(mood string) int {
	for i, m := range moodLadder {
		if m == mood {
			return i
		}
	}
	return -1
}

// haversineMeters returns the great-circle distance between two coordinates.
func haversineMeters(a, b models.Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

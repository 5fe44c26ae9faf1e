// Package buffer provides the bounded in-memory behavior buffer used for
// correlation lookups. It is independent of the persisted event store.
package buffer

import (
	"log/slog"
	"sync"

	"github.com/twinsense/twintuition/internal/models"
)

// Ring holds the most recent N behavior events, oldest evicted first.
// Appends and snapshot reads are safe for concurrent use.
type Ring struct {
	mu     sync.RWMutex
	events []models.BehaviorEvent
	cap    int
}

// NewRing creates a buffer with the given capacity. Non-positive capacities
// fall back to the default.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		slog.Debug("Ring capacity not positive, using default", "requested", capacity, "default", models.DefaultBufferCap)
		capacity = models.DefaultBufferCap
	}
	return &Ring{
		events: make([]models.BehaviorEvent, 0, capacity),
		cap:    capacity,
	}
}

// Append adds an event, evicting the oldest entry once the buffer is full.
// It never fails; the buffer is the source of truth for correlation.
func (r *Ring) Append(ev models.BehaviorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
	if len(r.events) > r.cap {
		overflow := len(r.events) - r.cap
		r.events = r.events[overflow:]
	}
}

// Snapshot returns a copy of the buffered events in insertion order. Callers
// may read the copy without holding any lock while appends continue.
func (r *Ring) Snapshot() []models.BehaviorEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.BehaviorEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the current number of buffered events.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Cap returns the buffer capacity.
func (r *Ring) Cap() int {
	return r.cap
}

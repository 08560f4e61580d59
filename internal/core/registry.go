package core

import (
	"sort"
	"sync"
	"time"
)

// ActiveThreatRegistry is the live set of threat events within the retention
// horizon, keyed by event ID. It is mutated only by the pipeline's consumer
// and cleanup paths but read concurrently by scheduled cycles and the API,
// so all access goes through the lock.
type ActiveThreatRegistry struct {
	mu     sync.RWMutex
	events map[string]*ThreatEvent
}

// NewActiveThreatRegistry creates an empty registry.
func NewActiveThreatRegistry() *ActiveThreatRegistry {
	return &ActiveThreatRegistry{events: make(map[string]*ThreatEvent)}
}

// Insert adds or replaces an event by ID.
func (r *ActiveThreatRegistry) Insert(event *ThreatEvent) {
	r.mu.Lock()
	r.events[event.ID] = event
	r.mu.Unlock()
}

// Get returns the event with the given ID, or nil.
func (r *ActiveThreatRegistry) Get(id string) *ThreatEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events[id]
}

// All returns a snapshot of every retained event, unordered.
func (r *ActiveThreatRegistry) All() []*ThreatEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ThreatEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	return out
}

// Since returns events with timestamps at or after cutoff, sorted by
// timestamp ascending. Pattern analysis depends on this ordering.
func (r *ActiveThreatRegistry) Since(cutoff time.Time) []*ThreatEvent {
	r.mu.RLock()
	out := make([]*ThreatEvent, 0, len(r.events))
	for _, e := range r.events {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// EvictOlderThan removes events with timestamps before cutoff and returns
// the number evicted.
func (r *ActiveThreatRegistry) EvictOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.events {
		if e.Timestamp.Before(cutoff) {
			delete(r.events, id)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of retained events.
func (r *ActiveThreatRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// EventDedup is a short-lived deduplication cache that keeps a retried or
// double-submitted detection from being counted twice in window aggregation
// and pattern analysis. Keys on (type, detection ID, source, coarse score
// bucket) with a TTL.
type EventDedup struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
}

// NewEventDedup creates a dedup cache. TTL controls how long a hash is
// remembered; maxSize caps memory by evicting old entries.
func NewEventDedup(ttl time.Duration, maxSize int) *EventDedup {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 50000
	}
	return &EventDedup{
		seen:    make(map[string]time.Time, maxSize/2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// IsDuplicate returns true if an equivalent event was seen within the TTL
// window; otherwise it records the event hash.
func (d *EventDedup) IsDuplicate(event *ThreatEvent) bool {
	hash := d.hash(event)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if seenAt, ok := d.seen[hash]; ok {
		if now.Sub(seenAt) < d.ttl {
			return true
		}
	}

	d.seen[hash] = now
	if len(d.seen) > d.maxSize {
		d.evictLocked(now)
	}
	return false
}

// Size returns the number of cached hashes.
func (d *EventDedup) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// hash fingerprints the submission identity, not the event instance: two
// events with the same detection ID, source, and score bucket are the same
// detection.
func (d *EventDedup) hash(event *ThreatEvent) string {
	h := sha256.New()
	h.Write([]byte(event.Type.String()))
	h.Write([]byte{0})
	h.Write([]byte(event.DetectionID))
	h.Write([]byte{0})
	h.Write([]byte(event.SourceID()))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%.3f", event.Score)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// evictLocked removes expired entries; if still over capacity, drops half.
func (d *EventDedup) evictLocked(now time.Time) {
	for k, t := range d.seen {
		if now.Sub(t) >= d.ttl {
			delete(d.seen, k)
		}
	}
	if len(d.seen) > d.maxSize {
		count := 0
		target := len(d.seen) / 2
		for k := range d.seen {
			delete(d.seen, k)
			count++
			if count >= target {
				break
			}
		}
	}
}

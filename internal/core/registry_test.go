package core

import (
	"testing"
	"time"
)

func eventAt(ts time.Time, id string) *ThreatEvent {
	return &ThreatEvent{
		ID:        id,
		Type:      ThreatDataPoisoning,
		Level:     LevelLow,
		Score:     0.2,
		Timestamp: ts,
		Details:   map[string]interface{}{},
	}
}

func TestRegistry_InsertAndGet(t *testing.T) {
	r := NewActiveThreatRegistry()
	e := eventAt(time.Now(), "e1")
	r.Insert(e)

	if r.Count() != 1 {
		t.Fatalf("count = %d", r.Count())
	}
	if got := r.Get("e1"); got != e {
		t.Errorf("Get returned %v", got)
	}
	if r.Get("missing") != nil {
		t.Error("unknown ID should return nil")
	}
}

func TestRegistry_InsertReplacesByID(t *testing.T) {
	r := NewActiveThreatRegistry()
	r.Insert(eventAt(time.Now(), "e1"))
	r.Insert(eventAt(time.Now(), "e1"))
	if r.Count() != 1 {
		t.Errorf("same ID should not grow the registry, count = %d", r.Count())
	}
}

func TestRegistry_SinceSortedAscending(t *testing.T) {
	r := NewActiveThreatRegistry()
	now := time.Now().UTC()
	r.Insert(eventAt(now.Add(-3*time.Minute), "old"))
	r.Insert(eventAt(now.Add(-1*time.Minute), "newest"))
	r.Insert(eventAt(now.Add(-2*time.Minute), "middle"))

	got := r.Since(now.Add(-10 * time.Minute))
	if len(got) != 3 {
		t.Fatalf("Since returned %d events", len(got))
	}
	if got[0].ID != "old" || got[1].ID != "middle" || got[2].ID != "newest" {
		t.Errorf("events not sorted ascending: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestRegistry_SinceExcludesBeforeCutoff(t *testing.T) {
	r := NewActiveThreatRegistry()
	now := time.Now().UTC()
	r.Insert(eventAt(now.Add(-10*time.Minute), "stale"))
	r.Insert(eventAt(now, "fresh"))

	got := r.Since(now.Add(-5 * time.Minute))
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("expected only the fresh event, got %d", len(got))
	}
}

func TestRegistry_EvictOlderThan(t *testing.T) {
	r := NewActiveThreatRegistry()
	now := time.Now().UTC()
	r.Insert(eventAt(now.Add(-2*time.Hour), "a"))
	r.Insert(eventAt(now.Add(-90*time.Minute), "b"))
	r.Insert(eventAt(now, "c"))

	evicted := r.EvictOlderThan(now.Add(-time.Hour))
	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}
	if r.Count() != 1 || r.Get("c") == nil {
		t.Errorf("only the recent event should remain, count = %d", r.Count())
	}
}

package core

import (
	"fmt"
	"testing"
	"time"
)

func dedupEvent(detectionID, sourceID string, score float64) *ThreatEvent {
	return &ThreatEvent{
		ID:          "ignored", // instance identity must not affect dedup
		DetectionID: detectionID,
		Type:        ThreatDataPoisoning,
		Score:       score,
		Details:     map[string]interface{}{"source_id": sourceID},
	}
}

func TestEventDedup_FirstSubmission_NotDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	if d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5)) {
		t.Error("first submission should not be a duplicate")
	}
}

func TestEventDedup_SameDetection_IsDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5))
	if !d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5)) {
		t.Error("resubmitted detection should be a duplicate")
	}
}

func TestEventDedup_DifferentDetectionID_NotDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5))
	if d.IsDuplicate(dedupEvent("det-2", "src-1", 0.5)) {
		t.Error("different detection ID should not be a duplicate")
	}
}

func TestEventDedup_DifferentSource_NotDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5))
	if d.IsDuplicate(dedupEvent("det-1", "src-2", 0.5)) {
		t.Error("different source should not be a duplicate")
	}
}

func TestEventDedup_ScoreBucketing(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5))
	// Score differences below the 3-decimal bucket collapse together
	if !d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5001)) {
		t.Error("scores in the same bucket should collide")
	}
	if d.IsDuplicate(dedupEvent("det-1", "src-1", 0.6)) {
		t.Error("clearly different score should not be a duplicate")
	}
}

func TestEventDedup_TTLExpiry(t *testing.T) {
	d := NewEventDedup(50*time.Millisecond, 1000)
	d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5))
	time.Sleep(100 * time.Millisecond)
	if d.IsDuplicate(dedupEvent("det-1", "src-1", 0.5)) {
		t.Error("event should not be duplicate after TTL expiry")
	}
}

func TestEventDedup_MaxSizeEviction(t *testing.T) {
	d := NewEventDedup(10*time.Second, 10)
	for i := 0; i < 30; i++ {
		d.IsDuplicate(dedupEvent(fmt.Sprintf("det-%d", i), "src-1", 0.5))
	}
	if d.Size() > 15 { // some slack for eviction timing
		t.Errorf("cache size %d exceeds expected cap", d.Size())
	}
}

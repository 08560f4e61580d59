package core

import (
	"fmt"
	"testing"
	"time"
)

func patternEvents(now time.Time, threatType ThreatType, n int, level ThreatLevel) []*ThreatEvent {
	events := make([]*ThreatEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, &ThreatEvent{
			ID:        fmt.Sprintf("%s-%d", threatType, i),
			Type:      threatType,
			Level:     level,
			Score:     0.3,
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Details:   map[string]interface{}{},
		})
	}
	return events
}

func TestPatternDetector_RepeatedAtThreshold(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig(), time.Minute)
	now := time.Now().UTC()

	events := patternEvents(now, ThreatAdversarialAttack, 5, LevelMedium)
	patterns := d.Detect(events, now)

	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	p := patterns[0]
	if p.Type != PatternRepeated {
		t.Errorf("type = %v", p.Type)
	}
	if p.Target != "ADVERSARIAL_ATTACK" {
		t.Errorf("target = %q", p.Target)
	}
	if p.Count != 5 {
		t.Errorf("count = %d", p.Count)
	}
}

func TestPatternDetector_RepeatedBelowThreshold(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig(), time.Minute)
	now := time.Now().UTC()

	events := patternEvents(now, ThreatAdversarialAttack, 4, LevelMedium)
	if patterns := d.Detect(events, now); len(patterns) != 0 {
		t.Errorf("4 events should not trigger the repeated rule, got %v", patterns)
	}
}

func TestPatternDetector_RepeatedCountsPerType(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig(), time.Minute)
	now := time.Now().UTC()

	// 3 + 3 events of different types: neither type reaches 5
	events := append(
		patternEvents(now, ThreatDataPoisoning, 3, LevelMedium),
		patternEvents(now, ThreatAdversarialAttack, 3, LevelMedium)...,
	)
	if patterns := d.Detect(events, now); len(patterns) != 0 {
		t.Errorf("mixed types below per-type threshold should not fire, got %v", patterns)
	}
}

func TestPatternDetector_Escalating(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig(), time.Minute)
	now := time.Now().UTC()

	// Strictly increasing levels: every consecutive pair escalates
	levels := []ThreatLevel{LevelLow, LevelMedium, LevelHigh, LevelCritical}
	events := make([]*ThreatEvent, 0, len(levels))
	for i, lv := range levels {
		events = append(events, &ThreatEvent{
			ID:        fmt.Sprintf("esc-%d", i),
			Type:      ThreatModelIntegrity,
			Level:     lv,
			Score:     0.3,
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Details:   map[string]interface{}{},
		})
	}

	patterns := d.Detect(events, now)
	found := false
	for _, p := range patterns {
		if p.Type == PatternEscalating {
			found = true
			if p.Count != 4 {
				t.Errorf("escalating count = %d", p.Count)
			}
		}
	}
	if !found {
		t.Error("expected an escalating pattern")
	}
}

func TestPatternDetector_FlatLevelsNotEscalating(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig(), time.Minute)
	now := time.Now().UTC()

	events := patternEvents(now, ThreatModelIntegrity, 4, LevelMedium)
	for _, p := range d.Detect(events, now) {
		if p.Type == PatternEscalating {
			t.Error("flat levels should not look escalating")
		}
	}
}

func TestPatternDetector_Distributed(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig(), time.Minute)
	now := time.Now().UTC()

	events := make([]*ThreatEvent, 0, 5)
	for i := 0; i < 5; i++ {
		events = append(events, &ThreatEvent{
			ID:        fmt.Sprintf("dist-%d", i),
			Type:      ThreatAdversarialAttack,
			Level:     LevelMedium,
			Score:     0.5,
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Details:   map[string]interface{}{"source_id": fmt.Sprintf("client-%d", i%3)},
		})
	}

	patterns := d.Detect(events, now)
	found := false
	for _, p := range patterns {
		if p.Type == PatternDistributed {
			found = true
			if p.Target != "multi_source" {
				t.Errorf("target = %q", p.Target)
			}
			if p.Count != 5 {
				t.Errorf("count = %d", p.Count)
			}
		}
	}
	if !found {
		t.Error("expected a distributed pattern for 5 events over 3 sources")
	}
}

func TestPatternDetector_DistributedNeedsDistinctSources(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig(), time.Minute)
	now := time.Now().UTC()

	// 5 events, all from one source
	events := make([]*ThreatEvent, 0, 5)
	for i := 0; i < 5; i++ {
		events = append(events, &ThreatEvent{
			ID:        fmt.Sprintf("single-%d", i),
			Type:      ThreatDataPoisoning,
			Level:     LevelLow,
			Score:     0.2,
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Details:   map[string]interface{}{"source_id": "client-1"},
		})
	}
	for _, p := range d.Detect(events, now) {
		if p.Type == PatternDistributed {
			t.Error("single-source events should not look distributed")
		}
	}
}

func TestPatternDetector_SuppressionMutesRefire(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig(), time.Minute)
	now := time.Now().UTC()
	events := patternEvents(now, ThreatAdversarialAttack, 5, LevelMedium)

	if got := d.Detect(events, now); len(got) != 1 {
		t.Fatalf("first pass should fire, got %d", len(got))
	}
	if got := d.Detect(events, now.Add(10*time.Second)); len(got) != 0 {
		t.Errorf("second pass inside suppression window should be muted, got %d", len(got))
	}
	if got := d.Detect(events, now.Add(2*time.Minute)); len(got) != 1 {
		t.Errorf("pass after suppression window should fire again, got %d", len(got))
	}
}

func TestPatternDetector_ConfigurableThresholds(t *testing.T) {
	cfg := PatternConfig{
		RepeatedThreshold:     2,
		EscalatingMinEvents:   10,
		EscalatingRatio:       0.9,
		DistributedMinSources: 10,
		DistributedMinEvents:  10,
	}
	d := NewPatternDetector(cfg, time.Minute)
	now := time.Now().UTC()

	events := patternEvents(now, ThreatDataPoisoning, 2, LevelLow)
	patterns := d.Detect(events, now)
	if len(patterns) != 1 || patterns[0].Type != PatternRepeated {
		t.Errorf("lowered threshold should fire at 2 events, got %v", patterns)
	}
}

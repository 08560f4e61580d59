package core

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// PatternType classifies a recognized multi-event attack pattern.
type PatternType int

const (
	PatternRepeated PatternType = iota
	PatternEscalating
	PatternDistributed
)

func (p PatternType) String() string {
	switch p {
	case PatternRepeated:
		return "REPEATED_ATTACK"
	case PatternEscalating:
		return "ESCALATING_ATTACK"
	case PatternDistributed:
		return "DISTRIBUTED_ATTACK"
	default:
		return "UNKNOWN"
	}
}

func (p PatternType) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// AttackPattern is a derived, transient match over the recent event window.
// It is recomputed per detection pass and never persisted independently of
// the alert it triggers.
type AttackPattern struct {
	Type   PatternType `json:"type"`
	Target string      `json:"target"`
	Count  int         `json:"count"`
}

// PatternConfig holds the pattern rule thresholds. The defaults are the
// calibration the rules shipped with; their derivation is undocumented, so
// they are knobs rather than invariants.
type PatternConfig struct {
	RepeatedThreshold     int     `yaml:"repeated_threshold"`
	EscalatingMinEvents   int     `yaml:"escalating_min_events"`
	EscalatingRatio       float64 `yaml:"escalating_ratio"`
	DistributedMinSources int     `yaml:"distributed_min_sources"`
	DistributedMinEvents  int     `yaml:"distributed_min_events"`
}

// DefaultPatternConfig returns the stock thresholds.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		RepeatedThreshold:     5,
		EscalatingMinEvents:   3,
		EscalatingRatio:       0.5,
		DistributedMinSources: 3,
		DistributedMinEvents:  5,
	}
}

// PatternDetector evaluates the attack-pattern rules over a window of
// chronologically sorted events. It deduplicates matches so a persisting
// pattern fires one alert per suppression interval rather than one per
// event.
type PatternDetector struct {
	mu       sync.Mutex
	cfg      PatternConfig
	lastFire map[string]time.Time // "type:target" → last match time
	suppress time.Duration
}

// NewPatternDetector creates a detector. suppress controls how long a
// (pattern, target) match is muted after firing.
func NewPatternDetector(cfg PatternConfig, suppress time.Duration) *PatternDetector {
	if suppress <= 0 {
		suppress = 5 * time.Minute
	}
	return &PatternDetector{
		cfg:      cfg,
		lastFire: make(map[string]time.Time),
		suppress: suppress,
	}
}

// Detect evaluates all rules against events (which must be sorted by
// timestamp ascending) and returns newly fired patterns.
func (d *PatternDetector) Detect(events []*ThreatEvent, now time.Time) []AttackPattern {
	var matched []AttackPattern

	matched = append(matched, d.detectRepeated(events)...)
	if p, ok := d.detectEscalating(events); ok {
		matched = append(matched, p)
	}
	if p, ok := d.detectDistributed(events); ok {
		matched = append(matched, p)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fired := matched[:0]
	for _, p := range matched {
		key := fmt.Sprintf("%s:%s", p.Type, p.Target)
		if last, ok := d.lastFire[key]; ok && now.Sub(last) < d.suppress {
			continue
		}
		d.lastFire[key] = now
		fired = append(fired, p)
	}

	// Opportunistic purge of stale suppression entries.
	for key, last := range d.lastFire {
		if now.Sub(last) > 4*d.suppress {
			delete(d.lastFire, key)
		}
	}
	return fired
}

// detectRepeated flags any threat type with at least RepeatedThreshold
// occurrences in the window.
func (d *PatternDetector) detectRepeated(events []*ThreatEvent) []AttackPattern {
	counts := make(map[ThreatType]int)
	for _, e := range events {
		counts[e.Type]++
	}
	var out []AttackPattern
	for _, t := range ThreatTypes {
		if counts[t] >= d.cfg.RepeatedThreshold {
			out = append(out, AttackPattern{Type: PatternRepeated, Target: t.String(), Count: counts[t]})
		}
	}
	return out
}

// detectEscalating fires when, among at least EscalatingMinEvents
// chronologically sorted events, at least EscalatingRatio of consecutive
// pairs show a strict increase in threat level.
func (d *PatternDetector) detectEscalating(events []*ThreatEvent) (AttackPattern, bool) {
	if len(events) < d.cfg.EscalatingMinEvents {
		return AttackPattern{}, false
	}
	increases := 0
	for i := 1; i < len(events); i++ {
		if events[i].Level > events[i-1].Level {
			increases++
		}
	}
	pairs := len(events) - 1
	if float64(increases) >= d.cfg.EscalatingRatio*float64(pairs) {
		return AttackPattern{Type: PatternEscalating, Target: "threat_level", Count: len(events)}, true
	}
	return AttackPattern{}, false
}

// detectDistributed fires when the window holds at least
// DistributedMinEvents events spread over DistributedMinSources distinct
// source IDs.
func (d *PatternDetector) detectDistributed(events []*ThreatEvent) (AttackPattern, bool) {
	if len(events) < d.cfg.DistributedMinEvents {
		return AttackPattern{}, false
	}
	sources := make(map[string]struct{})
	for _, e := range events {
		if s := e.SourceID(); s != "" {
			sources[s] = struct{}{}
		}
	}
	if len(sources) >= d.cfg.DistributedMinSources {
		return AttackPattern{Type: PatternDistributed, Target: "multi_source", Count: len(events)}, true
	}
	return AttackPattern{}, false
}

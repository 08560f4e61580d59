package core

import (
	"encoding/json"
	"testing"
)

func TestThreatType_StringRoundTrip(t *testing.T) {
	for _, tt := range ThreatTypes {
		parsed, ok := ParseThreatType(tt.String())
		if !ok {
			t.Errorf("ParseThreatType(%q) not ok", tt.String())
		}
		if parsed != tt {
			t.Errorf("round trip of %v gave %v", tt, parsed)
		}
	}
}

func TestParseThreatType_Unknown(t *testing.T) {
	if _, ok := ParseThreatType("SOMETHING_ELSE"); ok {
		t.Error("unknown threat type should not parse")
	}
}

func TestLevelForScore_Boundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  ThreatLevel
	}{
		{0, LevelLow},
		{0.39, LevelLow},
		{0.4, LevelMedium},
		{0.59, LevelMedium},
		{0.6, LevelHigh},
		{0.79, LevelHigh},
		{0.8, LevelCritical},
		{1.0, LevelCritical},
	}
	for _, c := range cases {
		if got := LevelForScore(c.score); got != c.want {
			t.Errorf("LevelForScore(%f) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestNewThreatEvent_Fields(t *testing.T) {
	e := NewThreatEvent("det-1", ThreatAdversarialAttack, 0.85, map[string]interface{}{"source_id": "client-7"})
	if e.ID == "" {
		t.Error("event should get a generated ID")
	}
	if e.DetectionID != "det-1" {
		t.Errorf("detection ID = %q", e.DetectionID)
	}
	if e.Type != ThreatAdversarialAttack {
		t.Errorf("type = %v", e.Type)
	}
	if e.Level != LevelCritical {
		t.Errorf("score 0.85 should be CRITICAL, got %v", e.Level)
	}
	if e.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if e.SourceID() != "client-7" {
		t.Errorf("source ID = %q", e.SourceID())
	}
}

func TestNewThreatEvent_NilDetails(t *testing.T) {
	e := NewThreatEvent("", ThreatDataPoisoning, 0.1, nil)
	if e.Details == nil {
		t.Fatal("details map should never be nil")
	}
	if e.SourceID() != "" {
		t.Errorf("missing source should be empty, got %q", e.SourceID())
	}
}

func TestThreatEvent_JSONEnumsAsStrings(t *testing.T) {
	e := NewThreatEvent("det-2", ThreatModelIntegrity, 0.65, nil)
	data, err := e.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != "MODEL_INTEGRITY" {
		t.Errorf("type serialized as %v", raw["type"])
	}
	if raw["level"] != "HIGH" {
		t.Errorf("level serialized as %v", raw["level"])
	}

	back, err := UnmarshalThreatEvent(data)
	if err != nil {
		t.Fatalf("UnmarshalThreatEvent: %v", err)
	}
	if back.Type != ThreatModelIntegrity || back.Level != LevelHigh {
		t.Errorf("round trip lost enums: %v %v", back.Type, back.Level)
	}
}

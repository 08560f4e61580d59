package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ThreatType identifies which detector class produced a threat event.
type ThreatType int

const (
	ThreatDataPoisoning ThreatType = iota
	ThreatAdversarialAttack
	ThreatModelIntegrity
)

// ThreatTypes lists all threat types in declaration order, for exhaustive
// iteration in aggregation and reporting.
var ThreatTypes = []ThreatType{ThreatDataPoisoning, ThreatAdversarialAttack, ThreatModelIntegrity}

func (t ThreatType) String() string {
	switch t {
	case ThreatDataPoisoning:
		return "DATA_POISONING"
	case ThreatAdversarialAttack:
		return "ADVERSARIAL_ATTACK"
	case ThreatModelIntegrity:
		return "MODEL_INTEGRITY"
	default:
		return "UNKNOWN"
	}
}

func (t ThreatType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ThreatType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, _ := ParseThreatType(str)
	*t = parsed
	return nil
}

// ParseThreatType converts a wire string to a ThreatType. Unknown strings
// return (ThreatDataPoisoning, false).
func ParseThreatType(s string) (ThreatType, bool) {
	switch s {
	case "DATA_POISONING":
		return ThreatDataPoisoning, true
	case "ADVERSARIAL_ATTACK":
		return ThreatAdversarialAttack, true
	case "MODEL_INTEGRITY":
		return ThreatModelIntegrity, true
	default:
		return ThreatDataPoisoning, false
	}
}

// ThreatLevel is the ordinal severity of a single detection.
type ThreatLevel int

const (
	LevelLow ThreatLevel = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l ThreatLevel) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (l ThreatLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *ThreatLevel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "MEDIUM":
		*l = LevelMedium
	case "HIGH":
		*l = LevelHigh
	case "CRITICAL":
		*l = LevelCritical
	default:
		*l = LevelLow
	}
	return nil
}

// LevelForScore maps a threat score in [0,1] to its ordinal level.
func LevelForScore(score float64) ThreatLevel {
	switch {
	case score >= 0.8:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	default:
		return LevelLow
	}
}

// DetectionResult is the outcome of a single detector invocation. It is a
// value: produced once, never mutated after return.
type DetectionResult struct {
	ThreatScore      float64                `json:"threat_score"`
	AnomalousIndices []int                  `json:"anomalous_indices,omitempty"`
	Confidence       float64                `json:"confidence"`
	Details          map[string]interface{} `json:"details,omitempty"`
}

// ThreatEvent is the immutable record the pipeline owns once enqueued.
type ThreatEvent struct {
	ID          string                 `json:"id"`
	DetectionID string                 `json:"detection_id"`
	Type        ThreatType             `json:"type"`
	Level       ThreatLevel            `json:"level"`
	Score       float64                `json:"score"`
	Timestamp   time.Time              `json:"timestamp"`
	Details     map[string]interface{} `json:"details,omitempty"`

	// prioritized records whether the event was handed to the priority
	// alert pool at submission time. The consumer path alerts any event
	// that was not, so a saturated pool never swallows an alert.
	prioritized bool
}

// NewThreatEvent creates a ThreatEvent with a generated ID, a level derived
// from the score, and the current UTC timestamp.
func NewThreatEvent(detectionID string, threatType ThreatType, score float64, details map[string]interface{}) *ThreatEvent {
	if details == nil {
		details = make(map[string]interface{})
	}
	return &ThreatEvent{
		ID:          uuid.New().String(),
		DetectionID: detectionID,
		Type:        threatType,
		Level:       LevelForScore(score),
		Score:       score,
		Timestamp:   time.Now().UTC(),
		Details:     details,
	}
}

// SourceID returns the originating source identifier from the event details,
// or "" when the detector did not supply one.
func (e *ThreatEvent) SourceID() string {
	if e.Details == nil {
		return ""
	}
	if s, ok := e.Details["source_id"].(string); ok {
		return s
	}
	return ""
}

// Marshal serializes the event to JSON.
func (e *ThreatEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalThreatEvent deserializes a ThreatEvent from JSON.
func UnmarshalThreatEvent(data []byte) (*ThreatEvent, error) {
	var event ThreatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

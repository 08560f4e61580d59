package core

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Severity is the notification urgency of an alert. Distinct from
// ThreatLevel but monotonically related through SeverityForLevel.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "WARNING":
		*s = SeverityWarning
	case "HIGH":
		*s = SeverityHigh
	case "CRITICAL":
		*s = SeverityCritical
	default:
		*s = SeverityInfo
	}
	return nil
}

// SeverityForLevel maps a threat level to the alert severity it escalates to.
func SeverityForLevel(l ThreatLevel) Severity {
	switch l {
	case LevelCritical:
		return SeverityCritical
	case LevelHigh:
		return SeverityHigh
	case LevelMedium:
		return SeverityWarning
	case LevelLow:
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// AlertStatus tracks an alert's triage lifecycle.
type AlertStatus int

const (
	AlertStatusOpen AlertStatus = iota
	AlertStatusAcknowledged
	AlertStatusResolved
	AlertStatusFalsePositive
)

func (s AlertStatus) String() string {
	switch s {
	case AlertStatusOpen:
		return "OPEN"
	case AlertStatusAcknowledged:
		return "ACKNOWLEDGED"
	case AlertStatusResolved:
		return "RESOLVED"
	case AlertStatusFalsePositive:
		return "FALSE_POSITIVE"
	default:
		return "UNKNOWN"
	}
}

func (s AlertStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseAlertStatus parses a status string, case-insensitively. "ACK" is
// accepted as shorthand for ACKNOWLEDGED.
func ParseAlertStatus(s string) (AlertStatus, bool) {
	switch strings.ToUpper(s) {
	case "OPEN":
		return AlertStatusOpen, true
	case "ACKNOWLEDGED", "ACK":
		return AlertStatusAcknowledged, true
	case "RESOLVED":
		return AlertStatusResolved, true
	case "FALSE_POSITIVE":
		return AlertStatusFalsePositive, true
	default:
		return AlertStatusOpen, false
	}
}

// Alert is a prioritized security notification. Terminal once emitted:
// only Status may change after Process.
type Alert struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Severity    Severity               `json:"severity"`
	ThreatType  ThreatType             `json:"threat_type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Actions     []string               `json:"recommended_actions,omitempty"`
	EventIDs    []string               `json:"event_ids,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Status      AlertStatus            `json:"status"`
}

// NewAlert creates an Alert from a threat event with severity derived from
// the event's level.
func NewAlert(event *ThreatEvent, title, description string) *Alert {
	return &Alert{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Severity:    SeverityForLevel(event.Level),
		ThreatType:  event.Type,
		Title:       title,
		Description: description,
		EventIDs:    []string{event.ID},
		Metadata:    make(map[string]interface{}),
		Status:      AlertStatusOpen,
	}
}

// Marshal serializes the alert to JSON.
func (a *Alert) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// AlertHandler receives every alert accepted by the pipeline. Handlers run
// synchronously on the emitting goroutine and must be safe under concurrent
// invocation.
type AlertHandler func(alert *Alert)

// AlertPipeline is the append-only alert log plus fanout to handlers.
// Process may be called concurrently from the consumer loop, the priority
// worker pool, and scheduled cycles.
type AlertPipeline struct {
	mu       sync.RWMutex
	alerts   []*Alert
	byID     map[string]*Alert
	handlers []AlertHandler
	maxStore int
	logger   zerolog.Logger
}

// NewAlertPipeline creates an alert pipeline retaining at most maxStore
// alerts in memory.
func NewAlertPipeline(logger zerolog.Logger, maxStore int) *AlertPipeline {
	if maxStore <= 0 {
		maxStore = 10000
	}
	return &AlertPipeline{
		alerts:   make([]*Alert, 0, 256),
		byID:     make(map[string]*Alert),
		maxStore: maxStore,
		logger:   logger.With().Str("component", "alert_pipeline").Logger(),
	}
}

// AddHandler registers a handler invoked for every subsequent alert.
func (p *AlertPipeline) AddHandler(h AlertHandler) {
	p.mu.Lock()
	p.handlers = append(p.handlers, h)
	p.mu.Unlock()
}

// Process stores the alert and fans it out to all handlers. When the store
// is full the oldest tenth is dropped.
func (p *AlertPipeline) Process(alert *Alert) {
	p.mu.Lock()
	if len(p.alerts) >= p.maxStore {
		drop := p.maxStore / 10
		if drop < 1 {
			drop = 1
		}
		for _, old := range p.alerts[:drop] {
			delete(p.byID, old.ID)
		}
		p.alerts = p.alerts[drop:]
	}
	p.alerts = append(p.alerts, alert)
	p.byID[alert.ID] = alert
	handlers := append([]AlertHandler(nil), p.handlers...)
	p.mu.Unlock()

	p.logger.Debug().
		Str("alert_id", alert.ID).
		Str("severity", alert.Severity.String()).
		Str("title", alert.Title).
		Msg("alert processed")

	for _, h := range handlers {
		h(alert)
	}
}

// Recent returns the most recent alerts, newest first, at most limit.
func (p *AlertPipeline) Recent(limit int) []*Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if limit <= 0 || limit > len(p.alerts) {
		limit = len(p.alerts)
	}
	out := make([]*Alert, 0, limit)
	for i := len(p.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, p.alerts[i])
	}
	return out
}

// RecentFiltered returns the most recent alerts at or above min severity,
// newest first, at most limit. The severity filter runs over the whole
// store so older matches are not shadowed by newer lower-severity alerts.
func (p *AlertPipeline) RecentFiltered(min Severity, limit int) []*Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if limit <= 0 || limit > len(p.alerts) {
		limit = len(p.alerts)
	}
	out := make([]*Alert, 0, limit)
	for i := len(p.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if p.alerts[i].Severity >= min {
			out = append(out, p.alerts[i])
		}
	}
	return out
}

// GetByID returns the alert with the given ID, or nil.
func (p *AlertPipeline) GetByID(id string) *Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byID[id]
}

// SetStatus updates the triage status of an alert. Returns false when the
// alert is unknown.
func (p *AlertPipeline) SetStatus(id string, status AlertStatus) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.byID[id]
	if !ok {
		return false
	}
	a.Status = status
	return true
}

// Count returns the number of retained alerts.
func (p *AlertPipeline) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.alerts)
}

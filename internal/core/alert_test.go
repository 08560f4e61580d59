package core

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestSeverityForLevel_Mapping(t *testing.T) {
	cases := []struct {
		level ThreatLevel
		want  Severity
	}{
		{LevelLow, SeverityInfo},
		{LevelMedium, SeverityWarning},
		{LevelHigh, SeverityHigh},
		{LevelCritical, SeverityCritical},
	}
	for _, c := range cases {
		if got := SeverityForLevel(c.level); got != c.want {
			t.Errorf("SeverityForLevel(%v) = %v, want %v", c.level, got, c.want)
		}
	}
}

func TestParseAlertStatus(t *testing.T) {
	cases := []struct {
		in   string
		want AlertStatus
		ok   bool
	}{
		{"OPEN", AlertStatusOpen, true},
		{"ACKNOWLEDGED", AlertStatusAcknowledged, true},
		{"ack", AlertStatusAcknowledged, true},
		{"resolved", AlertStatusResolved, true},
		{"FALSE_POSITIVE", AlertStatusFalsePositive, true},
		{"bogus", AlertStatusOpen, false},
	}
	for _, c := range cases {
		got, ok := ParseAlertStatus(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseAlertStatus(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestNewAlert_FromEvent(t *testing.T) {
	e := NewThreatEvent("det-1", ThreatDataPoisoning, 0.9, nil)
	a := NewAlert(e, "title", "description")
	if a.ID == "" {
		t.Error("alert should get a generated ID")
	}
	if a.Severity != SeverityCritical {
		t.Errorf("severity = %v, want CRITICAL", a.Severity)
	}
	if a.ThreatType != ThreatDataPoisoning {
		t.Errorf("threat type = %v", a.ThreatType)
	}
	if len(a.EventIDs) != 1 || a.EventIDs[0] != e.ID {
		t.Errorf("event IDs = %v", a.EventIDs)
	}
	if a.Status != AlertStatusOpen {
		t.Errorf("new alert status = %v, want OPEN", a.Status)
	}
}

func TestAlertPipeline_ProcessAndRecent(t *testing.T) {
	p := NewAlertPipeline(testLogger(), 100)
	for i := 0; i < 3; i++ {
		e := NewThreatEvent(fmt.Sprintf("det-%d", i), ThreatDataPoisoning, 0.5, nil)
		p.Process(NewAlert(e, fmt.Sprintf("alert %d", i), ""))
	}

	if p.Count() != 3 {
		t.Fatalf("count = %d, want 3", p.Count())
	}

	recent := p.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d", len(recent))
	}
	if recent[0].Title != "alert 2" {
		t.Errorf("Recent should be newest first, got %q", recent[0].Title)
	}
}

func TestAlertPipeline_RecentFiltered(t *testing.T) {
	p := NewAlertPipeline(testLogger(), 100)
	// Two CRITICAL alerts first, then three INFO on top: a filtered query
	// must reach past the newer INFO alerts to find the older matches.
	for i := 0; i < 2; i++ {
		e := NewThreatEvent(fmt.Sprintf("crit-%d", i), ThreatAdversarialAttack, 0.9, nil)
		p.Process(NewAlert(e, fmt.Sprintf("critical %d", i), ""))
	}
	for i := 0; i < 3; i++ {
		e := NewThreatEvent(fmt.Sprintf("info-%d", i), ThreatDataPoisoning, 0.2, nil)
		p.Process(NewAlert(e, fmt.Sprintf("info %d", i), ""))
	}

	got := p.RecentFiltered(SeverityCritical, 2)
	if len(got) != 2 {
		t.Fatalf("RecentFiltered returned %d alerts, want 2", len(got))
	}
	if got[0].Title != "critical 1" || got[1].Title != "critical 0" {
		t.Errorf("unexpected order: %q, %q", got[0].Title, got[1].Title)
	}

	if got := p.RecentFiltered(SeverityInfo, 0); len(got) != 5 {
		t.Errorf("unfiltered with no limit = %d alerts, want 5", len(got))
	}
}

func TestAlertPipeline_HandlerFanout(t *testing.T) {
	p := NewAlertPipeline(testLogger(), 100)
	var received []*Alert
	p.AddHandler(func(a *Alert) { received = append(received, a) })

	e := NewThreatEvent("det-1", ThreatAdversarialAttack, 0.7, nil)
	alert := NewAlert(e, "hi", "")
	p.Process(alert)

	if len(received) != 1 || received[0].ID != alert.ID {
		t.Errorf("handler did not receive the alert: %v", received)
	}
}

func TestAlertPipeline_GetByIDAndSetStatus(t *testing.T) {
	p := NewAlertPipeline(testLogger(), 100)
	e := NewThreatEvent("det-1", ThreatModelIntegrity, 0.65, nil)
	alert := NewAlert(e, "hi", "")
	p.Process(alert)

	if got := p.GetByID(alert.ID); got == nil || got.ID != alert.ID {
		t.Fatalf("GetByID failed: %v", got)
	}
	if !p.SetStatus(alert.ID, AlertStatusResolved) {
		t.Fatal("SetStatus should succeed for known alert")
	}
	if p.GetByID(alert.ID).Status != AlertStatusResolved {
		t.Error("status not updated")
	}
	if p.SetStatus("nope", AlertStatusResolved) {
		t.Error("SetStatus should fail for unknown alert")
	}
}

func TestAlertPipeline_OverflowDropsOldest(t *testing.T) {
	p := NewAlertPipeline(testLogger(), 20)
	var first *Alert
	for i := 0; i < 21; i++ {
		e := NewThreatEvent(fmt.Sprintf("det-%d", i), ThreatDataPoisoning, 0.5, nil)
		a := NewAlert(e, fmt.Sprintf("alert %d", i), "")
		if i == 0 {
			first = a
		}
		p.Process(a)
	}

	// At capacity the oldest tenth (2 of 20) is dropped before appending
	if p.Count() != 19 {
		t.Errorf("count = %d, want 19 after overflow", p.Count())
	}
	if p.GetByID(first.ID) != nil {
		t.Error("oldest alert should have been dropped")
	}
}

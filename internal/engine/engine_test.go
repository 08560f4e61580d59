package engine

import (
	"testing"
	"time"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
)

func testEngineConfig() *core.Config {
	cfg := core.DefaultConfig()
	cfg.Bus.Enabled = false
	cfg.Logging.Level = "error"
	cfg.Alerts.EnableConsole = false
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestEngine_New(t *testing.T) {
	eng, err := New(testEngineConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.Pipeline == nil || eng.Alerts == nil {
		t.Fatal("pipeline components not initialized")
	}
	if eng.Poisoning == nil || eng.Adversarial == nil || eng.Integrity == nil {
		t.Fatal("detectors not initialized")
	}
}

func TestEngine_SourceTagDoesNotLeakIntoResult(t *testing.T) {
	eng, err := New(testEngineConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Shutdown()

	result := eng.DetectPoisoning(nil, nil, "src-1")

	// The source tag rides on the submitted copy, not on the result
	// handed back to the caller.
	if _, ok := result.Details["source_id"]; ok {
		t.Error("source_id written into the caller's Details map")
	}

	waitFor(t, func() bool { return eng.Alerts.Count() >= 1 })
	alert := eng.Alerts.Recent(1)[0]
	if alert.Metadata["source_id"] != "src-1" {
		t.Errorf("submitted event lost its source tag: %v", alert.Metadata["source_id"])
	}
}

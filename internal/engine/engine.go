// Package engine assembles the detectors, threat pipeline, alert pipeline,
// and event bus into one runnable monitoring engine.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"github.com/mlsentinel-project/mlsentinel/internal/detect/adversarial"
	"github.com/mlsentinel-project/mlsentinel/internal/detect/integrity"
	"github.com/mlsentinel-project/mlsentinel/internal/detect/poisoning"
)

// Engine is the mlsentinel engine that orchestrates all components.
type Engine struct {
	Config   *core.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	Alerts   *core.AlertPipeline
	Pipeline *core.Pipeline
	Bus      *core.EventBus

	Poisoning   *poisoning.Detector
	Adversarial *adversarial.Detector
	Integrity   *integrity.Monitor

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an engine from configuration. Nothing external (bus, API) is
// started until Start.
func New(cfg *core.Config) (*Engine, error) {
	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	switch cfg.LogLevel() {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())

	promRegistry := prometheus.NewRegistry()
	metrics := core.NewMetrics(promRegistry)
	alerts := core.NewAlertPipeline(logger, cfg.Alerts.MaxStore)
	pipeline := core.NewPipeline(logger, cfg.Pipeline, alerts, metrics)

	engine := &Engine{
		Config:      cfg,
		Logger:      logger.With().Str("component", "engine").Logger(),
		Registry:    promRegistry,
		Alerts:      alerts,
		Pipeline:    pipeline,
		Poisoning:   poisoning.New(cfg.Detectors.Poisoning, logger),
		Adversarial: adversarial.New(cfg.Detectors.Adversarial, logger),
		Integrity:   integrity.New(cfg.Detectors.Integrity, logger),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.Alerts.EnableConsole {
		alerts.AddHandler(func(alert *core.Alert) {
			engine.Logger.Warn().
				Str("alert_id", alert.ID).
				Str("severity", alert.Severity.String()).
				Str("threat_type", alert.ThreatType.String()).
				Str("title", alert.Title).
				Str("description", alert.Description).
				Msg("SECURITY ALERT")
		})
	}

	return engine, nil
}

// Start connects the event bus, wires outbound sinks, and launches the
// threat pipeline.
func (e *Engine) Start() error {
	e.Logger.Info().Msg("starting mlsentinel engine")

	if e.Config.Bus.Enabled {
		bus, err := core.NewEventBus(&e.Config.Bus, e.Logger)
		if err != nil {
			return fmt.Errorf("starting event bus: %w", err)
		}
		e.Bus = bus

		e.Alerts.AddHandler(func(alert *core.Alert) {
			if err := e.Bus.PublishAlert(alert); err != nil {
				e.Logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert to bus")
			}
		})
		e.Pipeline.SetSummarySink(func(summary *core.ThreatSummary) {
			if err := e.Bus.PublishSummary(summary); err != nil {
				e.Logger.Error().Err(err).Msg("failed to publish summary to bus")
			}
		})
		e.Pipeline.SetEventSink(func(event *core.ThreatEvent) {
			if err := e.Bus.PublishEvent(event); err != nil {
				e.Logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to publish event to bus")
			}
		})
	}

	e.Pipeline.Start(e.ctx)

	e.Logger.Info().Msg("mlsentinel engine started")
	return nil
}

// Run starts the engine and blocks until a shutdown signal is received.
func (e *Engine) Run() error {
	if err := e.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		e.Logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-e.ctx.Done():
		e.Logger.Info().Msg("context cancelled")
	}

	return e.Shutdown()
}

// Shutdown gracefully stops the engine.
func (e *Engine) Shutdown() error {
	e.Logger.Info().Msg("shutting down mlsentinel engine")
	e.cancel()

	e.Pipeline.Stop()

	if e.Bus != nil {
		if err := e.Bus.Close(); err != nil {
			e.Logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	e.Logger.Info().Msg("mlsentinel engine stopped")
	return nil
}

// Context returns the engine's context.
func (e *Engine) Context() context.Context {
	return e.ctx
}

// DetectPoisoning runs the data poisoning detector and submits the scored
// result to the pipeline. sourceID identifies the submitting data source
// for distributed-pattern analysis; "" is allowed.
func (e *Engine) DetectPoisoning(dataset [][]float64, baseline map[int][]float64, sourceID string) core.DetectionResult {
	result := e.Poisoning.Detect(dataset, baseline)
	e.submit(result, core.ThreatDataPoisoning, sourceID)
	return result
}

// DetectAdversarial runs the adversarial input detector and submits the
// scored result to the pipeline.
func (e *Engine) DetectAdversarial(input []float64, sourceID string) core.DetectionResult {
	result := e.Adversarial.Detect(input)
	e.submit(result, core.ThreatAdversarialAttack, sourceID)
	return result
}

// MonitorIntegrity runs the model integrity monitor and submits the scored
// result to the pipeline.
func (e *Engine) MonitorIntegrity(current, baseline *integrity.Snapshot, predictions []integrity.PredictionRecord, metrics *integrity.PerformanceMetrics, sourceID string) integrity.Assessment {
	assessment := e.Integrity.Assess(current, baseline, predictions, metrics)
	e.submit(assessment.Result, core.ThreatModelIntegrity, sourceID)
	return assessment
}

// submit tags the result with its source and hands it to the pipeline.
// Fire-and-forget: submission failures never reach the detection caller.
// The detector's Details map is shared with the caller, so the tag goes
// on a copy.
func (e *Engine) submit(result core.DetectionResult, threatType core.ThreatType, sourceID string) {
	if sourceID != "" {
		details := make(map[string]interface{}, len(result.Details)+1)
		for k, v := range result.Details {
			details[k] = v
		}
		details["source_id"] = sourceID
		result.Details = details
	}
	e.Pipeline.Submit(result, threatType)
}

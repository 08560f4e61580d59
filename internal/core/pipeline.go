package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SummarySink receives the per-cycle ThreatSummary. Implemented by external
// collaborators (event bus, persistence); must not block for long.
type SummarySink func(summary *ThreatSummary)

// EventSink receives every processed threat event, after registry insertion.
// Runs on the consumer goroutine; must not block for long.
type EventSink func(event *ThreatEvent)

// queuePollTimeout bounds how long the consumer blocks on an empty queue so
// shutdown stays responsive.
const queuePollTimeout = 100 * time.Millisecond

// emaDecay is the per-event decay of the online threat weight table.
const emaDecay = 0.9

// Pipeline is the concurrent threat event pipeline: bounded ingestion,
// priority alerting, windowed aggregation, pattern recognition, and
// retention cleanup. Submit is safe from any goroutine; all shared state
// mutation happens on the single consumer goroutine or behind locks.
type Pipeline struct {
	cfg      PipelineConfig
	logger   zerolog.Logger
	queue    chan *ThreatEvent
	priority chan *ThreatEvent

	registry   *ActiveThreatRegistry
	aggregator *WindowAggregator
	patterns   *PatternDetector
	alerts     *AlertPipeline
	dedup      *EventDedup
	metrics    *Metrics

	sinkMu      sync.RWMutex
	summarySink SummarySink
	eventSink   EventSink

	weightMu sync.RWMutex
	weights  map[ThreatType]float64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	startMu sync.Mutex
	started bool
}

// NewPipeline creates a pipeline emitting through the given alert pipeline.
// metrics must be non-nil; tests register against a private registry.
func NewPipeline(logger zerolog.Logger, cfg PipelineConfig, alerts *AlertPipeline, metrics *Metrics) *Pipeline {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 10000
	}
	if cfg.PriorityWorkers <= 0 {
		cfg.PriorityWorkers = 4
	}
	return &Pipeline{
		cfg:        cfg,
		logger:     logger.With().Str("component", "threat_pipeline").Logger(),
		queue:      make(chan *ThreatEvent, cfg.QueueCapacity),
		priority:   make(chan *ThreatEvent, cfg.PriorityWorkers*4),
		registry:   NewActiveThreatRegistry(),
		aggregator: NewWindowAggregator(cfg.PatternWindow(), cfg.SpikeRatio, 0),
		patterns:   NewPatternDetector(cfg.Patterns, cfg.PatternWindow()),
		alerts:     alerts,
		dedup:      NewEventDedup(cfg.DedupTTL(), 0),
		metrics:    metrics,
		weights:    make(map[ThreatType]float64),
	}
}

// SetSummarySink wires the external summary consumer.
func (p *Pipeline) SetSummarySink(sink SummarySink) {
	p.sinkMu.Lock()
	p.summarySink = sink
	p.sinkMu.Unlock()
}

// SetEventSink wires the external per-event consumer.
func (p *Pipeline) SetEventSink(sink EventSink) {
	p.sinkMu.Lock()
	p.eventSink = sink
	p.sinkMu.Unlock()
}

// Registry exposes the active threat registry for read-side consumers.
func (p *Pipeline) Registry() *ActiveThreatRegistry { return p.registry }

// Aggregator exposes summary history for read-side consumers.
func (p *Pipeline) Aggregator() *WindowAggregator { return p.aggregator }

// Alerts exposes the alert pipeline.
func (p *Pipeline) Alerts() *AlertPipeline { return p.alerts }

// Weights returns a snapshot of the online threat weight table.
func (p *Pipeline) Weights() map[ThreatType]float64 {
	p.weightMu.RLock()
	defer p.weightMu.RUnlock()
	out := make(map[ThreatType]float64, len(p.weights))
	for k, v := range p.weights {
		out[k] = v
	}
	return out
}

// Submit builds a ThreatEvent from a detection result and enqueues it.
// Non-blocking and fire-and-forget: on a full queue the event is dropped
// with a warning, never an error to the caller. HIGH and CRITICAL events
// are additionally dispatched to the priority alert pool immediately so
// their alert latency is independent of queue depth.
func (p *Pipeline) Submit(result DetectionResult, threatType ThreatType) {
	detectionID := ""
	details := make(map[string]interface{}, len(result.Details)+2)
	for k, v := range result.Details {
		details[k] = v
	}
	if id, ok := details["detection_id"].(string); ok {
		detectionID = id
	}

	// The event owns its own details map so the caller's DetectionResult
	// stays immutable after return.
	event := NewThreatEvent(detectionID, threatType, result.ThreatScore, details)
	if result.Confidence > 0 {
		event.Details["confidence"] = result.Confidence
	}
	if len(result.AnomalousIndices) > 0 {
		event.Details["anomalous_indices"] = result.AnomalousIndices
	}

	if p.dedup.IsDuplicate(event) {
		p.metrics.EventsDeduped.Inc()
		p.logger.Debug().Str("event_id", event.ID).Msg("duplicate submission suppressed")
		return
	}

	p.metrics.EventsSubmitted.WithLabelValues(threatType.String()).Inc()

	if event.Level >= LevelHigh {
		// Mark before the send: once the event is on the channel a worker
		// may read it concurrently.
		event.prioritized = true
		select {
		case p.priority <- event:
		default:
			// Priority pool saturated; the consumer path alerts instead.
			event.prioritized = false
		}
	}

	select {
	case p.queue <- event:
		p.metrics.QueueDepth.Set(float64(len(p.queue)))
	default:
		p.metrics.EventsDropped.Inc()
		p.logger.Warn().
			Str("event_id", event.ID).
			Str("threat_type", threatType.String()).
			Msg("event queue full, dropping event. Queue backlog indicates system degradation.")
	}
}

// Start launches the consumer loop, the priority worker pool, and the
// aggregation/cleanup schedulers. Stop (or ctx cancellation) shuts all of
// them down.
func (p *Pipeline) Start(ctx context.Context) {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.consumerLoop()

	for i := 0; i < p.cfg.PriorityWorkers; i++ {
		p.wg.Add(1)
		go p.priorityWorker()
	}

	p.wg.Add(1)
	go p.scheduler(p.cfg.AggregationInterval(), p.RunAggregationCycle)
	p.wg.Add(1)
	go p.scheduler(p.cfg.CleanupInterval(), p.RunCleanupCycle)

	p.logger.Info().
		Int("queue_capacity", p.cfg.QueueCapacity).
		Int("priority_workers", p.cfg.PriorityWorkers).
		Dur("pattern_window", p.cfg.PatternWindow()).
		Dur("retention", p.cfg.Retention()).
		Msg("threat pipeline started")
}

// Stop cancels all pipeline goroutines and waits for them to exit.
func (p *Pipeline) Stop() {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if !p.started {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.started = false
	p.logger.Info().Msg("threat pipeline stopped")
}

// consumerLoop is the single goroutine that owns mutation of the
// aggregation and registry state. It polls with a short timeout so
// cancellation is observed promptly.
func (p *Pipeline) consumerLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case event := <-p.queue:
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
			p.process(event)
		case <-time.After(queuePollTimeout):
			// Idle poll; loop to re-check cancellation.
		}
	}
}

// process handles one dequeued event: weight table, registry, pattern
// evaluation, and normal-path alerting.
func (p *Pipeline) process(event *ThreatEvent) {
	p.updateWeight(event)
	p.registry.Insert(event)
	p.metrics.RegistrySize.Set(float64(p.registry.Count()))
	p.metrics.EventsProcessed.Inc()

	p.sinkMu.RLock()
	eventSink := p.eventSink
	p.sinkMu.RUnlock()
	if eventSink != nil {
		eventSink(event)
	}

	now := time.Now().UTC()
	window := p.registry.Since(now.Add(-p.cfg.PatternWindow()))
	for _, pattern := range p.patterns.Detect(window, now) {
		p.emitPatternAlert(pattern)
	}

	// Events dispatched to the priority pool are alerted there; alerting
	// them again here would duplicate. Everything else, including
	// HIGH/CRITICAL events that overflowed the pool, alerts on this path.
	if !event.prioritized {
		p.emitEventAlert(event)
	}
}

// updateWeight folds the event score into the per-type exponential moving
// average.
func (p *Pipeline) updateWeight(event *ThreatEvent) {
	p.weightMu.Lock()
	prev := p.weights[event.Type]
	p.weights[event.Type] = emaDecay*prev + (1-emaDecay)*event.Score
	p.weightMu.Unlock()
}

// priorityWorker turns HIGH/CRITICAL events into alerts without waiting in
// the FIFO queue.
func (p *Pipeline) priorityWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case event := <-p.priority:
			p.emitEventAlert(event)
		}
	}
}

// emitEventAlert generates the per-event alert with the threat type's
// recommended actions.
func (p *Pipeline) emitEventAlert(event *ThreatEvent) {
	alert := NewAlert(event,
		fmt.Sprintf("%s threat detected", event.Type),
		fmt.Sprintf("Detection %s scored %.3f (%s). Source: %s.",
			shortID(event.ID), event.Score, event.Level, orUnknown(event.SourceID())))
	alert.Actions = RecommendedActions(event.Type)
	if src := event.SourceID(); src != "" {
		alert.Metadata["source_id"] = src
	}
	alert.Metadata["score"] = event.Score

	p.alerts.Process(alert)
	p.metrics.AlertsEmitted.WithLabelValues(alert.Severity.String()).Inc()
}

// emitPatternAlert raises a CRITICAL alert for a recognized attack pattern.
func (p *Pipeline) emitPatternAlert(pattern AttackPattern) {
	p.metrics.PatternsDetected.WithLabelValues(pattern.Type.String()).Inc()

	alert := &Alert{
		ID:          newAlertID(),
		Timestamp:   time.Now().UTC(),
		Severity:    SeverityCritical,
		Title:       fmt.Sprintf("ATTACK PATTERN: %s", pattern.Type),
		Description: fmt.Sprintf("%s pattern detected targeting %s across %d events in the last %s.", pattern.Type, pattern.Target, pattern.Count, p.cfg.PatternWindow()),
		Actions:     patternActions(pattern.Type),
		Metadata: map[string]interface{}{
			"pattern": pattern.Type.String(),
			"target":  pattern.Target,
			"count":   pattern.Count,
		},
		Status: AlertStatusOpen,
	}
	if t, ok := ParseThreatType(pattern.Target); ok {
		alert.ThreatType = t
	}

	p.alerts.Process(alert)
	p.metrics.AlertsEmitted.WithLabelValues(alert.Severity.String()).Inc()

	p.logger.Warn().
		Str("pattern", pattern.Type.String()).
		Str("target", pattern.Target).
		Int("count", pattern.Count).
		Msg("ATTACK PATTERN DETECTED")
}

// scheduler runs fn on a fixed interval until cancellation. A failing or
// panicking cycle is logged and the next run proceeds independently.
func (p *Pipeline) scheduler(interval time.Duration, fn func()) {
	defer p.wg.Done()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runGuarded(fn)
		}
	}
}

func (p *Pipeline) runGuarded(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error().Interface("panic", rec).Msg("scheduled cycle panicked — recovered, next cycle will run")
		}
	}()
	fn()
}

// RunAggregationCycle computes and publishes a ThreatSummary over the
// active registry, raising a spike warning when recent activity dominates.
// Exported so tests drive cycles deterministically instead of waiting on
// wall-clock timers.
func (p *Pipeline) RunAggregationCycle() {
	now := time.Now().UTC()
	events := p.registry.All()
	summary := p.aggregator.Summarize(events, now)
	p.metrics.SummaryCycles.Inc()
	p.metrics.RegistrySize.Set(float64(len(events)))

	p.sinkMu.RLock()
	sink := p.summarySink
	p.sinkMu.RUnlock()
	if sink != nil {
		sink(summary)
	}

	if summary.AnomalousActivity {
		alert := &Alert{
			ID:          newAlertID(),
			Timestamp:   now,
			Severity:    SeverityWarning,
			Title:       "Threat activity spike",
			Description: fmt.Sprintf("%d of %d retained threat events occurred in the last %s.", summary.RecentEvents, summary.TotalEvents, p.cfg.PatternWindow()),
			Actions: []string{
				"Review recent detections for a coordinated campaign",
				"Check detector baselines for staleness",
			},
			Metadata: map[string]interface{}{
				"recent_events": summary.RecentEvents,
				"total_events":  summary.TotalEvents,
			},
			Status: AlertStatusOpen,
		}
		p.alerts.Process(alert)
		p.metrics.AlertsEmitted.WithLabelValues(alert.Severity.String()).Inc()
	}

	p.logger.Debug().
		Int("total", summary.TotalEvents).
		Int("recent", summary.RecentEvents).
		Bool("anomalous", summary.AnomalousActivity).
		Msg("aggregation cycle complete")
}

// RunCleanupCycle evicts events past the retention horizon and trims the
// aggregator's history. Exported for deterministic tests.
func (p *Pipeline) RunCleanupCycle() {
	cutoff := time.Now().UTC().Add(-p.cfg.Retention())
	evicted := p.registry.EvictOlderThan(cutoff)
	p.aggregator.TrimBefore(cutoff)
	p.metrics.RegistrySize.Set(float64(p.registry.Count()))
	if evicted > 0 {
		p.metrics.CleanupEvictions.Add(float64(evicted))
		p.logger.Info().Int("evicted", evicted).Msg("retention cleanup complete")
	}
}

// RecommendedActions returns the fixed response playbook for a threat type.
// The closed enum makes the default branch unreachable in practice; it
// exists as the generic fallback for forward compatibility of wire input.
func RecommendedActions(t ThreatType) []string {
	switch t {
	case ThreatDataPoisoning:
		return []string{
			"Quarantine the candidate dataset pending review",
			"Compare the dataset against its last known-good baseline",
			"Audit the data ingestion path for unauthorized writes",
			"Retrain only from verified data sources",
		}
	case ThreatAdversarialAttack:
		return []string{
			"Reject or sandbox the flagged input",
			"Rate-limit the submitting client",
			"Review recent inputs from the same source for probing behavior",
			"Consider adversarial training to harden the model",
		}
	case ThreatModelIntegrity:
		return []string{
			"Freeze the model deployment pipeline",
			"Verify model weights against their signed checksums",
			"Roll back to the last attested model version",
			"Audit access logs for the model artifact store",
		}
	default:
		return []string{
			"Investigate the detection context",
			"Escalate to the ML platform security team",
		}
	}
}

func patternActions(t PatternType) []string {
	switch t {
	case PatternRepeated:
		return []string{
			"Treat repeated detections as a sustained campaign, not noise",
			"Block or throttle the implicated ingestion path",
			"Escalate to incident response",
		}
	case PatternEscalating:
		return []string{
			"Assume the attacker is probing for a threshold — tighten detector sensitivity",
			"Snapshot current model and data state for forensics",
			"Escalate to incident response",
		}
	case PatternDistributed:
		return []string{
			"Correlate source identities — a distributed attack implies coordination",
			"Apply source-level rate limits across the fleet",
			"Escalate to incident response",
		}
	default:
		return []string{"Escalate to incident response"}
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func newAlertID() string {
	return uuid.New().String()
}

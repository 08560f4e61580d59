package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus instruments.
type Metrics struct {
	EventsSubmitted  *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	EventsDeduped    prometheus.Counter
	EventsProcessed  prometheus.Counter
	AlertsEmitted    *prometheus.CounterVec
	PatternsDetected *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	RegistrySize     prometheus.Gauge
	SummaryCycles    prometheus.Counter
	CleanupEvictions prometheus.Counter
}

// NewMetrics registers the pipeline instruments against reg. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlsentinel_events_submitted_total",
			Help: "Threat events submitted to the pipeline, by threat type.",
		}, []string{"threat_type"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mlsentinel_events_dropped_total",
			Help: "Threat events dropped because the queue was full.",
		}),
		EventsDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mlsentinel_events_deduped_total",
			Help: "Duplicate submissions suppressed by the dedup cache.",
		}),
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "mlsentinel_events_processed_total",
			Help: "Threat events fully processed by the consumer loop.",
		}),
		AlertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlsentinel_alerts_emitted_total",
			Help: "Alerts emitted, by severity.",
		}, []string{"severity"}),
		PatternsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlsentinel_patterns_detected_total",
			Help: "Attack patterns recognized, by pattern type.",
		}, []string{"pattern"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mlsentinel_queue_depth",
			Help: "Current depth of the bounded event queue.",
		}),
		RegistrySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mlsentinel_registry_size",
			Help: "Events currently held in the active threat registry.",
		}),
		SummaryCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "mlsentinel_summary_cycles_total",
			Help: "Completed aggregation cycles.",
		}),
		CleanupEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "mlsentinel_cleanup_evictions_total",
			Help: "Events evicted by retention cleanup.",
		}),
	}
}

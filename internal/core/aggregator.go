package core

import (
	"encoding/json"
	"sync"
	"time"
)

// TypeSummary is the per-threat-type slice of a ThreatSummary.
type TypeSummary struct {
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
	MaxScore float64 `json:"max_score"`
}

// ThreatSummary is the per-cycle aggregate over the active threat registry.
// Each cycle's summary supersedes the previous one; summaries are never
// merged.
type ThreatSummary struct {
	Timestamp         time.Time              `json:"timestamp"`
	TotalEvents       int                    `json:"total_events"`
	RecentEvents      int                    `json:"recent_events"`
	ByType            map[string]TypeSummary `json:"by_type"`
	AnomalousActivity bool                   `json:"anomalous_activity"`
}

// Marshal serializes the summary to JSON.
func (s *ThreatSummary) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// WindowAggregator computes ThreatSummaries over registry snapshots and
// keeps a bounded history of past summaries for trend inspection. It is
// written by the aggregation cycle and read by the API concurrently.
type WindowAggregator struct {
	mu         sync.RWMutex
	history    []*ThreatSummary
	maxHistory int
	recentSpan time.Duration
	spikeRatio float64
}

// NewWindowAggregator creates an aggregator. recentSpan is the lookback used
// for the spike heuristic; spikeRatio is the recent/total fraction above
// which activity is flagged anomalous.
func NewWindowAggregator(recentSpan time.Duration, spikeRatio float64, maxHistory int) *WindowAggregator {
	if maxHistory <= 0 {
		maxHistory = 1440 // a day of minutely summaries
	}
	return &WindowAggregator{
		maxHistory: maxHistory,
		recentSpan: recentSpan,
		spikeRatio: spikeRatio,
	}
}

// Summarize computes a summary over the given events at time now and appends
// it to the history.
func (w *WindowAggregator) Summarize(events []*ThreatEvent, now time.Time) *ThreatSummary {
	byType := make(map[string]TypeSummary, len(ThreatTypes))
	sums := make(map[ThreatType]float64)
	counts := make(map[ThreatType]int)
	maxes := make(map[ThreatType]float64)

	recentCutoff := now.Add(-w.recentSpan)
	recent := 0
	for _, e := range events {
		counts[e.Type]++
		sums[e.Type] += e.Score
		if e.Score > maxes[e.Type] {
			maxes[e.Type] = e.Score
		}
		if !e.Timestamp.Before(recentCutoff) {
			recent++
		}
	}

	for _, t := range ThreatTypes {
		ts := TypeSummary{Count: counts[t], MaxScore: maxes[t]}
		if ts.Count > 0 {
			ts.AvgScore = sums[t] / float64(ts.Count)
		}
		byType[t.String()] = ts
	}

	summary := &ThreatSummary{
		Timestamp:         now,
		TotalEvents:       len(events),
		RecentEvents:      recent,
		ByType:            byType,
		AnomalousActivity: len(events) > 0 && float64(recent) > w.spikeRatio*float64(len(events)),
	}

	w.mu.Lock()
	w.history = append(w.history, summary)
	if len(w.history) > w.maxHistory {
		w.history = w.history[len(w.history)-w.maxHistory:]
	}
	w.mu.Unlock()

	return summary
}

// Latest returns the most recent summary, or nil before the first cycle.
func (w *WindowAggregator) Latest() *ThreatSummary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.history) == 0 {
		return nil
	}
	return w.history[len(w.history)-1]
}

// History returns up to limit of the most recent summaries, oldest first.
func (w *WindowAggregator) History(limit int) []*ThreatSummary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if limit <= 0 || limit > len(w.history) {
		limit = len(w.history)
	}
	out := make([]*ThreatSummary, limit)
	copy(out, w.history[len(w.history)-limit:])
	return out
}

// TrimBefore drops summaries older than cutoff. Called by the cleanup cycle.
func (w *WindowAggregator) TrimBefore(cutoff time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	keep := w.history[:0]
	for _, s := range w.history {
		if !s.Timestamp.Before(cutoff) {
			keep = append(keep, s)
		}
	}
	w.history = keep
}

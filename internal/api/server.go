package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"github.com/mlsentinel-project/mlsentinel/internal/detect/integrity"
	"github.com/mlsentinel-project/mlsentinel/internal/engine"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the MLSentinel REST API server.
type Server struct {
	engine   *engine.Engine
	server   *http.Server
	logger   zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new API server.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		engine: eng,
		logger: eng.Logger.With().Str("component", "api_server").Logger(),
		stop:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/detect/poisoning", s.handleDetectPoisoning)
	mux.HandleFunc("/api/v1/detect/adversarial", s.handleDetectAdversarial)
	mux.HandleFunc("/api/v1/detect/adversarial/reference", s.handleAdversarialReference)
	mux.HandleFunc("/api/v1/detect/integrity", s.handleDetectIntegrity)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/threats", s.handleThreats)
	mux.HandleFunc("/api/v1/alerts", s.handleAlerts)
	mux.HandleFunc("/api/v1/alerts/", s.handleAlertByID)
	mux.HandleFunc("/api/v1/summary", s.handleSummary)
	mux.HandleFunc("/api/v1/weights", s.handleWeights)
	mux.Handle("/metrics", promhttp.HandlerFor(eng.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.handleHealth)

	// Build middleware chain: CORS -> logging -> rate limit -> auth -> handler
	handler := corsMiddleware(
		loggingMiddleware(
			rateLimitMiddleware(
				authMiddleware(mux, eng.Config, s.logger),
				100, // 100 requests per second per IP
				s.stop,
			),
			s.logger,
		),
		eng.Config.Server.CORSOrigins,
	)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", eng.Config.Server.Host, eng.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wired HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving the API.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server starting")
	if s.engine.Config.AuthEnabled() {
		s.logger.Info().Int("keys", len(s.engine.Config.Server.APIKeys)).Msg("API authentication enabled")
	} else {
		s.logger.Warn().Msg("API authentication disabled — set api_keys in config or MLSENTINEL_API_KEY env var")
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the API server and releases the rate limiter
// cleanup goroutine.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	busConnected := false
	if s.engine.Bus != nil {
		busConnected = s.engine.Bus.IsConnected()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":                "1.0.0",
		"status":                 "running",
		"bus_connected":          busConnected,
		"active_threats":         s.engine.Pipeline.Registry().Count(),
		"alerts_total":           s.engine.Alerts.Count(),
		"adversarial_calibrated": s.engine.Adversarial.Calibrated(),
		"timestamp":              time.Now().UTC(),
	})
}

func (s *Server) handleDetectPoisoning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Dataset  [][]float64          `json:"dataset"`
		Baseline map[string][]float64 `json:"baseline"`
		SourceID string               `json:"source_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request JSON: " + err.Error()})
		return
	}
	if len(req.Dataset) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dataset is required"})
		return
	}

	baseline := make(map[int][]float64, len(req.Baseline))
	for col, samples := range req.Baseline {
		idx, err := strconv.Atoi(col)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "baseline keys must be column indices: " + col})
			return
		}
		baseline[idx] = samples
	}

	result := s.engine.DetectPoisoning(req.Dataset, baseline, req.SourceID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetectAdversarial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Input    []float64 `json:"input"`
		SourceID string    `json:"source_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request JSON: " + err.Error()})
		return
	}
	if len(req.Input) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
		return
	}

	result := s.engine.DetectAdversarial(req.Input, req.SourceID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdversarialReference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request JSON: " + err.Error()})
		return
	}

	if err := s.engine.Adversarial.UpdateReference(req.Embeddings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "calibrated",
		"samples": len(req.Embeddings),
	})
}

func (s *Server) handleDetectIntegrity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Current     *integrity.Snapshot           `json:"current"`
		Baseline    *integrity.Snapshot           `json:"baseline"`
		Predictions []integrity.PredictionRecord  `json:"predictions"`
		Metrics     *integrity.PerformanceMetrics `json:"metrics"`
		SourceID    string                        `json:"source_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request JSON: " + err.Error()})
		return
	}
	if req.Current == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current snapshot is required"})
		return
	}

	assessment := s.engine.MonitorIntegrity(req.Current, req.Baseline, req.Predictions, req.Metrics, req.SourceID)
	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ThreatType  string                 `json:"threat_type"`
		ThreatScore float64                `json:"threat_score"`
		Confidence  float64                `json:"confidence"`
		Details     map[string]interface{} `json:"details"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request JSON: " + err.Error()})
		return
	}

	threatType, ok := core.ParseThreatType(req.ThreatType)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid threat_type — use DATA_POISONING, ADVERSARIAL_ATTACK, or MODEL_INTEGRITY",
		})
		return
	}
	if req.ThreatScore < 0 || req.ThreatScore > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "threat_score must be in [0, 1]"})
		return
	}

	result := core.DetectionResult{
		ThreatScore: req.ThreatScore,
		Confidence:  req.Confidence,
		Details:     req.Details,
	}
	s.engine.Pipeline.Submit(result, threatType)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"threat_type": threatType.String(),
	})
}

func (s *Server) handleThreats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	registry := s.engine.Pipeline.Registry()
	events := registry.All()
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		events = registry.Since(since)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"threats": events,
		"total":   len(events),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limitStr := r.URL.Query().Get("limit")
	limit := 100
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	minSeverity := core.SeverityInfo
	switch r.URL.Query().Get("min_severity") {
	case "WARNING":
		minSeverity = core.SeverityWarning
	case "HIGH":
		minSeverity = core.SeverityHigh
	case "CRITICAL":
		minSeverity = core.SeverityCritical
	}

	alerts := s.engine.Alerts.RecentFiltered(minSeverity, limit)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

// handleAlertByID handles GET/PATCH on /api/v1/alerts/{id}
func (s *Server) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	alertID := strings.TrimSuffix(path, "/")
	if alertID == "" {
		http.Error(w, "alert id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		alert := s.engine.Alerts.GetByID(alertID)
		if alert == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
			return
		}
		writeJSON(w, http.StatusOK, alert)

	case http.MethodPatch:
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
		status, ok := core.ParseAlertStatus(body.Status)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid status — use OPEN, ACKNOWLEDGED, RESOLVED, or FALSE_POSITIVE",
			})
			return
		}
		if !s.engine.Alerts.SetStatus(alertID, status) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":     alertID,
			"status": status.String(),
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agg := s.engine.Pipeline.Aggregator()
	latest := agg.Latest()
	if latest == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"summary": nil,
			"history": []interface{}{},
		})
		return
	}

	historyLimit := 20
	if hs := r.URL.Query().Get("history"); hs != "" {
		if h, err := strconv.Atoi(hs); err == nil && h > 0 {
			historyLimit = h
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": latest,
		"history": agg.History(historyLimit),
	})
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	weights := make(map[string]float64)
	for t, wgt := range s.engine.Pipeline.Weights() {
		weights[t.String()] = wgt
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"weights": weights})
}

// ─── Middleware & helpers ───

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeBody decodes a JSON request body, capped at 4MB to bound
// memory on large dataset submissions.
func decodeBody(r *http.Request, dst interface{}) error {
	limited := io.LimitReader(r.Body, 4<<20)
	return json.NewDecoder(limited).Decode(dst)
}

// authMiddleware enforces API key authentication on all endpoints except
// /health and /metrics. Clients authenticate via "Authorization: Bearer <key>"
// or the X-API-Key header.
func authMiddleware(next http.Handler, cfg *core.Config, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always allow health checks and metrics scrapes without auth
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		// If no API keys configured, allow all (open mode)
		if !cfg.AuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			authHeader = r.Header.Get("X-API-Key")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "missing authentication — provide Authorization: Bearer <key> or X-API-Key header",
				})
				return
			}
			if !cfg.ValidateAPIKey(authHeader) {
				logger.Warn().Str("path", r.URL.Path).Str("ip", r.RemoteAddr).Msg("invalid API key")
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid API key"})
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		key := authHeader
		if strings.HasPrefix(authHeader, "Bearer ") {
			key = authHeader[7:]
		}

		if !cfg.ValidateAPIKey(key) {
			logger.Warn().Str("path", r.URL.Path).Str("ip", r.RemoteAddr).Msg("invalid API key")
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid API key"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := "*"
		if len(allowedOrigins) > 0 {
			allowed = ""
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = origin
					break
				}
			}
			if allowed == "" {
				// Origin not in allow list — skip CORS headers
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if len(allowedOrigins) > 0 && allowedOrigins[0] != "*" {
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// rateLimitMiddleware implements a simple per-IP token bucket rate limiter.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    int
}

type tokenBucket struct {
	tokens    float64
	maxTokens float64
	lastTime  time.Time
}

func (b *tokenBucket) allow(rate float64) bool {
	now := time.Now()
	elapsed := now.Sub(b.lastTime).Seconds()
	b.lastTime = now
	b.tokens += elapsed * rate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func rateLimitMiddleware(next http.Handler, requestsPerSecond int, stop <-chan struct{}) http.Handler {
	limiter := &ipLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    requestsPerSecond,
	}

	// Cleanup stale buckets every 5 minutes until the server stops.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			limiter.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for ip, bucket := range limiter.buckets {
				if bucket.lastTime.Before(cutoff) {
					delete(limiter.buckets, ip)
				}
			}
			limiter.mu.Unlock()
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip rate limiting for health checks and metrics scrapes
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ip := r.RemoteAddr
		if idx := strings.LastIndex(ip, ":"); idx != -1 {
			ip = ip[:idx]
		}

		limiter.mu.Lock()
		bucket, ok := limiter.buckets[ip]
		if !ok {
			bucket = &tokenBucket{
				tokens:    float64(limiter.rate),
				maxTokens: float64(limiter.rate),
				lastTime:  time.Now(),
			}
			limiter.buckets[ip] = bucket
		}
		allowed := bucket.allow(float64(limiter.rate))
		limiter.mu.Unlock()

		if !allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

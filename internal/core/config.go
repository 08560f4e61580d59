package core

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire mlsentinel configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bus       BusConfig       `yaml:"bus"`
	Alerts    AlertConfig     `yaml:"alerts"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Detectors DetectorsConfig `yaml:"detectors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	APIKeys     []string `yaml:"api_keys"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// BusConfig holds NATS event bus settings.
type BusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	DataDir  string `yaml:"data_dir"`
	Port     int    `yaml:"port"`
}

// AlertConfig holds alert pipeline settings.
type AlertConfig struct {
	MaxStore      int  `yaml:"max_store"`
	EnableConsole bool `yaml:"enable_console"`
}

// PipelineConfig holds threat event pipeline settings. Intervals are plain
// seconds/hours so the YAML stays obvious.
type PipelineConfig struct {
	QueueCapacity     int           `yaml:"queue_capacity"`
	PriorityWorkers   int           `yaml:"priority_workers"`
	PatternWindowSecs int           `yaml:"pattern_window_seconds"`
	RetentionHours    int           `yaml:"retention_hours"`
	AggregationSecs   int           `yaml:"aggregation_interval_seconds"`
	CleanupSecs       int           `yaml:"cleanup_interval_seconds"`
	SpikeRatio        float64       `yaml:"spike_ratio"`
	DedupTTLSecs      int           `yaml:"dedup_ttl_seconds"`
	Patterns          PatternConfig `yaml:"patterns"`
}

// PatternWindow returns the pattern analysis lookback.
func (p PipelineConfig) PatternWindow() time.Duration {
	return time.Duration(p.PatternWindowSecs) * time.Second
}

// Retention returns the registry retention horizon.
func (p PipelineConfig) Retention() time.Duration {
	return time.Duration(p.RetentionHours) * time.Hour
}

// AggregationInterval returns the summary cycle period.
func (p PipelineConfig) AggregationInterval() time.Duration {
	return time.Duration(p.AggregationSecs) * time.Second
}

// CleanupInterval returns the eviction cycle period.
func (p PipelineConfig) CleanupInterval() time.Duration {
	return time.Duration(p.CleanupSecs) * time.Second
}

// DedupTTL returns the duplicate-submission suppression window.
func (p PipelineConfig) DedupTTL() time.Duration {
	return time.Duration(p.DedupTTLSecs) * time.Second
}

// DetectorsConfig holds the tunable thresholds of the three detectors.
type DetectorsConfig struct {
	Poisoning   PoisoningConfig   `yaml:"poisoning"`
	Adversarial AdversarialConfig `yaml:"adversarial"`
	Integrity   IntegrityConfig   `yaml:"integrity"`
}

// PoisoningConfig tunes the data poisoning detector.
type PoisoningConfig struct {
	HistogramBins     int     `yaml:"histogram_bins"`
	OutlierZThreshold float64 `yaml:"outlier_z_threshold"`
}

// AdversarialConfig tunes the adversarial input detector.
type AdversarialConfig struct {
	// DistanceCenter is the Mahalanobis distance at which the logistic
	// score crosses 0.5 — a 3-sigma-equivalent cutoff by default.
	DistanceCenter float64 `yaml:"distance_center"`
}

// IntegrityConfig tunes the model integrity monitor.
type IntegrityConfig struct {
	RecentOutputs        int     `yaml:"recent_outputs"`
	ConsistencyThreshold float64 `yaml:"consistency_threshold"`
	StabilityThreshold   float64 `yaml:"stability_threshold"`
	DegradationThreshold float64 `yaml:"degradation_threshold"`
	DriftThreshold       float64 `yaml:"drift_threshold"`
	DriftHistogramBins   int     `yaml:"drift_histogram_bins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults — zero-config works out
// of the box.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 1790,
		},
		Bus: BusConfig{
			Enabled:  true,
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			DataDir:  "./data/nats",
			Port:     4222,
		},
		Alerts: AlertConfig{
			MaxStore:      10000,
			EnableConsole: true,
		},
		Pipeline: PipelineConfig{
			QueueCapacity:     10000,
			PriorityWorkers:   4,
			PatternWindowSecs: 300,
			RetentionHours:    24,
			AggregationSecs:   60,
			CleanupSecs:       3600,
			SpikeRatio:        0.5,
			DedupTTLSecs:      10,
			Patterns:          DefaultPatternConfig(),
		},
		Detectors: DetectorsConfig{
			Poisoning: PoisoningConfig{
				HistogramBins:     20,
				OutlierZThreshold: 2.0,
			},
			Adversarial: AdversarialConfig{
				DistanceCenter: 3.0,
			},
			Integrity: IntegrityConfig{
				RecentOutputs:        10,
				ConsistencyThreshold: 0.5,
				StabilityThreshold:   0.3,
				DegradationThreshold: 0.1,
				DriftThreshold:       0.2,
				DriftHistogramBins:   10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if len(cfg.Server.APIKeys) == 0 {
		if envKey := os.Getenv("MLSENTINEL_API_KEY"); envKey != "" {
			cfg.Server.APIKeys = []string{envKey}
		}
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for problems. It returns non-fatal
// warnings separately from hard errors.
func (c *Config) Validate() (warnings []string, errs []string) {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Pipeline.QueueCapacity < 1 {
		errs = append(errs, "pipeline.queue_capacity must be at least 1")
	}
	if c.Pipeline.PriorityWorkers < 1 {
		errs = append(errs, "pipeline.priority_workers must be at least 1")
	}
	if c.Pipeline.SpikeRatio <= 0 || c.Pipeline.SpikeRatio > 1 {
		errs = append(errs, "pipeline.spike_ratio must be in (0, 1]")
	}
	if c.Pipeline.Patterns.RepeatedThreshold < 2 {
		errs = append(errs, "pipeline.patterns.repeated_threshold must be at least 2")
	}
	if c.Pipeline.RetentionHours < 1 {
		warnings = append(warnings, "pipeline.retention_hours below 1 hour — events will be evicted aggressively")
	}
	if c.Detectors.Poisoning.HistogramBins < 2 {
		errs = append(errs, "detectors.poisoning.histogram_bins must be at least 2")
	}
	if c.Detectors.Adversarial.DistanceCenter <= 0 {
		errs = append(errs, "detectors.adversarial.distance_center must be positive")
	}
	if c.Detectors.Integrity.RecentOutputs < 2 {
		errs = append(errs, "detectors.integrity.recent_outputs must be at least 2")
	}
	if c.Bus.Enabled && !c.Bus.Embedded && c.Bus.URL == "" {
		errs = append(errs, "bus.url is required when bus.embedded is false")
	}
	if !c.AuthEnabled() {
		warnings = append(warnings, "no API keys configured — the API will run in open mode")
	}
	return warnings, errs
}

// LogLevel returns the normalized log level string.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Logging.Level)
}

// AuthEnabled returns true if API key authentication is configured.
func (c *Config) AuthEnabled() bool {
	return len(c.Server.APIKeys) > 0
}

// ValidateAPIKey checks the provided key against configured keys using
// constant-time comparison.
func (c *Config) ValidateAPIKey(key string) bool {
	for _, valid := range c.Server.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

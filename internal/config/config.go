package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// CG_REDIS_ADDR or CG_API_PORT.
const EnvPrefix = "CG_"

// Config holds all configuration for the service.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Redis     RedisConfig     `koanf:"redis"`
	Graph     GraphConfig     `koanf:"graph"`
	Decay     DecayConfig     `koanf:"decay"`
	Retention RetentionConfig `koanf:"retention"`
	Worker    WorkerConfig    `koanf:"worker"`
	Tracing   TracingConfig   `koanf:"tracing"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port                  int `koanf:"port"`
	MaxConcurrentRequests int `koanf:"max_concurrent_requests"`
}

// RedisConfig configures the event ledger connection and key layout.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	DB       int    `koanf:"db"`
	Password string `koanf:"password"`

	GlobalStream        string `koanf:"global_stream"`
	SessionStreamPrefix string `koanf:"session_stream_prefix"`
	EventKeyPrefix      string `koanf:"event_key_prefix"`
	DedupSet            string `koanf:"dedup_set"`
	EventIndex          string `koanf:"event_index"`

	// WaitForReplica gates appends on one replica ack (100ms timeout).
	WaitForReplica bool `koanf:"wait_for_replica"`

	// HotWindowDays bounds the stream hot tier; RetentionCeilingDays
	// bounds the event documents.
	HotWindowDays        int `koanf:"hot_window_days"`
	RetentionCeilingDays int `koanf:"retention_ceiling_days"`
}

// GraphConfig configures the FalkorDB graph store.
type GraphConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	GraphName string `koanf:"graph_name"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
	TimeoutMs int64  `koanf:"timeout_ms"`
}

// DecayConfig holds the scoring and consolidation parameters.
type DecayConfig struct {
	StabilityBaseHours  float64 `koanf:"stability_base_hours"`
	StabilityBoostHours float64 `koanf:"stability_boost_hours"`

	WeightRecency      float64 `koanf:"weight_recency"`
	WeightImportance   float64 `koanf:"weight_importance"`
	WeightRelevance    float64 `koanf:"weight_relevance"`
	WeightUserAffinity float64 `koanf:"weight_user_affinity"`

	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	ReflectionThreshold int     `koanf:"reflection_threshold"`

	ReconsolidationIntervalHours int `koanf:"reconsolidation_interval_hours"`
}

// RetentionConfig holds the graph retention tier boundaries.
type RetentionConfig struct {
	HotHours  int `koanf:"hot_hours"`
	WarmHours int `koanf:"warm_hours"`
	ColdHours int `koanf:"cold_hours"`

	WarmMinSimilarityScore float64 `koanf:"warm_min_similarity_score"`
	ColdMinImportance      int     `koanf:"cold_min_importance"`
	ColdMinAccessCount     int     `koanf:"cold_min_access_count"`
}

// WorkerConfig configures the stream consumers.
type WorkerConfig struct {
	GroupProjection    string `koanf:"group_projection"`
	GroupExtraction    string `koanf:"group_extraction"`
	GroupEnrichment    string `koanf:"group_enrichment"`
	GroupConsolidation string `koanf:"group_consolidation"`

	BlockTimeoutMs int `koanf:"block_timeout_ms"`
	BatchSize      int `koanf:"batch_size"`

	// SessionTailSize bounds the projector's per-session LRU.
	SessionTailSize int `koanf:"session_tail_size"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	TLSCAPath   string `koanf:"tls_ca_path"`
	TLSInsecure bool   `koanf:"tls_insecure"`
}

// Default returns the configuration defaults. Every value can be
// overridden by file or environment.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Port:                  8080,
			MaxConcurrentRequests: 100,
		},
		Redis: RedisConfig{
			Addr:                 "localhost:6379",
			GlobalStream:         "events:__global__",
			SessionStreamPrefix:  "events:session:",
			EventKeyPrefix:       "evt:",
			DedupSet:             "dedup:events",
			EventIndex:           "idx:events",
			HotWindowDays:        7,
			RetentionCeilingDays: 90,
		},
		Graph: GraphConfig{
			Host:      "localhost",
			Port:      6380,
			GraphName: "atlas",
			TimeoutMs: 10000,
		},
		Decay: DecayConfig{
			StabilityBaseHours:           168.0,
			StabilityBoostHours:          24.0,
			WeightRecency:                1.0,
			WeightImportance:             1.0,
			WeightRelevance:              1.0,
			WeightUserAffinity:           0.5,
			SimilarityThreshold:          0.85,
			ReflectionThreshold:          150,
			ReconsolidationIntervalHours: 6,
		},
		Retention: RetentionConfig{
			HotHours:               24,
			WarmHours:              168,
			ColdHours:              720,
			WarmMinSimilarityScore: 0.7,
			ColdMinImportance:      5,
			ColdMinAccessCount:     3,
		},
		Worker: WorkerConfig{
			GroupProjection:    "graph-projection",
			GroupExtraction:    "session-extraction",
			GroupEnrichment:    "enrichment",
			GroupConsolidation: "consolidation",
			BlockTimeoutMs:     5000,
			BatchSize:          10,
			SessionTailSize:    4096,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// CG_-prefixed environment variables, in ascending precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Unmarshal merges over the defaults: keys absent from file and
	// environment keep their Default() values.
	cfg := Default()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, NewConfigError("loading config file " + path + ": " + err.Error())
		}
	}

	// CG_REDIS_GLOBAL_STREAM -> redis.global_stream. Section names are
	// single words, so only the first underscore becomes a separator.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, NewConfigError("loading environment: " + err.Error())
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, NewConfigError("unmarshaling config: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKeyMapper(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return NewConfigError("api.port must be between 1 and 65535")
	}
	if c.API.MaxConcurrentRequests < 1 {
		return NewConfigError("api.max_concurrent_requests must be at least 1")
	}
	if c.Redis.Addr == "" {
		return NewConfigError("redis.addr must not be empty")
	}
	if c.Redis.GlobalStream == "" {
		return NewConfigError("redis.global_stream must not be empty")
	}
	if c.Redis.HotWindowDays < 1 {
		return NewConfigError("redis.hot_window_days must be at least 1")
	}
	if c.Redis.RetentionCeilingDays < c.Redis.HotWindowDays {
		return NewConfigError("redis.retention_ceiling_days must be >= redis.hot_window_days")
	}
	if c.Graph.Host == "" {
		return NewConfigError("graph.host must not be empty")
	}
	if c.Graph.Port < 1 || c.Graph.Port > 65535 {
		return NewConfigError("graph.port must be between 1 and 65535")
	}
	if c.Decay.StabilityBaseHours <= 0 {
		return NewConfigError("decay.stability_base_hours must be positive")
	}
	if c.Decay.ReflectionThreshold < 1 {
		return NewConfigError("decay.reflection_threshold must be at least 1")
	}
	if c.Retention.HotHours >= c.Retention.WarmHours || c.Retention.WarmHours >= c.Retention.ColdHours {
		return NewConfigError("retention tiers must be ordered hot < warm < cold")
	}
	if c.Worker.BlockTimeoutMs < 100 {
		return NewConfigError("worker.block_timeout_ms must be at least 100")
	}
	if c.Worker.SessionTailSize < 1 {
		return NewConfigError("worker.session_tail_size must be at least 1")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}

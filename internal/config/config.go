// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Sources  SourcesConfig  `koanf:"sources"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Ranking  RankingConfig  `koanf:"ranking"`
	Cache    CacheConfig    `koanf:"cache"`
	Learner  LearnerConfig  `koanf:"learner"`
	Drift    DriftConfig    `koanf:"drift"`
	Profile  ProfileConfig  `koanf:"profile"`
	Feedback FeedbackConfig `koanf:"feedback"`
	Store    StoreConfig    `koanf:"store"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SourcesConfig configures the scoring source adapters.
type SourcesConfig struct {
	Keyword    KeywordSourceConfig    `koanf:"keyword"`
	Semantic   SemanticSourceConfig   `koanf:"semantic"`
	Popularity PopularitySourceConfig `koanf:"popularity"`

	// CatalogPath points at a JSON seed file of fragrance metadata. It
	// feeds both the popularity table and the personalization catalog.
	// Empty disables both (personalization degrades to no-op).
	CatalogPath string `koanf:"catalog_path"`

	// Budget is the shared per-request time budget for all source fetches.
	Budget time.Duration `koanf:"budget"`
}

// KeywordSourceConfig configures the keyword search adapter.
type KeywordSourceConfig struct {
	Enabled   bool          `koanf:"enabled"`
	URL       string        `koanf:"url" validate:"omitempty,url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	Limit     int           `koanf:"limit"`      // max candidates per fetch
}

// SemanticSourceConfig configures the vector search adapter.
type SemanticSourceConfig struct {
	Enabled     bool          `koanf:"enabled"`
	URL         string        `koanf:"url" validate:"omitempty,url"`
	EmbedderURL string        `koanf:"embedder_url" validate:"omitempty,url"`
	Timeout     time.Duration `koanf:"timeout"`
	RateLimit   float64       `koanf:"rate_limit"`
	Limit       int           `koanf:"limit"`
}

// PopularitySourceConfig configures the in-memory popularity adapter.
type PopularitySourceConfig struct {
	Enabled bool `koanf:"enabled"`
	Limit   int  `koanf:"limit"`
}

// BreakerConfig configures the per-source circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold" validate:"min=1"`
	CoolDown         time.Duration `koanf:"cool_down"`
}

// RankingConfig configures the ranking engine and aggregator.
type RankingConfig struct {
	MinQueryLength  int     `koanf:"min_query_length" validate:"min=1"`
	DefaultK        int     `koanf:"default_k" validate:"min=1"`
	MaxK            int     `koanf:"max_k" validate:"min=1"`
	OverlapBoost    float64 `koanf:"overlap_boost" validate:"min=0"`
	ConfidenceFloor float64 `koanf:"confidence_floor" validate:"min=0,max=1"`
	VectorWeight    float64 `koanf:"vector_weight"`
	FamilyWeight    float64 `koanf:"family_weight"`
	BrandWeight     float64 `koanf:"brand_weight"`
}

// CacheConfig configures the tiered response cache.
type CacheConfig struct {
	ResultTTL         time.Duration `koanf:"result_ttl"`
	RecommendationTTL time.Duration `koanf:"recommendation_ttl"`
	SweepInterval     time.Duration `koanf:"sweep_interval"`
}

// LearnerConfig configures the weight learner.
type LearnerConfig struct {
	ExplorationRate float64 `koanf:"exploration_rate" validate:"min=0,max=1"`
	FloorWeight     float64 `koanf:"floor_weight" validate:"min=0,max=0.5"`
	Decay           float64 `koanf:"decay" validate:"min=0,max=1"`
	QueueSize       int     `koanf:"queue_size" validate:"min=1"`
	Seed            int64   `koanf:"seed"`

	// Defaults seeds the starting weight vector per context bucket
	// (bucket -> source -> weight). Buckets absent here start with equal
	// weights. Hot-reloadable; learned buckets are never overwritten.
	Defaults map[string]map[string]float64 `koanf:"defaults"`
}

// DriftConfig configures the drift monitor.
type DriftConfig struct {
	WindowSize  int     `koanf:"window_size" validate:"min=1"`
	CheckEvery  int     `koanf:"check_every" validate:"min=1"`
	Threshold   float64 `koanf:"threshold" validate:"gt=0,max=1"`
	MinBaseline int     `koanf:"min_baseline" validate:"min=1"`
}

// ProfileConfig configures preference profile updates.
type ProfileConfig struct {
	LearningRate    float64       `koanf:"learning_rate" validate:"gt=0,max=1"`
	DriftMultiplier float64       `koanf:"drift_multiplier" validate:"min=1"`
	ConfidenceStep  float64       `koanf:"confidence_step" validate:"gt=0,max=1"`
	DriftWindow     time.Duration `koanf:"drift_window"`
}

// FeedbackConfig configures the feedback event transport.
type FeedbackConfig struct {
	// Transport selects the Watermill backend: "gochannel" (in-process,
	// default) or "nats" (JetStream).
	Transport string `koanf:"transport" validate:"oneof=gochannel nats"`

	// Buffer is the gochannel output buffer size.
	Buffer int64 `koanf:"buffer"`

	NATS NATSConfig `koanf:"nats"`

	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// NATSConfig configures the optional NATS JetStream transport.
type NATSConfig struct {
	URL         string `koanf:"url"`
	Embedded    bool   `koanf:"embedded"`
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	StoreDir    string `koanf:"store_dir"`
	QueueGroup  string `koanf:"queue_group"`
	DurableName string `koanf:"durable_name"`
}

// StoreConfig configures learner state persistence.
type StoreConfig struct {
	// Path is the Badger directory. Empty runs in-memory (state is lost on
	// restart).
	Path string `koanf:"path"`

	// SaveInterval is how often weight snapshots are persisted.
	SaveInterval time.Duration `koanf:"save_interval"`
}

// Default returns the built-in defaults, overridden by file and env layers.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8270,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Sources: SourcesConfig{
			Keyword: KeywordSourceConfig{
				Enabled:   true,
				Timeout:   2 * time.Second,
				RateLimit: 100,
				Limit:     200,
			},
			Semantic: SemanticSourceConfig{
				Enabled:   true,
				Timeout:   2 * time.Second,
				RateLimit: 50,
				Limit:     200,
			},
			Popularity: PopularitySourceConfig{
				Enabled: true,
				Limit:   200,
			},
			Budget: 800 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			CoolDown:         60 * time.Second,
		},
		Ranking: RankingConfig{
			MinQueryLength:  2,
			DefaultK:        20,
			MaxK:            100,
			OverlapBoost:    0.1,
			ConfidenceFloor: 0.2,
			VectorWeight:    0.15,
			FamilyWeight:    0.05,
			BrandWeight:     0.05,
		},
		Cache: CacheConfig{
			ResultTTL:         5 * time.Minute,
			RecommendationTTL: time.Hour,
			SweepInterval:     5 * time.Minute,
		},
		Learner: LearnerConfig{
			ExplorationRate: 0.1,
			FloorWeight:     0.05,
			Decay:           0.05,
			QueueSize:       1024,
		},
		Drift: DriftConfig{
			WindowSize:  50,
			CheckEvery:  20,
			Threshold:   0.25,
			MinBaseline: 30,
		},
		Profile: ProfileConfig{
			LearningRate:    0.1,
			DriftMultiplier: 2.0,
			ConfidenceStep:  0.05,
			DriftWindow:     30 * time.Minute,
		},
		Feedback: FeedbackConfig{
			Transport:            "gochannel",
			Buffer:               256,
			RetryMaxRetries:      3,
			RetryInitialInterval: time.Second,
			RetryMaxInterval:     30 * time.Second,
			CloseTimeout:         30 * time.Second,
			NATS: NATSConfig{
				URL:         "nats://127.0.0.1:4222",
				Host:        "127.0.0.1",
				Port:        4222,
				StoreDir:    "/data/nats",
				QueueGroup:  "accord-feedback",
				DurableName: "accord",
			},
		},
		Store: StoreConfig{
			Path:         "/data/accord",
			SaveInterval: time.Minute,
		},
	}
}

// Validate checks the configuration, including cross-field constraints the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Ranking.DefaultK > c.Ranking.MaxK {
		return fmt.Errorf("config validation: ranking.default_k (%d) exceeds ranking.max_k (%d)",
			c.Ranking.DefaultK, c.Ranking.MaxK)
	}
	if !c.Sources.Keyword.Enabled && !c.Sources.Semantic.Enabled && !c.Sources.Popularity.Enabled {
		return fmt.Errorf("config validation: at least one source must be enabled")
	}
	if c.Sources.Keyword.Enabled && c.Sources.Keyword.URL == "" {
		return fmt.Errorf("config validation: sources.keyword.url required when keyword source is enabled")
	}
	if c.Sources.Semantic.Enabled && (c.Sources.Semantic.URL == "" || c.Sources.Semantic.EmbedderURL == "") {
		return fmt.Errorf("config validation: sources.semantic.url and embedder_url required when semantic source is enabled")
	}
	if c.Feedback.Transport == "nats" && !c.Feedback.NATS.Embedded && c.Feedback.NATS.URL == "" {
		return fmt.Errorf("config validation: feedback.nats.url required when nats transport is enabled without the embedded server")
	}

	return nil
}

// EnabledSources returns the names of enabled sources in canonical order.
func (c *Config) EnabledSources() []string {
	var out []string
	if c.Sources.Keyword.Enabled {
		out = append(out, "keyword")
	}
	if c.Sources.Semantic.Enabled {
		out = append(out, "semantic")
	}
	if c.Sources.Popularity.Enabled {
		out = append(out, "popularity")
	}
	return out
}

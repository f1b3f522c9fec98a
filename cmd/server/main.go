// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

// Package main is the entry point for the Accord ranking server.
//
// Accord ranks fragrance candidates by fanning a query out to independent
// scoring sources (keyword search, semantic similarity, popularity),
// aggregating their normalized scores under learned per-context weights,
// and personalizing the result against a per-user preference profile.
// Feedback events continuously adjust the weights and profiles.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, YAML file, and ACCORD_* env (Koanf v2)
//  2. State store: BadgerDB for learned weights and preference profiles
//  3. Catalog: optional JSON seed feeding popularity scores and item metadata
//  4. Sources: enabled adapters, each wrapped in a circuit breaker
//  5. Learning: weight learner, preference profiles, drift monitor
//  6. Feedback bus: Watermill router over gochannel or NATS JetStream
//  7. HTTP Server: chi REST API plus Prometheus /metrics
//
// All long-running components run under a suture supervisor tree with
// data, learning, and api layers for failure isolation.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (ACCORD_SERVER_PORT -> server.port)
//   - Config file (accord.yaml, or ACCORD_CONFIG)
//   - Built-in defaults
//
// The config file is watched; edits to the enabled source set, breaker
// thresholds, cache TTLs, ranking options, personalization weights,
// learner rates and default weights, and the log level apply without a
// restart.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests and feedback handlers to complete
//   - Flushes a final weight snapshot and closes the state store
//
// # Example Usage
//
// Local development with the in-memory transport and no persistence:
//
//	export ACCORD_SOURCES_KEYWORD_URL=http://localhost:9301/score
//	export ACCORD_SOURCES_SEMANTIC_ENABLED=false
//	export ACCORD_STORE_PATH=
//	./accord
//
// Production with durable feedback over embedded NATS:
//
//	export ACCORD_FEEDBACK_TRANSPORT=nats
//	export ACCORD_FEEDBACK_NATS_EMBEDDED=true
//	export ACCORD_STORE_PATH=/data/accord
//	./accord
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/api"
	"github.com/scentdex/accord/internal/cache"
	"github.com/scentdex/accord/internal/config"
	"github.com/scentdex/accord/internal/feedback"
	"github.com/scentdex/accord/internal/learner"
	"github.com/scentdex/accord/internal/logging"
	"github.com/scentdex/accord/internal/metrics"
	"github.com/scentdex/accord/internal/ranking"
	"github.com/scentdex/accord/internal/ranking/source"
	"github.com/scentdex/accord/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Strs("sources", cfg.EnabledSources()).
		Str("feedback_transport", cfg.Feedback.Transport).
		Str("store_path", cfg.Store.Path).
		Msg("Starting Accord")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Shutdown complete")
}

//nolint:gocyclo // Sequential wiring of every subsystem
func run(cfg *config.Config) error {
	logger := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// State store. An empty path runs in-memory.
	store, err := learner.OpenStore(cfg.Store.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Catalog seed: drives both the popularity table and personalization
	// metadata. An unset path leaves both empty.
	catalog, popular, err := loadCatalog(cfg.Sources.CatalogPath)
	if err != nil {
		return err
	}

	adapters, breakers := buildAdapters(cfg, popular, logger)
	coordinator := ranking.NewCoordinator(adapters, cfg.Sources.Budget, logger)
	coordinator.SetEnabled(cfg.EnabledSources())

	// Weight learner, restored from the last persisted snapshot. Weights
	// span every constructed adapter so a source enabled at reload already
	// has its slot.
	learn := learner.New(learner.Config{
		Sources:         coordinator.Sources(),
		ExplorationRate: cfg.Learner.ExplorationRate,
		FloorWeight:     cfg.Learner.FloorWeight,
		Decay:           cfg.Learner.Decay,
		QueueSize:       cfg.Learner.QueueSize,
		Seed:            cfg.Learner.Seed,
		Defaults:        cfg.Learner.Defaults,
	}, logger)
	if saved, loadErr := store.LoadWeights(); loadErr != nil {
		logging.Warn().Err(loadErr).Msg("Could not load persisted weights, starting from defaults")
	} else if len(saved) > 0 {
		learn.Restore(saved)
		logging.Info().Int("buckets", len(saved)).Msg("Restored weight snapshot")
	}

	// Preference profiles with write-through persistence.
	profiles := learner.NewProfiles(learner.ProfileConfig{
		LearningRate:    cfg.Profile.LearningRate,
		DriftMultiplier: cfg.Profile.DriftMultiplier,
		ConfidenceStep:  cfg.Profile.ConfidenceStep,
		DriftWindow:     cfg.Profile.DriftWindow,
	}, logger)
	profiles.SetPersistence(
		func(p *ranking.UserPreferenceProfile) {
			if saveErr := store.SaveProfile(p); saveErr != nil {
				logging.Error().Err(saveErr).Str("user_id", p.UserID).Msg("Profile persist failed")
			}
		},
		func(userID string) {
			if delErr := store.DeleteProfile(userID); delErr != nil {
				logging.Error().Err(delErr).Str("user_id", userID).Msg("Profile delete failed")
			}
		},
	)
	if saved, loadErr := store.LoadProfiles(); loadErr != nil {
		logging.Warn().Err(loadErr).Msg("Could not load persisted profiles")
	} else if len(saved) > 0 {
		profiles.Restore(saved)
		logging.Info().Int("profiles", len(saved)).Msg("Restored preference profiles")
	}

	// Tiered response cache.
	cacheManager := cache.NewManager(cache.ManagerConfig{
		ResultTTL:         cfg.Cache.ResultTTL,
		RecommendationTTL: cfg.Cache.RecommendationTTL,
		SweepInterval:     cfg.Cache.SweepInterval,
	}, logger)
	defer cacheManager.Close()
	cacheManager.SetObserver(metrics.ObserveCache)

	// Drift flips the affected user onto the elevated learning rate and
	// drops their cached recommendations immediately.
	drift := learner.NewDrift(learner.DriftConfig{
		WindowSize:  cfg.Drift.WindowSize,
		CheckEvery:  cfg.Drift.CheckEvery,
		Threshold:   cfg.Drift.Threshold,
		MinBaseline: cfg.Drift.MinBaseline,
	}, func(sig learner.DriftSignal) {
		metrics.ObserveDrift(sig.UserID, sig.Divergence)
		// Population drift (empty user id) is observed and logged but has
		// no profile or per-user cache to touch.
		removed := 0
		if sig.UserID != "" {
			profiles.MarkDrifting(sig.UserID)
			removed = cacheManager.InvalidateUser(sig.UserID)
			metrics.ObserveCacheInvalidation("drift", removed)
		}
		logging.Info().
			Str("user_id", sig.UserID).
			Float64("divergence", sig.Divergence).
			Int("cache_removed", removed).
			Msg("Preference drift detected")
	}, logger)

	personalizer := ranking.NewPersonalizer(catalog, personalizerConfig(cfg), logger)

	engine := ranking.NewEngine(coordinator, personalizer, learn, logger)
	engine.SetProfiles(profiles)
	engine.SetCache(cacheManager)
	engine.SetRecorder(metrics.NewRecorder())
	engine.SetOptions(engineOptions(cfg))

	// Feedback transport and consumer router.
	bus, err := buildTransport(cfg, feedback.NewWatermillLogger(logger))
	if err != nil {
		return err
	}
	defer bus.close()

	publisher := feedback.NewPublisher(bus.publisher)
	router, err := feedback.NewRouter(feedback.RouterConfig{
		CloseTimeout:         cfg.Feedback.CloseTimeout,
		RetryMaxRetries:      cfg.Feedback.RetryMaxRetries,
		RetryInitialInterval: cfg.Feedback.RetryInitialInterval,
		RetryMaxInterval:     cfg.Feedback.RetryMaxInterval,
	}, bus.subscriber, feedback.Consumers{
		Learner: learn,
		Drift:   drift,
		Profile: profiles,
		Cache:   cacheManager,
		Catalog: catalog,
	}, logger)
	if err != nil {
		return err
	}

	// HTTP API.
	handler := api.NewHandler(api.HandlerDeps{
		Engine:    engine,
		Publisher: publisher,
		Weights:   learn,
		Eraser:    profiles,
		Cache:     cacheManager,
		Breakers:  breakerStates(breakers),
		CacheLen:  func() int { return int(cacheManager.GetStats().Keys) },
	}, logger)
	serverCfg := api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	}
	server := api.NewServer(serverCfg, api.NewRouter(serverCfg, handler), logger)

	// Supervision tree: data (snapshot flusher), learning (learner +
	// feedback router), api (HTTP server).
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	tree.AddDataService(supervisor.NewSnapshotService(learn, store, cfg.Store.SaveInterval, logger))
	tree.AddLearningService(learn)
	tree.AddLearningService(router)
	tree.AddAPIService(server)

	watchConfig(engine, cacheManager, learn, personalizer, coordinator, breakers)

	err = tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	// Final snapshot so a clean shutdown loses nothing.
	if snapshot := learn.Export(); len(snapshot) > 0 {
		if flushErr := store.SaveAllWeights(snapshot); flushErr != nil {
			logging.Error().Err(flushErr).Msg("Final weight snapshot failed")
		}
	}
	return err
}

// loadCatalog reads the catalog seed file when configured. The catalog is
// always non-nil so personalization and the feedback router degrade to
// metadata-less behavior rather than nil checks everywhere.
func loadCatalog(path string) (*source.MemoryCatalog, []source.PopularItem, error) {
	if path == "" {
		return source.NewMemoryCatalog(nil), nil, nil
	}
	items, err := source.LoadCatalogFile(path)
	if err != nil {
		return nil, nil, err
	}
	logging.Info().Str("path", path).Int("items", len(items)).Msg("Catalog loaded")
	return source.NewMemoryCatalog(items), source.PopularItems(items), nil
}

// buildAdapters constructs every configurable source adapter, each wrapped
// in a circuit breaker feeding the transition metrics. Adapters are built
// whenever their endpoints are configured, even if currently disabled, so
// the coordinator's enable set can bring them in at a config reload. A
// source with no endpoint configured cannot be hot-enabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func buildAdapters(cfg *config.Config, popular []source.PopularItem, logger zerolog.Logger) ([]ranking.Adapter, []*ranking.BreakerAdapter) {
	breakerCfg := breakerConfig(cfg)

	var adapters []ranking.Adapter
	var breakers []*ranking.BreakerAdapter
	wrap := func(inner ranking.Adapter) {
		b := ranking.NewBreakerAdapter(inner, breakerCfg, logger, metrics.ObserveBreakerTransition)
		adapters = append(adapters, b)
		breakers = append(breakers, b)
	}

	if cfg.Sources.Keyword.URL != "" {
		client := source.NewClient(source.ClientConfig{
			URL:               cfg.Sources.Keyword.URL,
			Timeout:           cfg.Sources.Keyword.Timeout,
			RequestsPerSecond: cfg.Sources.Keyword.RateLimit,
		})
		wrap(source.NewKeyword(client, cfg.Sources.Keyword.Limit))
	}
	if cfg.Sources.Semantic.URL != "" && cfg.Sources.Semantic.EmbedderURL != "" {
		client := source.NewClient(source.ClientConfig{
			URL:               cfg.Sources.Semantic.URL,
			Timeout:           cfg.Sources.Semantic.Timeout,
			RequestsPerSecond: cfg.Sources.Semantic.RateLimit,
		})
		embedder := source.NewHTTPEmbedder(cfg.Sources.Semantic.EmbedderURL, cfg.Sources.Semantic.Timeout)
		wrap(source.NewSemantic(embedder, client, cfg.Sources.Semantic.Limit))
	}
	wrap(source.NewPopularity(popular, cfg.Sources.Popularity.Limit))
	return adapters, breakers
}

// breakerStates exposes per-source circuit states for the health endpoint.
func breakerStates(breakers []*ranking.BreakerAdapter) api.BreakerStates {
	return func() map[string]string {
		out := make(map[string]string, len(breakers))
		for _, b := range breakers {
			out[b.Name()] = b.State()
		}
		return out
	}
}

// bus bundles the feedback pub/sub pair with its transport cleanup.
type bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	embedded   *feedback.EmbeddedServer
}

func (b *bus) close() {
	if b.embedded != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.embedded.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS shutdown incomplete")
		}
	}
}

// buildTransport selects the feedback transport: in-process gochannel by
// default, NATS JetStream (external or embedded) when configured.
func buildTransport(cfg *config.Config, wmLogger watermill.LoggerAdapter) (*bus, error) {
	if cfg.Feedback.Transport != "nats" {
		ch := feedback.NewGoChannel(cfg.Feedback.Buffer, wmLogger)
		return &bus{publisher: ch, subscriber: ch}, nil
	}

	natsCfg := feedback.DefaultNATSConfig(cfg.Feedback.NATS.URL)
	if cfg.Feedback.NATS.QueueGroup != "" {
		natsCfg.QueueGroup = cfg.Feedback.NATS.QueueGroup
	}
	if cfg.Feedback.NATS.DurableName != "" {
		natsCfg.DurableName = cfg.Feedback.NATS.DurableName
	}

	var embedded *feedback.EmbeddedServer
	if cfg.Feedback.NATS.Embedded {
		srv, err := feedback.StartEmbeddedServer(feedback.EmbeddedServerConfig{
			Host:     cfg.Feedback.NATS.Host,
			Port:     cfg.Feedback.NATS.Port,
			StoreDir: cfg.Feedback.NATS.StoreDir,
		})
		if err != nil {
			return nil, err
		}
		embedded = srv
		natsCfg.URL = srv.ClientURL()
	}

	pub, err := feedback.NewNATSPublisher(natsCfg, wmLogger)
	if err != nil {
		return nil, err
	}
	sub, err := feedback.NewNATSSubscriber(natsCfg, wmLogger)
	if err != nil {
		return nil, err
	}
	return &bus{publisher: pub, subscriber: sub, embedded: embedded}, nil
}

func engineOptions(cfg *config.Config) ranking.Options {
	return ranking.Options{
		MinQueryLength: cfg.Ranking.MinQueryLength,
		DefaultK:       cfg.Ranking.DefaultK,
		MaxK:           cfg.Ranking.MaxK,
		Aggregator:     ranking.AggregatorConfig{BoostFactor: cfg.Ranking.OverlapBoost},
	}
}

func personalizerConfig(cfg *config.Config) ranking.PersonalizerConfig {
	return ranking.PersonalizerConfig{
		ConfidenceFloor: cfg.Ranking.ConfidenceFloor,
		VectorWeight:    cfg.Ranking.VectorWeight,
		FamilyWeight:    cfg.Ranking.FamilyWeight,
		BrandWeight:     cfg.Ranking.BrandWeight,
	}
}

func breakerConfig(cfg *config.Config) ranking.BreakerConfig {
	return ranking.BreakerConfig{
		FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
		CoolDown:         cfg.Breaker.CoolDown,
	}
}

// watchConfig applies hot-reloadable settings when the config file changes.
// Failed reloads keep the previous configuration active.
func watchConfig(
	engine *ranking.Engine,
	cacheManager *cache.Manager,
	learn *learner.Learner,
	personalizer *ranking.Personalizer,
	coordinator *ranking.Coordinator,
	breakers []*ranking.BreakerAdapter,
) {
	path := config.FindConfigFile()
	if path == "" {
		return
	}
	err := config.Watch(path, func(next *config.Config, err error) {
		if err != nil {
			logging.Error().Err(err).Msg("Config reload failed, keeping previous configuration")
			return
		}
		engine.SetOptions(engineOptions(next))
		personalizer.SetConfig(personalizerConfig(next))
		coordinator.SetEnabled(next.EnabledSources())
		for _, b := range breakers {
			b.UpdateConfig(breakerConfig(next))
		}
		cacheManager.SetTTLs(next.Cache.ResultTTL, next.Cache.RecommendationTTL)
		learn.UpdateConfig(next.Learner.ExplorationRate, next.Learner.FloorWeight, next.Learner.Decay)
		learn.SeedDefaults(next.Learner.Defaults)
		logging.SetLevelString(next.Logging.Level)
		logging.Info().Str("path", path).Msg("Configuration reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config watch unavailable")
		return
	}
	logging.Info().Str("path", path).Msg("Watching config file for changes")
}

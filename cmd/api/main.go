// Package main implements the Astra API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/astra/engine/assistant"
	"github.com/WessleyAI/astra/engine/catalog"
	"github.com/WessleyAI/astra/engine/chat"
	"github.com/WessleyAI/astra/engine/graph"
	"github.com/WessleyAI/astra/engine/knowledge"
	"github.com/WessleyAI/astra/engine/review"
	"github.com/WessleyAI/astra/engine/semantic"
	"github.com/WessleyAI/astra/engine/viz"
	"github.com/WessleyAI/astra/pkg/metrics"
	"github.com/WessleyAI/astra/pkg/mid"
	"github.com/WessleyAI/astra/pkg/natsutil"
	"github.com/WessleyAI/astra/pkg/ollama"
	"github.com/WessleyAI/astra/pkg/resilience"
	"github.com/WessleyAI/astra/pkg/telemetry"
)

const serviceName = "astra-api"

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	policy, err := cfg.unknownDataPolicy()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing and metrics ---
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Protocol:    cfg.OTLPProtocol,
		Insecure:    true,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutCtx); err != nil {
			logger.Warn("tracing shutdown", "err", err)
		}
	}()
	m := metrics.New()

	// --- Catalog (SQLite) ---
	store, err := catalog.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// --- Relationship graph (Neo4j, optional) ---
	var (
		rels  knowledge.RelationshipSource
		stats graphStats
	)
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		g := graph.New(driver).WithLogger(logger)
		rels, stats = g, g
	} else {
		logger.Info("neo4j not configured, relationship data disabled")
	}

	// --- Knowledge cache (Redis, optional) ---
	kopts := knowledge.Options{CacheTTL: cfg.CacheTTL, Metrics: m, Logger: logger}
	if cfg.RedisAddr != "" {
		rc, err := knowledge.NewRedisCache(ctx, knowledge.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "astra:",
		})
		if err != nil {
			logger.Warn("redis unavailable, knowledge cache disabled", "err", err)
		} else {
			defer rc.Close()
			kopts.Cache = rc
		}
	}
	fetcher := knowledge.New(rels, store, kopts)

	// --- Language models (Ollama) ---
	llm := ollama.New(cfg.OllamaURL, ollama.DefaultOptions())

	// --- Review search (Qdrant, optional) ---
	var (
		snippets assistant.SnippetSource
		indexer  review.Indexer
	)
	if cfg.QdrantURL != "" {
		vs, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer vs.Close()
		if err := vs.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
			logger.Warn("qdrant collection setup failed, review search disabled", "err", err)
		} else {
			idx := semantic.NewIndex(vs, ollama.EmbedModel{Client: llm, Model: cfg.EmbedModel})
			snippets, indexer = idx, idx
		}
	}

	// --- Assistant ---
	router := assistant.NewRouter(
		assistant.OllamaModel{Client: llm, Model: cfg.PrimaryModel, Temperature: 0.7},
		assistant.OllamaModel{Client: llm, Model: cfg.FallbackModel, Temperature: 0.7},
		assistant.RouterOptions{
			Timeout: 45 * time.Second,
			Breaker: resilience.BreakerOpts{FailThreshold: 3, Timeout: 30 * time.Second},
			Metrics: m,
			Logger:  logger,
		},
	)
	svc := assistant.New(store, fetcher, snippets, router, assistant.DefaultOptions(), logger)

	// --- Events (NATS, optional) ---
	var (
		nc     *nats.Conn
		events review.Publisher
	)
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(serviceName))
		if err != nil {
			logger.Warn("nats unavailable, events disabled", "err", err)
			nc = nil
		} else {
			defer nc.Drain()
			events = natsutil.NewBus(nc)
		}
	}

	// --- Reviews ---
	ropts := review.DefaultOptions()
	ropts.Model = cfg.ReviewModel
	ropts.Index = indexer
	ropts.Events = events
	ropts.Metrics = m
	ropts.Logger = logger
	reviews := review.NewGenerator(store, store, llm, ropts)

	// --- Sessions ---
	shaper := viz.NewShaper(fetcher, policy)
	var backend assistant.Backend = svc
	if cfg.ChatBackendURL != "" {
		backend = assistant.NewHTTPBackend(cfg.ChatBackendURL, 60*time.Second, logger)
		logger.Info("sessions use remote chat backend", "url", cfg.ChatBackendURL)
	}
	sessions := chat.NewRegistry(store, m)
	orch := chat.NewOrchestrator(backend, chat.Options{
		Shaper:  shaper,
		Events:  events,
		Metrics: m,
		Logger:  logger,
	})

	// --- Background jobs ---
	ref := &refresher{store: store, cache: fetcher, metrics: m, logger: logger}
	sched, err := newScheduler(ctx, cfg.RefreshSchedule, ref, sessions, cfg.SessionIdleTTL, logger)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()
	if nc != nil {
		sub, err := subscribeReviews(nc, ref)
		if err != nil {
			logger.Warn("review event subscription failed", "err", err)
		} else {
			defer sub.Unsubscribe()
		}
	}

	// --- HTTP server ---
	srv := &server{
		cars:     store,
		chat:     svc,
		reviews:  reviews,
		shaper:   shaper,
		graph:    stats,
		sessions: sessions,
		orch:     orch,
		logger:   logger,
	}
	mux := srv.routes()
	mux.Handle("GET /metrics", m.Handler())

	limiter := resilience.NewKeyedLimiter(resilience.LimiterOpts{
		Rate:    cfg.RateLimit,
		Burst:   cfg.RateBurst,
		IdleTTL: 10 * time.Minute,
	})
	handler := mid.Chain(mux,
		mid.RequestID(),
		mid.Recover(logger),
		mid.Logger(logger, m),
		mid.CORS(cfg.CORSOrigins...),
		mid.RateLimit(limiter, "/api/chat", "/api/reviews/generate", "/api/sessions"),
		mid.OTel(serviceName),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "db", cfg.DBPath)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

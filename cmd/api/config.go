package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/WessleyAI/astra/engine/viz"
)

// Config holds all environment-based configuration. Optional backends are
// disabled by leaving their address empty.
type Config struct {
	Port        string
	DBPath      string
	CORSOrigins []string

	OllamaURL     string
	PrimaryModel  string
	FallbackModel string
	ReviewModel   string
	EmbedModel    string
	// ChatBackendURL points the session endpoints at a remote /api/chat
	// instead of the in-process assistant.
	ChatBackendURL string

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	QdrantURL  string
	Collection string
	EmbedDims  int

	NATSURL string

	OTLPEndpoint string
	OTLPProtocol string

	RateLimit float64
	RateBurst int

	RefreshSchedule string
	SessionIdleTTL  time.Duration

	VizPolicy string
	VizSeed   int64
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		DBPath:      envOr("ASTRA_DB", "astra.db"),
		CORSOrigins: strings.Split(envOr("CORS_ORIGIN", "*"), ","),

		OllamaURL:      envOr("OLLAMA_URL", "http://localhost:11434"),
		PrimaryModel:   envOr("PRIMARY_MODEL", "llama3.1"),
		FallbackModel:  envOr("FALLBACK_MODEL", "mistral"),
		ReviewModel:    envOr("REVIEW_MODEL", "llama3.1"),
		EmbedModel:     envOr("EMBED_MODEL", "nomic-embed-text"),
		ChatBackendURL: os.Getenv("CHAT_BACKEND_URL"),

		Neo4jURL:  os.Getenv("NEO4J_URL"),
		Neo4jUser: envOr("NEO4J_USER", "neo4j"),
		Neo4jPass: envOr("NEO4J_PASS", "password"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		CacheTTL:      envDuration("CACHE_TTL", 10*time.Minute),

		QdrantURL:  os.Getenv("QDRANT_URL"),
		Collection: envOr("QDRANT_COLLECTION", "astra_reviews"),
		EmbedDims:  envInt("EMBED_DIMS", 768),

		NATSURL: os.Getenv("NATS_URL"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPProtocol: envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),

		RateLimit: envFloat("RATE_LIMIT_RPS", 2),
		RateBurst: envInt("RATE_LIMIT_BURST", 10),

		RefreshSchedule: envOr("SENTIMENT_REFRESH", "@every 15m"),
		SessionIdleTTL:  envDuration("SESSION_IDLE_TTL", 2*time.Hour),

		VizPolicy: envOr("VIZ_UNKNOWN_POLICY", "omit"),
		VizSeed:   int64(envInt("VIZ_SEED", 0)),
	}
}

// unknownDataPolicy resolves VIZ_UNKNOWN_POLICY. A name it does not know is a
// startup error.
func (c Config) unknownDataPolicy() (viz.UnknownDataPolicy, error) {
	p, err := viz.ParsePolicy(c.VizPolicy, c.VizSeed)
	if err != nil {
		return nil, fmt.Errorf("VIZ_UNKNOWN_POLICY: %w", err)
	}
	return p, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

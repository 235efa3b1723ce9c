// Package main runs the chat backend on its own: POST /api/chat answered by
// the assistant over the local catalog, for deployments where the API server
// is pointed at it through CHAT_BACKEND_URL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/WessleyAI/astra/engine/assistant"
	"github.com/WessleyAI/astra/engine/catalog"
	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/knowledge"
	"github.com/WessleyAI/astra/engine/semantic"
	"github.com/WessleyAI/astra/pkg/metrics"
	"github.com/WessleyAI/astra/pkg/mid"
	"github.com/WessleyAI/astra/pkg/ollama"
	"github.com/WessleyAI/astra/pkg/resilience"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("chat backend exited with error", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ollamaURL := envOr("OLLAMA_URL", "http://localhost:11434")
	port := envOr("PORT", "8090")

	store, err := catalog.Open(ctx, envOr("ASTRA_DB", "astra.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	fetcher := knowledge.New(nil, store, knowledge.Options{Metrics: m, Logger: logger})
	llm := ollama.New(ollamaURL, ollama.DefaultOptions())

	var snippets assistant.SnippetSource
	if addr := os.Getenv("QDRANT_URL"); addr != "" {
		vs, err := semantic.New(addr, envOr("QDRANT_COLLECTION", "astra_reviews"))
		if err != nil {
			return err
		}
		defer vs.Close()
		snippets = semantic.NewIndex(vs, ollama.EmbedModel{Client: llm, Model: envOr("EMBED_MODEL", "nomic-embed-text")})
	}

	router := assistant.NewRouter(
		assistant.OllamaModel{Client: llm, Model: envOr("PRIMARY_MODEL", "llama3.1"), Temperature: 0.7},
		assistant.OllamaModel{Client: llm, Model: envOr("FALLBACK_MODEL", "mistral"), Temperature: 0.7},
		assistant.RouterOptions{
			Timeout: 45 * time.Second,
			Breaker: resilience.BreakerOpts{FailThreshold: 3, Timeout: 30 * time.Second},
			Metrics: m,
			Logger:  logger,
		},
	)
	svc := assistant.New(store, fetcher, snippets, router, assistant.DefaultOptions(), logger)

	mux := routes(svc, logger)
	mux.Handle("GET /metrics", m.Handler())
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mid.Chain(mux, mid.RequestID(), mid.Recover(logger), mid.Logger(logger, m), mid.CORS("*")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("chat backend starting", "port", port, "ollama", ollamaURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

type chatService interface {
	assistant.Backend
	Metrics() assistant.RouterMetrics
}

func routes(svc chatService, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/chat/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"metrics": svc.Metrics(), "status": "operational"})
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		handleChat(w, r, svc, logger)
	})
	return mux
}

func handleChat(w http.ResponseWriter, r *http.Request, svc assistant.Backend, logger *slog.Logger) {
	var req assistant.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) != "" {
		if err := domain.ValidateQuery(req.Message); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	resp, err := svc.Chat(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrBackendCallFailed) {
			status = http.StatusBadGateway
		}
		logger.Error("chat failed", "entity_id", req.EntityID, "err", err)
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/WessleyAI/astra/engine/assistant"
	"github.com/WessleyAI/astra/engine/catalog"
	"github.com/WessleyAI/astra/engine/chat"
	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/graph"
	"github.com/WessleyAI/astra/engine/intent"
	"github.com/WessleyAI/astra/engine/review"
	"github.com/WessleyAI/astra/engine/viz"
	"github.com/WessleyAI/astra/pkg/resilience"
)

const maxBody = 1 << 20

// carStore is the catalog as seen by the handlers.
type carStore interface {
	SearchCars(ctx context.Context, f catalog.CarFilter) ([]domain.Car, error)
	GetCar(ctx context.Context, id string) (*domain.Car, error)
	Manufacturers(ctx context.Context) ([]string, error)
	ReviewsForCar(ctx context.Context, carID string) ([]domain.Review, error)
	AddReview(ctx context.Context, r domain.Review) (domain.Review, error)
}

// chatService answers /api/chat and reports routing counters.
type chatService interface {
	assistant.Backend
	Metrics() assistant.RouterMetrics
}

type reviewWriter interface {
	Generate(ctx context.Context, carID string) (domain.Review, error)
	Announce(ctx context.Context, r domain.Review)
}

type graphStats interface {
	Stats(ctx context.Context) (graph.Stats, error)
}

// server holds the handler dependencies. shaper and graph may be nil.
type server struct {
	cars     carStore
	chat     chatService
	reviews  reviewWriter
	shaper   chat.Shaper
	graph    graphStats
	sessions *chat.Registry
	orch     *chat.Orchestrator
	logger   *slog.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)

	mux.HandleFunc("GET /api/cars", s.handleListCars)
	mux.HandleFunc("GET /api/cars/{id}", s.handleGetCar)
	mux.HandleFunc("GET /api/cars/{id}/reviews", s.handleListReviews)
	mux.HandleFunc("POST /api/cars/{id}/reviews", s.handleAddReview)
	mux.HandleFunc("GET /api/cars/{id}/reviews/analysis", s.handleReviewAnalysis)
	mux.HandleFunc("GET /api/cars/{id}/visualization", s.handleVisualization)
	mux.HandleFunc("GET /api/manufacturers", s.handleManufacturers)
	mux.HandleFunc("POST /api/reviews/generate", s.handleGenerateReview)
	mux.HandleFunc("GET /api/graph/stats", s.handleGraphStats)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/metrics", s.handleChatMetrics)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSubmit)
	mux.HandleFunc("POST /api/sessions/{id}/retry", s.handleRetry)
	mux.HandleFunc("GET /api/sessions/{id}/messages/{msgID}/reveal", s.handleReveal)
	return mux
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrBackendCallFailed), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusBadGateway
	case errors.Is(err, chat.ErrNothingToRetry):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict:
		msg = err.Error()
	case http.StatusInternalServerError:
		s.logger.Error(op+" failed", "path", r.URL.Path, "err", err)
	default:
		s.logger.Warn(op+" failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, msg)
}

// --- catalog ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleListCars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cars, err := s.cars.SearchCars(r.Context(), catalog.CarFilter{
		Query:        q.Get("query"),
		Manufacturer: q.Get("manufacturer"),
	})
	if err != nil {
		s.logger.Warn("list cars failed", "err", err)
		cars = []domain.Car{}
	}
	writeJSON(w, http.StatusOK, cars)
}

func (s *server) handleGetCar(w http.ResponseWriter, r *http.Request) {
	car, err := s.cars.GetCar(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "get car", err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (s *server) handleManufacturers(w http.ResponseWriter, r *http.Request) {
	names, err := s.cars.Manufacturers(r.Context())
	if err != nil {
		s.logger.Warn("list manufacturers failed", "err", err)
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *server) reviewsOf(w http.ResponseWriter, r *http.Request) ([]domain.Review, bool) {
	id := r.PathValue("id")
	if _, err := s.cars.GetCar(r.Context(), id); err != nil {
		s.fail(w, r, "get car", err)
		return nil, false
	}
	reviews, err := s.cars.ReviewsForCar(r.Context(), id)
	if err != nil {
		s.logger.Warn("list reviews failed", "car_id", id, "err", err)
		reviews = []domain.Review{}
	}
	return reviews, true
}

func (s *server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	if reviews, ok := s.reviewsOf(w, r); ok {
		writeJSON(w, http.StatusOK, reviews)
	}
}

func (s *server) handleReviewAnalysis(w http.ResponseWriter, r *http.Request) {
	if reviews, ok := s.reviewsOf(w, r); ok {
		writeJSON(w, http.StatusOK, review.Analyze(reviews))
	}
}

func (s *server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in domain.Review
	if !decodeBody(w, r, &in) {
		return
	}
	if _, err := s.cars.GetCar(r.Context(), id); err != nil {
		s.fail(w, r, "get car", err)
		return
	}
	in.ID, in.CarID, in.AIGenerated = "", id, false
	saved, err := s.cars.AddReview(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add review", err)
		return
	}
	s.reviews.Announce(r.Context(), saved)
	writeJSON(w, http.StatusCreated, saved)
}

// GenerateReviewRequest is the body of POST /api/reviews/generate.
type GenerateReviewRequest struct {
	CarID string `json:"car_id"`
}

func (s *server) handleGenerateReview(w http.ResponseWriter, r *http.Request) {
	var req GenerateReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CarID) == "" {
		writeError(w, http.StatusBadRequest, "car_id is required")
		return
	}
	rev, err := s.reviews.Generate(r.Context(), req.CarID)
	if err != nil {
		s.fail(w, r, "generate review", err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		writeError(w, http.StatusServiceUnavailable, "graph store not configured")
		return
	}
	stats, err := s.graph.Stats(r.Context())
	if err != nil {
		s.fail(w, r, "graph stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- visualization ---

func (s *server) handleVisualization(w http.ResponseWriter, r *http.Request) {
	if s.shaper == nil {
		writeError(w, http.StatusServiceUnavailable, "visualization not configured")
		return
	}
	car, err := s.cars.GetCar(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "get car", err)
		return
	}

	category := intent.Category(r.URL.Query().Get("type"))
	if category == "" {
		category = intent.Classify(r.URL.Query().Get("q"))
	} else if !category.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown visualization type %q", category))
		return
	}
	if !category.Valid() {
		writeJSON(w, http.StatusOK, viz.Visualization{Type: intent.None})
		return
	}

	v, err := s.shaper.Shape(r.Context(), category, car.ID, *car)
	if err != nil {
		s.fail(w, r, "visualize", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// --- chat ---

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req assistant.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) != "" {
		if err := domain.ValidateQuery(req.Message); err != nil {
			s.fail(w, r, "chat", err)
			return
		}
	}
	resp, err := s.chat.Chat(r.Context(), req)
	if err != nil {
		s.fail(w, r, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleChatMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": s.chat.Metrics(),
		"status":  "operational",
	})
}

// --- sessions ---

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	CarID string `json:"car_id"`
}

// SubmitRequest is the body of POST /api/sessions/{id}/messages.
type SubmitRequest struct {
	Text string `json:"text"`
}

// MessagesResponse lists the messages a turn appended.
type MessagesResponse struct {
	Messages   []chat.Message `json:"messages"`
	RetryCount int            `json:"retry_count"`
}

func (s *server) session(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "get session", err)
		return nil, false
	}
	return sess, true
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.sessions.Create(r.Context(), req.CarID)
	if err != nil {
		s.fail(w, r, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.View())
	}
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) != "" {
		if err := domain.ValidateQuery(req.Text); err != nil {
			s.fail(w, r, "submit", err)
			return
		}
	}
	msgs := s.orch.Submit(r.Context(), sess, req.Text)
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: msgs, RetryCount: sess.RetryCount()})
}

func (s *server) handleRetry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	msgs, err := s.orch.Retry(r.Context(), sess)
	if err != nil {
		s.fail(w, r, "retry", err)
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: msgs, RetryCount: sess.RetryCount()})
}

// handleReveal streams a message as server-sent events, size runes per
// event, pausing interval milliseconds between events.
func (s *server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	msg, ok := sess.Message(r.PathValue("msgID"))
	if !ok {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	interval := 30 * time.Millisecond
	if v, err := strconv.Atoi(r.URL.Query().Get("interval")); err == nil && v >= 0 {
		interval = time.Duration(v) * time.Millisecond
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for chunk := range chat.Reveal(msg.Text, size) {
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
		if interval > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(interval):
			}
		}
	}
	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

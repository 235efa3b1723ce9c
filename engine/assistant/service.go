package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/astra/engine/catalog"
	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/intent"
	"github.com/WessleyAI/astra/engine/semantic"
	"github.com/WessleyAI/astra/pkg/ollama"
)

// CarSource reads catalog cars.
type CarSource interface {
	GetCar(ctx context.Context, id string) (*domain.Car, error)
	SearchCars(ctx context.Context, f catalog.CarFilter) ([]domain.Car, error)
}

// FeatureSource reads feature ratings; it never fails.
type FeatureSource interface {
	FetchFeatures(ctx context.Context, ids []string) map[string]domain.FeatureSet
}

// SnippetSource finds review passages relevant to a question.
type SnippetSource interface {
	Snippets(ctx context.Context, carID, query string, k int) ([]semantic.Snippet, error)
}

// Options configures the Service.
type Options struct {
	// CatalogSample is how many cars are listed in the system prompt.
	CatalogSample int
	// HistoryLimit is how many prior messages are replayed.
	HistoryLimit int
	// Snippets is how many review passages are added to the prompt. Pass a
	// nil SnippetSource to New to leave them out.
	Snippets      int
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		CatalogSample: 10,
		HistoryLimit:  10,
		Snippets:      3,
		SearchTimeout: 3 * time.Second,
	}
}

// EmptyMessageReply answers a turn with no text.
const EmptyMessageReply = "I'm not sure what you're asking. Can you provide more details?"

// Service answers chat turns against the local catalog.
type Service struct {
	cars     CarSource
	features FeatureSource
	snippets SnippetSource
	router   *Router
	opts     Options
	logger   *slog.Logger
}

// New creates a Service. features and snippets may be nil.
func New(cars CarSource, features FeatureSource, snippets SnippetSource, router *Router, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.CatalogSample <= 0 {
		opts.CatalogSample = def.CatalogSample
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = def.HistoryLimit
	}
	if opts.Snippets <= 0 {
		opts.Snippets = def.Snippets
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = def.SearchTimeout
	}
	return &Service{
		cars:     cars,
		features: features,
		snippets: snippets,
		router:   router,
		opts:     opts,
		logger:   logger,
	}
}

// Chat answers one turn. When every model fails the error wraps
// domain.ErrBackendCallFailed.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return &ChatResponse{Response: EmptyMessageReply}, nil
	}
	s.logger.Info("assistant chat", "entity_id", req.EntityID, "message_len", len(msg), "history", len(req.ConversationHistory))

	car := s.loadCar(ctx, req.EntityID)
	var b strings.Builder
	b.WriteString(systemPrompt(s.sample(ctx), s.opts.CatalogSample, car))
	if car != nil {
		b.WriteString(s.reviewContext(ctx, car.ID, msg))
	}

	msgs := []ollama.Message{{Role: "system", Content: b.String()}}
	history := req.ConversationHistory
	if len(history) > s.opts.HistoryLimit {
		history = history[len(history)-s.opts.HistoryLimit:]
	}
	for _, h := range history {
		if h = strings.TrimSpace(h); h != "" {
			msgs = append(msgs, ollama.Message{Role: "user", Content: h})
		}
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: msg})

	reply, model, err := s.router.Route(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("assistant: chat: %w: %w", domain.ErrBackendCallFailed, err)
	}

	analysis := AnalyzeReply(reply)
	if car != nil && s.features != nil {
		if scores := s.features.FetchFeatures(ctx, []string{car.ID})[car.ID].OverallScores(); len(scores) > 0 {
			analysis.CategoryScores = scores
		}
	}

	return &ChatResponse{
		Response:   reply,
		EntityData: car,
		Analysis:   &analysis,
		Intent:     &Intent{PrimaryIntent: intent.PrimaryIntent(msg)},
		Model:      model,
	}, nil
}

// Metrics returns the router's counters.
func (s *Service) Metrics() RouterMetrics { return s.router.Metrics() }

func (s *Service) loadCar(ctx context.Context, id string) *domain.Car {
	if id == "" {
		return nil
	}
	car, err := s.cars.GetCar(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("assistant: load car failed, continuing without", "entity_id", id, "err", err)
		}
		return nil
	}
	return car
}

func (s *Service) sample(ctx context.Context) []domain.Car {
	cars, err := s.cars.SearchCars(ctx, catalog.CarFilter{Limit: s.opts.CatalogSample + 5})
	if err != nil {
		s.logger.Warn("assistant: catalog sample failed", "err", err)
		return nil
	}
	return cars
}

// reviewContext lists review passages for the prompt; failures are logged and skipped.
func (s *Service) reviewContext(ctx context.Context, carID, question string) string {
	if s.snippets == nil || s.opts.Snippets <= 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	hits, err := s.snippets.Snippets(ctx, carID, question, s.opts.Snippets)
	if err != nil {
		s.logger.Warn("assistant: review search failed, continuing without", "entity_id", carID, "err", err)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nWhat owners say in reviews of this car:")
	for _, h := range hits {
		fmt.Fprintf(&b, "\n- %q", h.Text)
		if h.Rating > 0 {
			fmt.Fprintf(&b, " (rated %g/5)", h.Rating)
		}
	}
	return b.String()
}

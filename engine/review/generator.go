// Package review generates car reviews with a language model (or a template
// when the model is unavailable) and summarises stored reviews.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/pkg/fn"
	"github.com/WessleyAI/astra/pkg/metrics"
	"github.com/WessleyAI/astra/pkg/natsutil"
	"github.com/WessleyAI/astra/pkg/ollama"
)

// Origins recorded on events and metrics.
const (
	OriginLLM      = "llm"
	OriginLLMText  = "llm_text"
	OriginTemplate = "template"
	OriginUser     = "user"
)

// CarLoader looks up the car being reviewed.
type CarLoader interface {
	GetCar(ctx context.Context, id string) (*domain.Car, error)
}

// Store persists reviews.
type Store interface {
	AddReview(ctx context.Context, r domain.Review) (domain.Review, error)
}

// Writer is the language model; *ollama.Client satisfies it.
type Writer interface {
	Chat(ctx context.Context, model string, msgs []ollama.Message, temperature float64, jsonFormat bool) (string, error)
}

// Indexer makes stored reviews searchable.
type Indexer interface {
	IndexReview(ctx context.Context, r domain.Review) error
}

// Publisher emits review events; *natsutil.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Event is published on natsutil.SubjectReviewCreated.
type Event struct {
	ReviewID    string    `json:"review_id"`
	CarID       string    `json:"car_id"`
	Rating      float64   `json:"rating"`
	AIGenerated bool      `json:"is_ai_generated"`
	Origin      string    `json:"origin"`
	At          time.Time `json:"at"`
}

// Options configures a Generator. Index, Events and Metrics are optional.
type Options struct {
	Model       string
	Temperature float64
	Timeout     time.Duration
	Index       Indexer
	Events      Publisher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Now         func() time.Time
}

// DefaultOptions returns the settings used by cmd/api.
func DefaultOptions() Options {
	return Options{Model: "llama3.1", Temperature: 0.7, Timeout: 60 * time.Second}
}

// Generator writes, stores and announces one review per call.
type Generator struct {
	cars     CarLoader
	store    Store
	writer   Writer
	opts     Options
	log      *slog.Logger
	pipeline fn.Stage[string, domain.Review]
}

// draft is a composed review that has not been stored yet.
type draft struct {
	review domain.Review
	origin string
}

// NewGenerator wires the load, compose and persist stages. A nil writer
// always produces template reviews.
func NewGenerator(cars CarLoader, store Store, writer Writer, opts Options) *Generator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	g := &Generator{cars: cars, store: store, writer: writer, opts: opts, log: opts.Logger}
	g.pipeline = fn.Then(
		fn.TracedStage("review.load", g.loadStage()),
		fn.Then(
			fn.TracedStage("review.compose", g.composeStage()),
			fn.TracedStage("review.persist", g.persistStage()),
		),
	)
	return g
}

// Generate produces a review for carID. Unknown cars return an error
// wrapping domain.ErrNotFound; a failing language model falls back to a
// template review rather than an error.
func (g *Generator) Generate(ctx context.Context, carID string) (domain.Review, error) {
	return g.pipeline(ctx, carID).Unwrap()
}

func (g *Generator) loadStage() fn.Stage[string, domain.Car] {
	return func(ctx context.Context, id string) fn.Result[domain.Car] {
		car, err := g.cars.GetCar(ctx, id)
		if err != nil {
			return fn.Err[domain.Car](fmt.Errorf("review: load car %s: %w", id, err))
		}
		return fn.Ok(*car)
	}
}

func (g *Generator) composeStage() fn.Stage[domain.Car, draft] {
	return func(ctx context.Context, car domain.Car) fn.Result[draft] {
		return fn.Ok(g.compose(ctx, car))
	}
}

func (g *Generator) compose(ctx context.Context, car domain.Car) draft {
	now := g.opts.Now()
	if g.writer == nil {
		return draft{review: Template(car, now), origin: OriginTemplate}
	}

	cctx := ctx
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := g.writer.Chat(cctx, g.opts.Model, prompt(car), g.opts.Temperature, true)
	g.opts.Metrics.ObserveLLM(g.opts.Model, err, time.Since(start))
	if err != nil {
		g.log.Warn("review: model failed, using template", "car_id", car.ID, "err", err)
		return draft{review: Template(car, now), origin: OriginTemplate}
	}

	origin := OriginLLM
	r, err := ParseReply(reply)
	if err != nil {
		g.log.Warn("review: malformed model reply", "car_id", car.ID, "err", err)
		r, origin = salvage(car, reply), OriginLLMText
	}
	if r.Text == "" {
		return draft{review: Template(car, now), origin: OriginTemplate}
	}
	if r.Author == "" {
		r.Author = "Astra"
	}
	if r.Title == "" {
		r.Title = car.DisplayName() + " Review"
	}
	r.CarID = car.ID
	r.Date = now.UTC()
	r.AIGenerated = true
	return draft{review: r, origin: origin}
}

func (g *Generator) persistStage() fn.Stage[draft, domain.Review] {
	return func(ctx context.Context, d draft) fn.Result[domain.Review] {
		saved, err := g.store.AddReview(ctx, d.review)
		if err != nil {
			return fn.Err[domain.Review](fmt.Errorf("review: save: %w", err))
		}
		g.announce(ctx, saved, d.origin)
		return fn.Ok(saved)
	}
}

// Announce indexes a stored review and publishes its event. Both steps are
// best effort. Generate calls it for its own reviews; callers storing
// user-written reviews call it directly.
func (g *Generator) Announce(ctx context.Context, r domain.Review) {
	g.announce(ctx, r, OriginUser)
}

func (g *Generator) announce(ctx context.Context, r domain.Review, origin string) {
	if g.opts.Index != nil {
		if err := g.opts.Index.IndexReview(ctx, r); err != nil {
			g.log.Warn("review: index failed", "review_id", r.ID, "err", err)
		}
	}
	if g.opts.Events != nil {
		ev := Event{
			ReviewID: r.ID, CarID: r.CarID, Rating: r.Rating,
			AIGenerated: r.AIGenerated, Origin: origin, At: g.opts.Now().UTC(),
		}
		if err := g.opts.Events.Publish(ctx, natsutil.SubjectReviewCreated, ev); err != nil {
			g.log.Warn("review: publish failed", "review_id", r.ID, "err", err)
		}
	}
	g.opts.Metrics.Review(origin)
	g.log.Info("review stored", "review_id", r.ID, "car_id", r.CarID, "origin", origin)
}

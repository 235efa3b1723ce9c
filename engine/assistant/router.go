package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/WessleyAI/astra/pkg/metrics"
	"github.com/WessleyAI/astra/pkg/ollama"
	"github.com/WessleyAI/astra/pkg/resilience"
)

// LLM completes a chat transcript.
type LLM interface {
	Name() string
	Complete(ctx context.Context, msgs []ollama.Message) (string, error)
}

// OllamaModel is an LLM served by an Ollama instance.
type OllamaModel struct {
	Client      *ollama.Client
	Model       string
	Temperature float64
}

func (m OllamaModel) Name() string { return m.Model }

func (m OllamaModel) Complete(ctx context.Context, msgs []ollama.Message) (string, error) {
	return m.Client.Chat(ctx, m.Model, msgs, m.Temperature, false)
}

// RouterMetrics is a snapshot of routing counters.
type RouterMetrics struct {
	PrimaryRequests    int64   `json:"primary_requests"`
	FallbackRequests   int64   `json:"fallback_requests"`
	Fallbacks          int64   `json:"fallbacks"`
	Failures           int64   `json:"failures"`
	AvgPrimaryMillis   float64 `json:"avg_primary_ms"`
	AvgFallbackMillis  float64 `json:"avg_fallback_ms"`
	PrimaryBreakerOpen bool    `json:"primary_breaker_open"`
}

// Router sends each transcript to the primary model and, when that fails
// or its breaker is open, to the fallback model.
type Router struct {
	primary  LLM
	fallback LLM
	breaker  *resilience.Breaker
	timeout  time.Duration
	prom     *metrics.Metrics
	logger   *slog.Logger

	mu    sync.Mutex
	stats RouterMetrics
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// Timeout bounds each model call; zero means no extra bound.
	Timeout time.Duration
	Breaker resilience.BreakerOpts
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewRouter creates a Router. fallback may be nil.
func NewRouter(primary, fallback LLM, opts RouterOptions) *Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Breaker.Name == "" {
		opts.Breaker.Name = "llm-primary"
	}
	prom := opts.Metrics
	if opts.Breaker.OnStateChange == nil {
		logger := opts.Logger
		opts.Breaker.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("assistant: breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			prom.Breaker(name, int(to))
		}
	}
	return &Router{
		primary:  primary,
		fallback: fallback,
		breaker:  resilience.NewBreaker(opts.Breaker),
		timeout:  opts.Timeout,
		prom:     prom,
		logger:   opts.Logger,
	}
}

// Route returns the reply and the name of the model that produced it.
func (r *Router) Route(ctx context.Context, msgs []ollama.Message) (string, string, error) {
	reply, err := resilience.Do(r.breaker, ctx, func(ctx context.Context) (string, error) {
		return r.call(ctx, r.primary, &r.stats.PrimaryRequests, &r.stats.AvgPrimaryMillis, msgs)
	})
	if err == nil {
		return reply, r.primary.Name(), nil
	}
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		r.logger.Warn("assistant: primary model failed", "model", r.primary.Name(), "err", err)
	}
	if r.fallback == nil {
		r.fail()
		return "", "", fmt.Errorf("primary %s: %w", r.primary.Name(), err)
	}

	r.mu.Lock()
	r.stats.Fallbacks++
	r.mu.Unlock()
	r.prom.Fallback()

	reply, ferr := r.call(ctx, r.fallback, &r.stats.FallbackRequests, &r.stats.AvgFallbackMillis, msgs)
	if ferr != nil {
		r.fail()
		r.logger.Error("assistant: fallback model failed", "model", r.fallback.Name(), "err", ferr)
		return "", "", fmt.Errorf("primary %s: %w; fallback %s: %w", r.primary.Name(), err, r.fallback.Name(), ferr)
	}
	return reply, r.fallback.Name(), nil
}

func (r *Router) call(ctx context.Context, m LLM, count *int64, avg *float64, msgs []ollama.Message) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := m.Complete(ctx, msgs)
	elapsed := time.Since(start)
	r.prom.ObserveLLM(m.Name(), err, elapsed)

	r.mu.Lock()
	*count++
	*avg += (float64(elapsed.Milliseconds()) - *avg) / float64(*count)
	r.mu.Unlock()
	return reply, err
}

func (r *Router) fail() {
	r.mu.Lock()
	r.stats.Failures++
	r.mu.Unlock()
}

// Metrics returns a snapshot of the routing counters.
func (r *Router) Metrics() RouterMetrics {
	r.mu.Lock()
	out := r.stats
	r.mu.Unlock()
	out.PrimaryBreakerOpen = r.breaker.State() == resilience.StateOpen
	return out
}

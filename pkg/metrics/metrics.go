// Package metrics holds the Prometheus collectors for the assistant.
// Every recording method is safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "astra"

// Metrics is a private registry plus the collectors registered on it.
type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	LLMRequests      *prometheus.CounterVec
	LLMLatency       *prometheus.HistogramVec
	LLMFallbacks     prometheus.Counter
	ChatMessages     *prometheus.CounterVec
	ChatFailures     prometheus.Counter
	SessionsActive   prometheus.Gauge
	CacheLookups     *prometheus.CounterVec
	ReviewsCreated   *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	SentimentRefresh *prometheus.CounterVec
}

// New creates a registry with Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
		LLMRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "requests_total",
			Help: "Language model calls by model and outcome",
		}, []string{"model", "outcome"}),
		LLMLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "llm", Name: "latency_seconds",
			Help:    "Language model call latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
		}, []string{"model"}),
		LLMFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "fallbacks_total",
			Help: "Replies served by the fallback model",
		}),
		ChatMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "messages_total",
			Help: "Transcript messages appended by role",
		}, []string{"role"}),
		ChatFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "failures_total",
			Help: "Assistant turns that ended in an error message",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "chat", Name: "sessions_active",
			Help: "Conversation sessions held in memory",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "knowledge", Name: "cache_lookups_total",
			Help: "Knowledge cache lookups by result",
		}, []string{"result"}),
		ReviewsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reviews", Name: "created_total",
			Help: "Reviews stored by origin",
		}, []string{"origin"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "resilience", Name: "breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),
		SentimentRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "sentiment_refresh_total",
			Help: "Sentiment aggregate refresh runs by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveLLM records one model call.
func (m *Metrics) ObserveLLM(model string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMRequests.WithLabelValues(model, outcome).Inc()
	m.LLMLatency.WithLabelValues(model).Observe(d.Seconds())
}

// Fallback counts a reply served by the fallback model.
func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.LLMFallbacks.Inc()
}

// Message counts a transcript message; failed marks an error reply.
func (m *Metrics) Message(role string, failed bool) {
	if m == nil {
		return
	}
	m.ChatMessages.WithLabelValues(role).Inc()
	if failed {
		m.ChatFailures.Inc()
	}
}

// Sessions sets the live session gauge.
func (m *Metrics) Sessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// Cache records a knowledge cache lookup.
func (m *Metrics) Cache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Review counts a stored review by origin ("llm", "template", "user").
func (m *Metrics) Review(origin string) {
	if m == nil {
		return
	}
	m.ReviewsCreated.WithLabelValues(origin).Inc()
}

// Breaker records a breaker's state as its numeric value.
func (m *Metrics) Breaker(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// Refresh counts a sentiment refresh run.
func (m *Metrics) Refresh(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SentimentRefresh.WithLabelValues(outcome).Inc()
}

// Package knowledge reads the relationship graph and knowledge tables for a
// car. Every accessor fails closed: on a store error it logs and returns an
// empty result, so callers never see a data error.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/pkg/fn"
	"github.com/WessleyAI/astra/pkg/metrics"
)

// RelationshipSource reads outgoing relationships (the Neo4j graph).
type RelationshipSource interface {
	RelationshipsFrom(ctx context.Context, id string) ([]domain.Relationship, error)
}

// RecordSource reads the knowledge tables (the SQL catalog).
type RecordSource interface {
	FeatureRatings(ctx context.Context, carIDs []string) (map[string]domain.FeatureSet, error)
	TimelineEvents(ctx context.Context, carID string) ([]domain.TimelineEvent, error)
	SentimentAggregates(ctx context.Context, carID string) ([]domain.SentimentAggregate, error)
}

// Options configures a Fetcher.
type Options struct {
	Cache    Cache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{CacheTTL: 10 * time.Minute}
}

// Fetcher reads knowledge for the visualization shaper and the chat backend.
type Fetcher struct {
	graph   RelationshipSource
	records RecordSource
	opts    Options
	logger  *slog.Logger
}

// New creates a Fetcher. graph may be nil when no graph store is configured.
func New(graph RelationshipSource, records RecordSource, opts Options) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultOptions().CacheTTL
	}
	return &Fetcher{graph: graph, records: records, opts: opts, logger: logger}
}

// FetchRelationships returns the edges whose source is id.
func (f *Fetcher) FetchRelationships(ctx context.Context, id string) []domain.Relationship {
	ctx, span := otel.Tracer("engine/knowledge").Start(ctx, "knowledge.FetchRelationships")
	defer span.End()
	span.SetAttributes(attribute.String("car.id", id))

	if f.graph == nil {
		return []domain.Relationship{}
	}
	rels, err := cached(ctx, f, "rel:"+id, func() ([]domain.Relationship, error) {
		return f.graph.RelationshipsFrom(ctx, id)
	})
	if err != nil {
		f.logger.Warn("knowledge: relationships unavailable", "car_id", id, "err", err)
		span.RecordError(err)
		return []domain.Relationship{}
	}
	return nonNil(rels)
}

// FetchFeatures returns the feature sets of ids. Cars, categories and
// features without data are absent rather than zero-filled.
func (f *Fetcher) FetchFeatures(ctx context.Context, ids []string) map[string]domain.FeatureSet {
	ctx, span := otel.Tracer("engine/knowledge").Start(ctx, "knowledge.FetchFeatures")
	defer span.End()

	if len(ids) == 0 {
		return map[string]domain.FeatureSet{}
	}
	key := slices.Clone(ids)
	slices.Sort(key)
	feats, err := cached(ctx, f, "feat:"+strings.Join(key, ","), func() (map[string]domain.FeatureSet, error) {
		return f.records.FeatureRatings(ctx, ids)
	})
	if err != nil || feats == nil {
		if err != nil {
			f.logger.Warn("knowledge: features unavailable", "car_ids", ids, "err", err)
			span.RecordError(err)
		}
		return map[string]domain.FeatureSet{}
	}
	return feats
}

// FetchTimeline returns id's events in ascending year order.
func (f *Fetcher) FetchTimeline(ctx context.Context, id string) []domain.TimelineEvent {
	ctx, span := otel.Tracer("engine/knowledge").Start(ctx, "knowledge.FetchTimeline")
	defer span.End()
	span.SetAttributes(attribute.String("car.id", id))

	events, err := cached(ctx, f, "tl:"+id, func() ([]domain.TimelineEvent, error) {
		return f.records.TimelineEvents(ctx, id)
	})
	if err != nil {
		f.logger.Warn("knowledge: timeline unavailable", "car_id", id, "err", err)
		span.RecordError(err)
		return []domain.TimelineEvent{}
	}
	events = nonNil(events)
	slices.SortStableFunc(events, func(a, b domain.TimelineEvent) int { return a.Year - b.Year })
	return events
}

// FetchSentiment returns id's per-aspect aggregates with percentages filled.
func (f *Fetcher) FetchSentiment(ctx context.Context, id string) []domain.SentimentAggregate {
	ctx, span := otel.Tracer("engine/knowledge").Start(ctx, "knowledge.FetchSentiment")
	defer span.End()
	span.SetAttributes(attribute.String("car.id", id))

	aggs, err := cached(ctx, f, "sent:"+id, func() ([]domain.SentimentAggregate, error) {
		return f.records.SentimentAggregates(ctx, id)
	})
	if err != nil {
		f.logger.Warn("knowledge: sentiment unavailable", "car_id", id, "err", err)
		span.RecordError(err)
		return []domain.SentimentAggregate{}
	}
	return fn.Map(nonNil(aggs), domain.SentimentAggregate.WithPercentages)
}

// Bundle is everything known about one car.
type Bundle struct {
	Relationships []domain.Relationship
	Features      map[string]domain.FeatureSet
	Timeline      []domain.TimelineEvent
	Sentiment     []domain.SentimentAggregate
}

// FetchAll reads relationships, timeline and sentiment concurrently, then the
// features of id and every related car.
func (f *Fetcher) FetchAll(ctx context.Context, id string) Bundle {
	var b Bundle
	fn.Go(
		func() { b.Relationships = f.FetchRelationships(ctx, id) },
		func() { b.Timeline = f.FetchTimeline(ctx, id) },
		func() { b.Sentiment = f.FetchSentiment(ctx, id) },
	)
	ids := append([]string{id}, fn.Map(b.Relationships, func(r domain.Relationship) string { return r.TargetID })...)
	b.Features = f.FetchFeatures(ctx, fn.Unique(ids))
	return b
}

// Invalidate drops every cached entry mentioning id.
func (f *Fetcher) Invalidate(ctx context.Context, id string) {
	if f.opts.Cache == nil {
		return
	}
	for _, prefix := range []string{"rel:" + id, "tl:" + id, "sent:" + id, "feat:"} {
		if err := f.opts.Cache.DeleteByPrefix(ctx, prefix); err != nil {
			f.logger.Warn("knowledge: cache invalidate failed", "prefix", prefix, "err", err)
		}
	}
}

// cached reads key from the cache, falling back to load and storing its
// result. Cache failures are logged and bypassed.
func cached[T any](ctx context.Context, f *Fetcher, key string, load func() (T, error)) (T, error) {
	c := f.opts.Cache
	if c == nil {
		return load()
	}
	if raw, err := c.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			f.opts.Metrics.Cache(true)
			return v, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		f.logger.Debug("knowledge: cache read failed", "key", key, "err", err)
	}

	f.opts.Metrics.Cache(false)
	v, err := load()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.Set(ctx, key, raw, f.opts.CacheTTL); err != nil {
			f.logger.Debug("knowledge: cache write failed", "key", key, "err", err)
		}
	}
	return v, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

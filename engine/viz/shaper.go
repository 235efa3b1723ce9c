// Package viz turns knowledge rows into the input schema of each chart type.
// The Build functions are pure; Shaper wires them to a knowledge source.
package viz

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/intent"
	"github.com/WessleyAI/astra/pkg/fn"
)

// ErrUnknownCategory is returned by Shape for a category with no chart.
var ErrUnknownCategory = errors.New("viz: unknown category")

// ComparisonCategories are the fixed axes of the comparison chart.
var ComparisonCategories = []string{"Performance", "Comfort", "Safety", "Technology", "Value"}

const (
	maxCompetitors = 2
	maxAspects     = 7
)

var entityColors = []string{"#8884d8", "#82ca9d", "#ffc658"}

// SeriesSpec binds a timeline event type to a chart series.
type SeriesSpec struct {
	Event  domain.EventType
	Series Series
}

// TrendSeries lists the trend chart series in display order.
var TrendSeries = []SeriesSpec{
	{domain.EventSafety, Series{Key: "Safety", Name: "Safety", Color: "#10b981"}},
	{domain.EventPerformance, Series{Key: "Performance", Name: "Performance", Color: "#ef4444"}},
	{domain.EventTechnology, Series{Key: "Technology", Name: "Technology", Color: "#3b82f6"}},
}

// Source is the knowledge the shaper reads. *knowledge.Fetcher satisfies it.
type Source interface {
	FetchRelationships(ctx context.Context, id string) []domain.Relationship
	FetchFeatures(ctx context.Context, ids []string) map[string]domain.FeatureSet
	FetchTimeline(ctx context.Context, id string) []domain.TimelineEvent
	FetchSentiment(ctx context.Context, id string) []domain.SentimentAggregate
}

// Shaper builds visualizations from a knowledge Source.
type Shaper struct {
	src    Source
	policy UnknownDataPolicy
}

// NewShaper creates a Shaper. A nil policy leaves unknown scores empty.
func NewShaper(src Source, policy UnknownDataPolicy) *Shaper {
	if policy == nil {
		policy = OmitPolicy{}
	}
	return &Shaper{src: src, policy: policy}
}

// Shape fetches what category needs for entityID and builds its payload.
// primary supplies the display name of the selected car.
func (s *Shaper) Shape(ctx context.Context, category intent.Category, entityID string, primary domain.Car) (Visualization, error) {
	if primary.ID == "" {
		primary.ID = entityID
	}
	var data Payload
	switch category {
	case intent.Comparison:
		rels := s.src.FetchRelationships(ctx, entityID)
		ids := append([]string{entityID}, fn.Map(competitors(rels), func(r domain.Relationship) string { return r.TargetID })...)
		data = BuildComparison(primary, rels, s.src.FetchFeatures(ctx, ids), s.policy)
	case intent.Trend:
		data = BuildTrend(s.src.FetchTimeline(ctx, entityID))
	case intent.Sentiment:
		data = BuildSentiment(s.src.FetchSentiment(ctx, entityID))
	case intent.Relationship:
		data = BuildRelationship(primary, s.src.FetchRelationships(ctx, entityID))
	default:
		return Visualization{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return Visualization{Type: category, Data: data}, nil
}

func competitors(rels []domain.Relationship) []domain.Relationship {
	out := fn.Filter(rels, func(r domain.Relationship) bool { return r.Type == domain.RelCompetitor })
	if len(out) > maxCompetitors {
		out = out[:maxCompetitors]
	}
	return out
}

func displayName(c domain.Car) string {
	if c.Manufacturer == "" && c.Model == "" {
		return c.ID
	}
	return c.DisplayName()
}

// BuildComparison compares primary with up to two competitors on the
// overall score of each ComparisonCategories entry.
func BuildComparison(primary domain.Car, rels []domain.Relationship, features map[string]domain.FeatureSet, policy UnknownDataPolicy) ComparisonPayload {
	entities := []Entity{{ID: primary.ID, Name: displayName(primary)}}
	for _, r := range competitors(rels) {
		entities = append(entities, Entity{ID: r.TargetID, Name: r.TargetLabel})
	}
	values := make([][]*float64, len(entities))
	for i := range entities {
		entities[i].Color = entityColors[i%len(entityColors)]
		row := make([]*float64, len(ComparisonCategories))
		for j, cat := range ComparisonCategories {
			if v, ok := features[entities[i].ID].Overall(cat); ok {
				row[j] = &v
			} else {
				row[j] = policy.Fill(entities[i].ID, cat)
			}
		}
		values[i] = row
	}
	return ComparisonPayload{
		Categories: slices.Clone(ComparisonCategories),
		Entities:   entities,
		Values:     values,
	}
}

// BuildTrend plots, for each distinct year, the most significant event of each
// series; series without an event that year are nil.
func BuildTrend(events []domain.TimelineEvent) TrendPayload {
	years := fn.Unique(fn.Map(events, func(e domain.TimelineEvent) int { return e.Year }))
	slices.Sort(years)

	byYear := fn.GroupBy(events, func(e domain.TimelineEvent) int { return e.Year })
	points := make([]TrendPoint, 0, len(years))
	for _, y := range years {
		p := TrendPoint{Label: strconv.Itoa(y), Values: make(map[string]*float64, len(TrendSeries))}
		for _, ts := range TrendSeries {
			p.Values[ts.Series.Key] = maxSignificance(byYear[y], ts.Event)
		}
		points = append(points, p)
	}
	series := fn.Map(TrendSeries, func(ts SeriesSpec) Series { return ts.Series })
	return TrendPayload{TimeSeriesData: points, Series: series, YDomain: [2]float64{0, 5}}
}

func maxSignificance(events []domain.TimelineEvent, t domain.EventType) *float64 {
	var best *float64
	for _, e := range events {
		if e.EventType != t {
			continue
		}
		if best == nil || e.Significance > *best {
			v := e.Significance
			best = &v
		}
	}
	return best
}

// BuildSentiment keeps the seven most-mentioned aspects, ordered by
// positive+negative count descending.
func BuildSentiment(aggs []domain.SentimentAggregate) SentimentPayload {
	sorted := slices.Clone(aggs)
	slices.SortStableFunc(sorted, func(a, b domain.SentimentAggregate) int {
		return cmp.Compare(b.PositiveCount+b.NegativeCount, a.PositiveCount+a.NegativeCount)
	})
	if len(sorted) > maxAspects {
		sorted = sorted[:maxAspects]
	}
	return SentimentPayload{AspectData: fn.Map(sorted, func(a domain.SentimentAggregate) AspectData {
		return AspectData{Aspect: a.Aspect, Positive: a.PositivePercent, Negative: a.NegativePercent}
	})}
}

// BuildRelationship links primary to every related car. There is one node per
// relationship plus the primary node, and one link per relationship.
func BuildRelationship(primary domain.Car, rels []domain.Relationship) RelationshipPayload {
	root := Node{ID: primary.ID, Name: displayName(primary), Type: "primary"}
	nodes := make([]Node, 0, len(rels)+1)
	nodes = append(nodes, root)
	links := make([]Link, 0, len(rels))
	for _, r := range rels {
		nodes = append(nodes, Node{ID: r.TargetID, Name: r.TargetLabel, Type: string(r.Type)})
		links = append(links, Link{Source: root.ID, Target: r.TargetID, Type: string(r.Type), Strength: r.Strength})
	}
	return RelationshipPayload{PrimaryNode: root, Nodes: nodes, Links: links}
}

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/WessleyAI/astra/engine/domain"
)

type featureRow struct {
	CarID    string          `db:"car_id"`
	Category string          `db:"category"`
	Feature  string          `db:"feature"`
	Num      sql.NullFloat64 `db:"value_num"`
	Text     sql.NullString  `db:"value_text"`
}

// FeatureRatings returns the feature sets of the given cars. Cars without rows
// are absent from the map.
func (s *Store) FeatureRatings(ctx context.Context, carIDs []string) (map[string]domain.FeatureSet, error) {
	out := make(map[string]domain.FeatureSet)
	if len(carIDs) == 0 {
		return out, nil
	}
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("car_id", "category", "feature", "value_num", "value_text").
		From("feature_ratings").
		Where(sb.In("car_id", sqlbuilder.Flatten(carIDs)...))
	query, args := sb.Build()

	var rows []featureRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, unavailable("feature ratings", err)
	}
	for _, r := range rows {
		set, ok := out[r.CarID]
		if !ok {
			set = domain.FeatureSet{}
			out[r.CarID] = set
		}
		if set[r.Category] == nil {
			set[r.Category] = map[string]domain.FeatureValue{}
		}
		if r.Num.Valid {
			set[r.Category][r.Feature] = domain.Num(r.Num.Float64)
		} else {
			set[r.Category][r.Feature] = domain.Text(r.Text.String)
		}
	}
	return out, nil
}

// SaveFeature inserts or replaces one feature rating.
func (s *Store) SaveFeature(ctx context.Context, f domain.FeatureRating) error {
	var num sql.NullFloat64
	var text sql.NullString
	if f.Value.IsNumeric() {
		num = sql.NullFloat64{Float64: *f.Value.Number, Valid: true}
	} else {
		text = sql.NullString{String: f.Value.Text, Valid: true}
	}
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.ReplaceInto("feature_ratings").
		Cols("car_id", "category", "feature", "value_num", "value_text").
		Values(f.CarID, f.Category, f.Feature, num, text)
	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("save feature", err)
	}
	return nil
}

type timelineRow struct {
	CarID        string  `db:"car_id"`
	Year         int     `db:"year"`
	EventType    string  `db:"event_type"`
	Significance float64 `db:"significance"`
	Description  string  `db:"description"`
}

// TimelineEvents returns a car's events in ascending year order. Events are
// not deduplicated.
func (s *Store) TimelineEvents(ctx context.Context, carID string) ([]domain.TimelineEvent, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("car_id", "year", "event_type", "significance", "description").
		From("timeline_events").
		Where(sb.Equal("car_id", carID))
	sb.OrderBy("year", "id").Asc()
	query, args := sb.Build()

	var rows []timelineRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, unavailable("timeline events", err)
	}
	out := make([]domain.TimelineEvent, len(rows))
	for i, r := range rows {
		out[i] = domain.TimelineEvent{
			CarID: r.CarID, Year: r.Year, EventType: domain.EventType(r.EventType),
			Significance: r.Significance, Description: r.Description,
		}
	}
	return out, nil
}

// SaveTimelineEvent appends an event.
func (s *Store) SaveTimelineEvent(ctx context.Context, e domain.TimelineEvent) error {
	if e.Significance < 0 || e.Significance > 5 {
		return fmt.Errorf("catalog: save timeline event: %w",
			domain.NewValidationError("significance", fmt.Sprintf("%g", e.Significance), domain.ErrRatingOutOfRange))
	}
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("timeline_events").
		Cols("car_id", "year", "event_type", "significance", "description").
		Values(e.CarID, e.Year, string(e.EventType), e.Significance, e.Description)
	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("save timeline event", err)
	}
	return nil
}

type sentimentRow struct {
	CarID         string `db:"car_id"`
	Aspect        string `db:"aspect"`
	PositiveCount int    `db:"positive_count"`
	NegativeCount int    `db:"negative_count"`
	NeutralCount  int    `db:"neutral_count"`
	KeyPositive   string `db:"key_positive_terms"`
	KeyNegative   string `db:"key_negative_terms"`
}

// SentimentAggregates returns the raw per-aspect counts for a car. Percentages
// are left for the caller to derive.
func (s *Store) SentimentAggregates(ctx context.Context, carID string) ([]domain.SentimentAggregate, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("car_id", "aspect", "positive_count", "negative_count", "neutral_count",
		"key_positive_terms", "key_negative_terms").
		From("sentiment_aggregates").
		Where(sb.Equal("car_id", carID))
	sb.OrderBy("aspect").Asc()
	query, args := sb.Build()

	var rows []sentimentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, unavailable("sentiment aggregates", err)
	}
	out := make([]domain.SentimentAggregate, len(rows))
	for i, r := range rows {
		agg := domain.SentimentAggregate{
			CarID: r.CarID, Aspect: r.Aspect,
			PositiveCount: r.PositiveCount, NegativeCount: r.NegativeCount, NeutralCount: r.NeutralCount,
		}
		_ = json.Unmarshal([]byte(r.KeyPositive), &agg.KeyPositiveTerms)
		_ = json.Unmarshal([]byte(r.KeyNegative), &agg.KeyNegativeTerms)
		out[i] = agg
	}
	return out, nil
}

// ReplaceSentiment swaps a car's aggregates for aggs in one transaction.
func (s *Store) ReplaceSentiment(ctx context.Context, carID string, aggs []domain.SentimentAggregate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("replace sentiment", err)
	}
	defer tx.Rollback()

	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("sentiment_aggregates").Where(del.Equal("car_id", carID))
	query, args := del.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return unavailable("replace sentiment", err)
	}
	for _, a := range aggs {
		pos, _ := json.Marshal(nonNil(a.KeyPositiveTerms))
		neg, _ := json.Marshal(nonNil(a.KeyNegativeTerms))
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("sentiment_aggregates").
			Cols("car_id", "aspect", "positive_count", "negative_count", "neutral_count",
				"key_positive_terms", "key_negative_terms").
			Values(carID, a.Aspect, a.PositiveCount, a.NegativeCount, a.NeutralCount, string(pos), string(neg))
		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return unavailable("replace sentiment", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("replace sentiment", err)
	}
	return nil
}

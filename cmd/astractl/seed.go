package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/astra/engine/catalog"
	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/review"
)

// Fixture is the YAML seed file layout.
type Fixture struct {
	Cars          []domain.Car          `yaml:"cars"`
	Features      []fixtureFeature      `yaml:"features"`
	Timeline      []fixtureEvent        `yaml:"timeline"`
	Reviews       []fixtureReview       `yaml:"reviews"`
	Relationships []fixtureRelationship `yaml:"relationships"`
}

type fixtureFeature struct {
	CarID    string `yaml:"car_id"`
	Category string `yaml:"category"`
	Feature  string `yaml:"feature"`
	Value    any    `yaml:"value"`
}

type fixtureEvent struct {
	CarID        string  `yaml:"car_id"`
	Year         int     `yaml:"year"`
	Type         string  `yaml:"type"`
	Significance float64 `yaml:"significance"`
	Description  string  `yaml:"description"`
}

type fixtureReview struct {
	CarID  string    `yaml:"car_id"`
	Author string    `yaml:"author"`
	Title  string    `yaml:"title"`
	Text   string    `yaml:"text"`
	Rating float64   `yaml:"rating"`
	Date   time.Time `yaml:"date"`
	Pros   []string  `yaml:"pros"`
	Cons   []string  `yaml:"cons"`
}

type fixtureRelationship struct {
	Source   string         `yaml:"source"`
	Target   string         `yaml:"target"`
	Type     string         `yaml:"type"`
	Strength float64        `yaml:"strength"`
	Metadata map[string]any `yaml:"metadata"`
}

// loadFixture reads and decodes a seed file.
func loadFixture(path string) (Fixture, error) {
	var fx Fixture
	raw, err := os.ReadFile(path)
	if err != nil {
		return fx, fmt.Errorf("read fixture: %w", err)
	}
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fx, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return fx, nil
}

func featureValue(v any) (domain.FeatureValue, error) {
	switch x := v.(type) {
	case int:
		return domain.Num(float64(x)), nil
	case float64:
		return domain.Num(x), nil
	case string:
		return domain.Text(x), nil
	case bool:
		return domain.Text(fmt.Sprint(x)), nil
	default:
		return domain.FeatureValue{}, fmt.Errorf("unsupported feature value %v (%T)", v, v)
	}
}

// SeedReport counts what a seed run wrote.
type SeedReport struct {
	Cars, Features, Events, Reviews, Aggregates, Relationships int
}

// graphWriter is the relationship store; *graph.GraphStore satisfies it.
type graphWriter interface {
	SaveBatch(ctx context.Context, cars []domain.Car, rels []domain.Relationship) error
}

// seed writes fx into store and, when g is non-nil, the graph. Sentiment
// aggregates are recomputed for every car that received reviews.
func seed(ctx context.Context, store *catalog.Store, g graphWriter, fx Fixture) (SeedReport, error) {
	var rep SeedReport
	for _, c := range fx.Cars {
		if err := store.SaveCar(ctx, c); err != nil {
			return rep, err
		}
		rep.Cars++
	}
	for _, f := range fx.Features {
		v, err := featureValue(f.Value)
		if err != nil {
			return rep, fmt.Errorf("feature %s/%s/%s: %w", f.CarID, f.Category, f.Feature, err)
		}
		if err := store.SaveFeature(ctx, domain.FeatureRating{CarID: f.CarID, Category: f.Category, Feature: f.Feature, Value: v}); err != nil {
			return rep, err
		}
		rep.Features++
	}
	for _, e := range fx.Timeline {
		ev := domain.TimelineEvent{CarID: e.CarID, Year: e.Year, EventType: domain.EventType(e.Type), Significance: e.Significance, Description: e.Description}
		if err := store.SaveTimelineEvent(ctx, ev); err != nil {
			return rep, err
		}
		rep.Events++
	}

	reviewed := map[string]bool{}
	for _, r := range fx.Reviews {
		_, err := store.AddReview(ctx, domain.Review{
			CarID: r.CarID, Author: r.Author, Title: r.Title, Text: r.Text,
			Rating: r.Rating, Date: r.Date, Pros: r.Pros, Cons: r.Cons,
		})
		if err != nil {
			return rep, err
		}
		reviewed[r.CarID] = true
		rep.Reviews++
	}
	for carID := range reviewed {
		reviews, err := store.ReviewsForCar(ctx, carID)
		if err != nil {
			return rep, err
		}
		aggs := review.AggregateAspects(carID, reviews)
		if err := store.ReplaceSentiment(ctx, carID, aggs); err != nil {
			return rep, err
		}
		rep.Aggregates += len(aggs)
	}

	if g == nil || len(fx.Relationships) == 0 {
		return rep, nil
	}
	rels := make([]domain.Relationship, 0, len(fx.Relationships))
	for _, r := range fx.Relationships {
		rel := domain.Relationship{SourceID: r.Source, TargetID: r.Target, Type: domain.RelationType(r.Type), Strength: r.Strength, Metadata: r.Metadata}
		if err := domain.ValidateRelationship(rel); err != nil {
			return rep, err
		}
		rels = append(rels, rel)
	}
	if err := g.SaveBatch(ctx, fx.Cars, rels); err != nil {
		return rep, err
	}
	rep.Relationships = len(rels)
	return rep, nil
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load cars, knowledge rows and reviews from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := opts.logger(cmd)

			fx, err := loadFixture(args[0])
			if err != nil {
				return err
			}
			store, err := opts.openCatalog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			gs, closeGraph, err := opts.openGraph(log)
			if err != nil {
				return err
			}
			defer closeGraph(ctx)
			var g graphWriter
			if gs != nil {
				g = gs
			} else if len(fx.Relationships) > 0 {
				log.Warn("no neo4j url, skipping relationships", "count", len(fx.Relationships))
			}

			rep, err := seed(ctx, store, g, fx)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			log.Info("seeded", "cars", rep.Cars, "features", rep.Features, "events", rep.Events,
				"reviews", rep.Reviews, "aggregates", rep.Aggregates, "relationships", rep.Relationships)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d cars, %d reviews into %s\n", rep.Cars, rep.Reviews, opts.dbPath)
			return nil
		},
	}
}

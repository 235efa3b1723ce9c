// Package graph stores cars and the typed relationships between them
// (predecessor, successor, variant, competitor) in Neo4j.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/pkg/repo"
)

// GraphStore provides relationship graph operations.
type GraphStore struct {
	opener SessionOpener
	cars   *repo.Neo4jRepo[domain.Car, string]
	log    *slog.Logger
}

// New creates a GraphStore on a live driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return NewWithOpener(DriverOpener{Driver: driver})
}

// NewWithOpener creates a GraphStore using a custom session opener.
func NewWithOpener(opener SessionOpener) *GraphStore {
	return &GraphStore{opener: opener, cars: newCarRepo(opener), log: slog.Default()}
}

// WithLogger sets the logger used for skipped or damaged records.
func (g *GraphStore) WithLogger(l *slog.Logger) *GraphStore {
	if l != nil {
		g.log = l
	}
	return g
}

// GetCar returns a car node by ID.
func (g *GraphStore) GetCar(ctx context.Context, id string) (domain.Car, error) {
	return g.cars.Get(ctx, id)
}

// ListCars pages through car nodes ordered by id.
func (g *GraphStore) ListCars(ctx context.Context, offset, limit int) ([]domain.Car, error) {
	cars, err := g.cars.List(ctx, repo.ListOpts{Offset: offset, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("graph: list cars: %w: %w", domain.ErrDataUnavailable, err)
	}
	return cars, nil
}

// DeleteCar removes a car node together with all of its edges.
func (g *GraphStore) DeleteCar(ctx context.Context, id string) error {
	return g.cars.Delete(ctx, id)
}

// SaveCar creates or updates a car node.
func (g *GraphStore) SaveCar(ctx context.Context, c domain.Car) error {
	return g.cars.Upsert(ctx, c)
}

// SaveRelationship creates or updates a typed edge between two existing cars.
func (g *GraphStore) SaveRelationship(ctx context.Context, r domain.Relationship) error {
	return g.SaveBatch(ctx, nil, []domain.Relationship{r})
}

// SaveBatch saves cars and relationships in a single transaction.
func (g *GraphStore) SaveBatch(ctx context.Context, cars []domain.Car, rels []domain.Relationship) error {
	for _, r := range rels {
		if err := domain.ValidateRelationship(r); err != nil {
			return fmt.Errorf("graph: save batch: %w", err)
		}
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, c := range cars {
			cypher := `MERGE (n:Car {id: $id}) SET n += $props`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":    c.ID,
				"props": carToMap(c),
			}); err != nil {
				return nil, err
			}
		}
		for _, r := range rels {
			if _, err := tx.Run(ctx, relationshipCypher(r.Type), relationshipParams(r)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: save batch: %w", err)
	}
	return nil
}

func relationshipCypher(t domain.RelationType) string {
	return fmt.Sprintf(
		`MATCH (a:Car {id: $from}), (b:Car {id: $to})
		 MERGE (a)-[r:%s]->(b)
		 SET r.strength = $strength, r.metadata = $metadata`,
		sanitizeRelType(string(t)),
	)
}

func relationshipParams(r domain.Relationship) map[string]any {
	meta := ""
	if len(r.Metadata) > 0 {
		b, _ := json.Marshal(r.Metadata)
		meta = string(b)
	}
	return map[string]any{
		"from":     r.SourceID,
		"to":       r.TargetID,
		"strength": r.Strength,
		"metadata": meta,
	}
}

// RelationshipsFrom returns every edge whose source is id, strongest first,
// each annotated with the target's display label.
func (g *GraphStore) RelationshipsFrom(ctx context.Context, id string) ([]domain.Relationship, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (s:Car {id: $id})-[r]->(t:Car)
		RETURN toLower(type(r)) AS type, r.strength AS strength, r.metadata AS metadata,
		       t.id AS target_id, t.year AS year, t.manufacturer AS manufacturer, t.model AS model
		ORDER BY strength DESC, target_id`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("graph: relationships from %s: %w: %w", id, domain.ErrDataUnavailable, err)
	}

	rels := []domain.Relationship{}
	for result.Next(ctx) {
		props := recordProps(result.Record())
		target := domain.Car{
			Manufacturer: strProp(props, "manufacturer"),
			Model:        strProp(props, "model"),
			Year:         int(intProp(props, "year")),
		}
		rel := domain.Relationship{
			SourceID:    id,
			TargetID:    strProp(props, "target_id"),
			Type:        domain.RelationType(strProp(props, "type")),
			Strength:    floatProp(props, "strength"),
			TargetLabel: target.DisplayName(),
		}
		if meta := strProp(props, "metadata"); meta != "" {
			if err := json.Unmarshal([]byte(meta), &rel.Metadata); err != nil {
				g.log.Warn("graph: dropping unreadable edge metadata",
					"source", id, "target", rel.TargetID, "err", err)
			}
		}
		rels = append(rels, rel)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: relationships from %s: %w: %w", id, domain.ErrDataUnavailable, err)
	}
	return rels, nil
}

func recordProps(rec *neo4j.Record) map[string]any {
	props := make(map[string]any, len(rec.Keys))
	for i, k := range rec.Keys {
		props[k] = rec.Values[i]
	}
	return props
}

// sanitizeRelType ensures the relationship type is a valid Cypher identifier.
func sanitizeRelType(t string) string {
	safe := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			return c
		}
		return -1
	}, t)
	if safe == "" {
		return "RELATED_TO"
	}
	return strings.ToUpper(safe)
}

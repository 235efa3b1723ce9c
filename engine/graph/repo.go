package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/pkg/repo"
)

// newCarRepo creates a Neo4j-backed repository for Car nodes.
func newCarRepo(opener SessionOpener) *repo.Neo4jRepo[domain.Car, string] {
	return repo.NewNeo4jRepo[domain.Car, string](
		func(ctx context.Context) repo.Session { return opener.OpenSession(ctx) },
		"Car",
		carToMap,
		carFromRecord,
	)
}

func carToMap(c domain.Car) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"manufacturer": c.Manufacturer,
		"model":        c.Model,
		"year":         int64(c.Year),
		"body_type":    c.BodyType,
		"fuel_type":    c.FuelType,
	}
}

func carFromRecord(rec *neo4j.Record) (domain.Car, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.Car{}, err
	}
	return carFromProps(node.Props), nil
}

func carFromProps(props map[string]any) domain.Car {
	return domain.Car{
		ID:           strProp(props, "id"),
		Manufacturer: strProp(props, "manufacturer"),
		Model:        strProp(props, "model"),
		Year:         int(intProp(props, "year")),
		BodyType:     strProp(props, "body_type"),
		FuelType:     strProp(props, "fuel_type"),
	}
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

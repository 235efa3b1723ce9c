package graph

import (
	"context"
	"fmt"
)

// Stats summarises the relationship graph.
type Stats struct {
	Cars          int64            `json:"cars"`
	Relationships map[string]int64 `json:"relationships"`
}

// Stats returns the car count and relationship counts grouped by type.
func (g *GraphStore) Stats(ctx context.Context) (Stats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	st := Stats{Relationships: make(map[string]int64)}
	result, err := sess.Run(ctx, `MATCH (n:Car) RETURN count(n) AS count`, nil)
	if err != nil {
		return st, fmt.Errorf("graph: stats: %w", err)
	}
	if result.Next(ctx) {
		if c, ok := result.Record().Get("count"); ok {
			st.Cars, _ = c.(int64)
		}
	}
	if err := result.Err(); err != nil {
		return st, fmt.Errorf("graph: stats: %w", err)
	}

	result, err = sess.Run(ctx, `MATCH (:Car)-[r]->(:Car) RETURN toLower(type(r)) AS type, count(*) AS count`, nil)
	if err != nil {
		return st, fmt.Errorf("graph: stats: %w", err)
	}
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				st.Relationships[t] = c
			}
		}
	}
	if err := result.Err(); err != nil {
		return st, fmt.Errorf("graph: stats: %w", err)
	}
	return st, nil
}

package graph

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/pkg/repo"
)

type mockResult struct {
	records []*neo4j.Record
	idx     int
	err     error
}

func newMockResult(recs ...*neo4j.Record) *mockResult { return &mockResult{records: recs} }

func (m *mockResult) Next(context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record { return m.records[m.idx-1] }

// Err reports err only once the records are exhausted, like a stream that
// breaks after delivering a prefix.
func (m *mockResult) Err() error {
	if m.idx < len(m.records) {
		return nil
	}
	return m.err
}

type mockSession struct {
	results  []*mockResult
	runErr   error
	writeErr error
	failAt   int
	cyphers  []string
	params   []map[string]any
	closed   bool
}

func (m *mockSession) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	m.cyphers = append(m.cyphers, cypher)
	m.params = append(m.params, params)
	if m.runErr != nil && len(m.cyphers)-1 >= m.failAt {
		return nil, m.runErr
	}
	if len(m.results) == 0 {
		return newMockResult(), nil
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r, nil
}

func (m *mockSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	return work(m)
}

func (m *mockSession) Close(context.Context) error { m.closed = true; return nil }

type mockOpener struct{ session *mockSession }

func (o *mockOpener) OpenSession(context.Context) CypherSession { return o.session }

func relRecord(typ string, strength float64, meta, target string, year int64, mk, model string) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"type", "strength", "metadata", "target_id", "year", "manufacturer", "model"},
		Values: []any{typ, strength, meta, target, year, mk, model},
	}
}

func TestRelationshipsFrom(t *testing.T) {
	sess := &mockSession{results: []*mockResult{newMockResult(
		relRecord("competitor", 0.9, `{"segment":"midsize"}`, "accord-22", 2022, "Honda", "Accord"),
		relRecord("predecessor", 0.7, "", "camry-17", 2017, "Toyota", "Camry"),
	)}}
	gs := NewWithOpener(&mockOpener{session: sess})

	rels, err := gs.RelationshipsFrom(context.Background(), "camry-22")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 2 {
		t.Fatalf("len = %d", len(rels))
	}
	r := rels[0]
	if r.SourceID != "camry-22" || r.TargetID != "accord-22" || r.Type != domain.RelCompetitor || r.Strength != 0.9 {
		t.Errorf("rel = %+v", r)
	}
	if r.TargetLabel != "2022 Honda Accord" {
		t.Errorf("label = %q", r.TargetLabel)
	}
	if r.Metadata["segment"] != "midsize" {
		t.Errorf("metadata = %v", r.Metadata)
	}
	if rels[1].Metadata != nil {
		t.Errorf("expected nil metadata, got %v", rels[1].Metadata)
	}
	if !sess.closed {
		t.Error("session not closed")
	}
}

func TestRelationshipsFrom_Empty(t *testing.T) {
	gs := NewWithOpener(&mockOpener{session: &mockSession{}})
	rels, err := gs.RelationshipsFrom(context.Background(), "lonely")
	if err != nil {
		t.Fatal(err)
	}
	if rels == nil || len(rels) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", rels)
	}
}

func TestRelationshipsFrom_RunError(t *testing.T) {
	gs := NewWithOpener(&mockOpener{session: &mockSession{runErr: errors.New("down")}})
	_, err := gs.RelationshipsFrom(context.Background(), "x")
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestRelationshipsFrom_StreamError(t *testing.T) {
	partial := newMockResult(relRecord("competitor", 0.9, "", "accord-22", 2022, "Honda", "Accord"))
	partial.err = errors.New("connection reset by peer")
	gs := NewWithOpener(&mockOpener{session: &mockSession{results: []*mockResult{partial}}})

	rels, err := gs.RelationshipsFrom(context.Background(), "camry-22")
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if rels != nil {
		t.Errorf("partial edges returned: %+v", rels)
	}
}

func TestRelationshipsFrom_BadMetadataLogged(t *testing.T) {
	var buf bytes.Buffer
	sess := &mockSession{results: []*mockResult{newMockResult(
		relRecord("competitor", 0.9, "{not json", "accord-22", 2022, "Honda", "Accord"),
	)}}
	gs := NewWithOpener(&mockOpener{session: sess}).WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	rels, err := gs.RelationshipsFrom(context.Background(), "camry-22")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 1 || rels[0].Metadata != nil {
		t.Errorf("rels = %+v", rels)
	}
	if !strings.Contains(buf.String(), "accord-22") {
		t.Errorf("metadata failure not logged: %q", buf.String())
	}
}

func TestListAndDeleteCars(t *testing.T) {
	node := func(id, model string) *neo4j.Record {
		return &neo4j.Record{Keys: []string{"n"}, Values: []any{dbtype.Node{Props: map[string]any{
			"id": id, "manufacturer": "Toyota", "model": model, "year": int64(2022),
		}}}}
	}
	sess := &mockSession{results: []*mockResult{newMockResult(node("camry-22", "Camry"), node("rav4-22", "RAV4"))}}
	gs := NewWithOpener(&mockOpener{session: sess})

	cars, err := gs.ListCars(context.Background(), 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cars) != 2 || cars[1].DisplayName() != "2022 Toyota RAV4" {
		t.Errorf("cars = %+v", cars)
	}
	if sess.params[0]["limit"] != 10 {
		t.Errorf("params = %v", sess.params[0])
	}

	if err := gs.DeleteCar(context.Background(), "rav4-22"); err != nil {
		t.Fatal(err)
	}
	if last := sess.cyphers[len(sess.cyphers)-1]; !strings.Contains(last, "DETACH DELETE") {
		t.Errorf("cypher = %s", last)
	}

	broken := newMockResult()
	broken.err = errors.New("reset")
	gs = NewWithOpener(&mockOpener{session: &mockSession{results: []*mockResult{broken}}})
	if _, err := gs.ListCars(context.Background(), 0, 10); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestSaveBatch(t *testing.T) {
	sess := &mockSession{}
	gs := NewWithOpener(&mockOpener{session: sess})
	err := gs.SaveBatch(context.Background(),
		[]domain.Car{{ID: "a", Manufacturer: "Toyota", Model: "Camry", Year: 2022}},
		[]domain.Relationship{{SourceID: "a", TargetID: "b", Type: domain.RelVariant, Strength: 0.5,
			Metadata: map[string]any{"trim": "XSE"}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.cyphers) != 2 {
		t.Fatalf("runs = %d", len(sess.cyphers))
	}
	if !strings.Contains(sess.cyphers[1], "[r:VARIANT]") {
		t.Errorf("cypher = %s", sess.cyphers[1])
	}
	if sess.params[1]["metadata"] != `{"trim":"XSE"}` {
		t.Errorf("metadata param = %v", sess.params[1]["metadata"])
	}
}

func TestSaveBatch_Errors(t *testing.T) {
	gs := NewWithOpener(&mockOpener{session: &mockSession{writeErr: errors.New("write fail")}})
	if err := gs.SaveBatch(context.Background(), []domain.Car{{ID: "a"}}, nil); err == nil {
		t.Error("expected write error")
	}

	gs = NewWithOpener(&mockOpener{session: &mockSession{runErr: errors.New("tx fail"), failAt: 1}})
	err := gs.SaveBatch(context.Background(), []domain.Car{{ID: "a"}},
		[]domain.Relationship{{SourceID: "a", TargetID: "b", Type: domain.RelCompetitor}})
	if err == nil {
		t.Error("expected edge run error")
	}

	err = gs.SaveRelationship(context.Background(), domain.Relationship{SourceID: "a", TargetID: "b", Type: "sibling"})
	if !errors.Is(err, domain.ErrUnknownRelation) {
		t.Errorf("expected ErrUnknownRelation, got %v", err)
	}
}

func TestGetAndSaveCar(t *testing.T) {
	node := dbtype.Node{Props: map[string]any{
		"id": "a", "manufacturer": "Mazda", "model": "MX-5", "year": int64(2019), "body_type": "Roadster",
	}}
	rec := &neo4j.Record{Keys: []string{"n"}, Values: []any{node}}
	sess := &mockSession{results: []*mockResult{newMockResult(rec)}}
	gs := NewWithOpener(&mockOpener{session: sess})

	car, err := gs.GetCar(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if car.DisplayName() != "2019 Mazda MX-5" || car.BodyType != "Roadster" {
		t.Errorf("car = %+v", car)
	}

	if _, err := gs.GetCar(context.Background(), "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("expected repo.ErrNotFound, got %v", err)
	}
	if err := gs.SaveCar(context.Background(), car); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sess.cyphers[len(sess.cyphers)-1], "MERGE (n:Car") {
		t.Errorf("cypher = %s", sess.cyphers[len(sess.cyphers)-1])
	}
}

func TestStats(t *testing.T) {
	sess := &mockSession{results: []*mockResult{
		newMockResult(&neo4j.Record{Keys: []string{"count"}, Values: []any{int64(12)}}),
		newMockResult(
			&neo4j.Record{Keys: []string{"type", "count"}, Values: []any{"competitor", int64(7)}},
			&neo4j.Record{Keys: []string{"type", "count"}, Values: []any{"successor", int64(3)}},
		),
	}}
	st, err := NewWithOpener(&mockOpener{session: sess}).Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Cars != 12 || st.Relationships["competitor"] != 7 || st.Relationships["successor"] != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSanitizeRelType(t *testing.T) {
	cases := map[string]string{
		"competitor":       "COMPETITOR",
		"has-part; DROP x": "HASPARTDROPX",
		"":                 "RELATED_TO",
		"!!!":              "RELATED_TO",
	}
	for in, want := range cases {
		if got := sanitizeRelType(in); got != want {
			t.Errorf("sanitizeRelType(%q) = %q, want %q", in, got, want)
		}
	}
}

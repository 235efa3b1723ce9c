package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WessleyAI/astra/engine/catalog"
	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/suggest"
	"github.com/WessleyAI/astra/engine/viz"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("NEO4J_URL", "")
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seededDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "astra.db")
	out, err := execute(t, "seed", "--db", db, filepath.Join("testdata", "fixture.yaml"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "seeded 2 cars, 2 reviews") {
		t.Fatalf("seed output %q", out)
	}
	return db
}

func TestSeed(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()
	store, err := catalog.Open(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	names, _ := store.Manufacturers(ctx)
	if len(names) != 2 || names[0] != "Honda" {
		t.Errorf("manufacturers = %v", names)
	}
	feats, _ := store.FeatureRatings(ctx, []string{"civic-2022"})
	if v, ok := feats["civic-2022"].Overall("performance"); !ok || v != 7.5 {
		t.Errorf("performance overall = %v, %v", v, ok)
	}
	if got := feats["civic-2022"]["technology"]["infotainment"].Text; got != "touchscreen" {
		t.Errorf("categorical feature = %q", got)
	}
	events, _ := store.TimelineEvents(ctx, "civic-2022")
	if len(events) != 2 || events[0].Year != 2016 {
		t.Errorf("timeline = %+v", events)
	}
	reviews, _ := store.ReviewsForCar(ctx, "civic-2022")
	if len(reviews) != 2 {
		t.Fatalf("reviews = %+v", reviews)
	}
	aggs, _ := store.SentimentAggregates(ctx, "civic-2022")
	if len(aggs) == 0 {
		t.Error("seed did not compute sentiment aggregates")
	}
}

func TestSeedMissingFile(t *testing.T) {
	if _, err := execute(t, "seed", "--db", filepath.Join(t.TempDir(), "x.db"), "testdata/nope.yaml"); err == nil {
		t.Error("expected error for missing fixture")
	}
}

type recordingGraph struct {
	cars []domain.Car
	rels []domain.Relationship
}

func (g *recordingGraph) SaveBatch(_ context.Context, cars []domain.Car, rels []domain.Relationship) error {
	g.cars, g.rels = cars, rels
	return nil
}

func TestSeedRelationships(t *testing.T) {
	ctx := context.Background()
	store, err := catalog.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	fx, err := loadFixture(filepath.Join("testdata", "fixture.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	g := &recordingGraph{}
	rep, err := seed(ctx, store, g, fx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Relationships != 1 || len(g.cars) != 2 {
		t.Fatalf("report = %+v graph cars = %d", rep, len(g.cars))
	}
	if r := g.rels[0]; r.Type != domain.RelCompetitor || r.TargetID != "corolla-2022" || r.Strength != 0.9 {
		t.Errorf("relationship = %+v", r)
	}

	fx.Relationships[0].Type = "cousin"
	if _, err := seed(ctx, store, g, Fixture{Relationships: fx.Relationships}); err == nil {
		t.Error("unknown relationship type accepted")
	}
}

func TestFeatureValue(t *testing.T) {
	if v, _ := featureValue(7); !v.IsNumeric() || *v.Number != 7 {
		t.Errorf("int = %v", v)
	}
	if v, _ := featureValue("leather"); v.IsNumeric() || v.Text != "leather" {
		t.Errorf("string = %v", v)
	}
	if _, err := featureValue([]int{1}); err == nil {
		t.Error("list accepted")
	}
}

func TestClassify(t *testing.T) {
	out, err := execute(t, "classify", "compare", "it", "to", "the", "Corolla")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "category: comparison") {
		t.Errorf("output %q", out)
	}
}

func TestSuggest(t *testing.T) {
	db := seededDB(t)
	out, err := execute(t, "suggest", "--db", db, "--car-id", "civic-2022", "--turn", "3")
	if err != nil {
		t.Fatal(err)
	}
	store, _ := catalog.Open(context.Background(), db)
	defer store.Close()
	car, _ := store.GetCar(context.Background(), "civic-2022")
	want := strings.Join(suggest.Generate(car, "", 3), "\n") + "\n"
	if out != want {
		t.Errorf("suggest = %q, want %q", out, want)
	}

	if _, err := execute(t, "suggest", "--db", db, "--car-id", "ghost"); err == nil {
		t.Error("unknown car accepted")
	}
}

func TestVisualize(t *testing.T) {
	db := seededDB(t)
	out, err := execute(t, "visualize", "--db", db, "civic-2022", "trend")
	if err != nil {
		t.Fatal(err)
	}
	var v struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if v.Type != "trend" || len(v.Data) == 0 {
		t.Errorf("visualization = %s", out)
	}

	if _, err := execute(t, "visualize", "--db", db, "civic-2022", "pie"); err == nil {
		t.Error("unknown type accepted")
	}
	if _, err := execute(t, "visualize", "--db", db, "--unknown", "omitt", "civic-2022", "comparison"); !errors.Is(err, viz.ErrUnknownPolicy) {
		t.Errorf("misspelled policy: err = %v", err)
	}
}

type fakeCarGraph struct {
	cars    []domain.Car
	deleted []string
	err     error
}

func (g *fakeCarGraph) ListCars(_ context.Context, offset, limit int) ([]domain.Car, error) {
	if g.err != nil {
		return nil, g.err
	}
	end := min(offset+limit, len(g.cars))
	if offset >= end {
		return nil, nil
	}
	return g.cars[offset:end], nil
}

func (g *fakeCarGraph) DeleteCar(_ context.Context, id string) error {
	if g.err != nil {
		return g.err
	}
	g.deleted = append(g.deleted, id)
	return nil
}

func TestGraphCars(t *testing.T) {
	g := &fakeCarGraph{cars: []domain.Car{
		{ID: "civic-2022", Manufacturer: "Honda", Model: "Civic", Year: 2022},
		{ID: "corolla-2022", Manufacturer: "Toyota", Model: "Corolla", Year: 2022},
	}}
	var out bytes.Buffer
	if err := listCars(context.Background(), g, &out, 1, 10); err != nil {
		t.Fatal(err)
	}
	if out.String() != "corolla-2022\t2022 Toyota Corolla\n" {
		t.Errorf("output %q", out.String())
	}

	out.Reset()
	if err := deleteCars(context.Background(), g, &out, []string{"civic-2022", "corolla-2022"}); err != nil {
		t.Fatal(err)
	}
	if len(g.deleted) != 2 || !strings.Contains(out.String(), "deleted corolla-2022") {
		t.Errorf("deleted = %v output %q", g.deleted, out.String())
	}

	g.err = domain.ErrDataUnavailable
	if err := listCars(context.Background(), g, &out, 0, 10); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("list err = %v", err)
	}
	if err := deleteCars(context.Background(), g, &out, []string{"x"}); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("delete err = %v", err)
	}
}

func TestGraphRequiresNeo4j(t *testing.T) {
	if _, err := execute(t, "graph", "cars"); !errors.Is(err, errNoGraph) {
		t.Errorf("err = %v, want errNoGraph", err)
	}
	if _, err := execute(t, "graph", "rm", "civic-2022"); !errors.Is(err, errNoGraph) {
		t.Errorf("err = %v, want errNoGraph", err)
	}
}

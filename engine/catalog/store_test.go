package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/astra/engine/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedCars(t *testing.T, s *Store) {
	t.Helper()
	cars := []domain.Car{
		{ID: "camry-22", Manufacturer: "Toyota", Model: "Camry", Year: 2022, BodyType: "Sedan", MPG: 32},
		{ID: "accord-22", Manufacturer: "Honda", Model: "Accord", Year: 2022, BodyType: "Sedan", MPG: 33},
		{ID: "civic-21", Manufacturer: "Honda", Model: "Civic", Year: 2021, BodyType: "Sedan", MPG: 36},
		{ID: "rav4-23", Manufacturer: "Toyota", Model: "RAV4", Year: 2023, BodyType: "SUV", MPG: 30},
	}
	for _, c := range cars {
		if err := s.SaveCar(context.Background(), c); err != nil {
			t.Fatalf("save %s: %v", c.ID, err)
		}
	}
}

func TestSearchCars(t *testing.T) {
	s := newTestStore(t)
	seedCars(t, s)
	ctx := context.Background()

	all, err := s.SearchCars(ctx, CarFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d", len(all))
	}
	if all[0].Manufacturer != "Honda" || all[0].Model != "Accord" {
		t.Errorf("first = %+v", all[0])
	}

	byQuery, err := s.SearchCars(ctx, CarFilter{Query: "toyo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byQuery) != 2 {
		t.Errorf("query toyo: len = %d", len(byQuery))
	}

	byModel, _ := s.SearchCars(ctx, CarFilter{Query: "CIVIC"})
	if len(byModel) != 1 || byModel[0].ID != "civic-21" {
		t.Errorf("query civic: %+v", byModel)
	}

	byMake, _ := s.SearchCars(ctx, CarFilter{Manufacturer: "honda", Limit: 1})
	if len(byMake) != 1 || byMake[0].Manufacturer != "Honda" {
		t.Errorf("manufacturer honda limit 1: %+v", byMake)
	}
}

func TestGetCar(t *testing.T) {
	s := newTestStore(t)
	seedCars(t, s)

	car, err := s.GetCar(context.Background(), "rav4-23")
	if err != nil {
		t.Fatal(err)
	}
	if car.Model != "RAV4" || car.MPG != 30 {
		t.Errorf("car = %+v", car)
	}
	if _, err := s.GetCar(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManufacturersAndIDs(t *testing.T) {
	s := newTestStore(t)
	seedCars(t, s)
	ctx := context.Background()

	makes, err := s.Manufacturers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(makes) != 2 || makes[0] != "Honda" || makes[1] != "Toyota" {
		t.Errorf("makes = %v", makes)
	}
	ids, err := s.CarIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 4 {
		t.Errorf("ids = %v", ids)
	}
}

func TestSaveCar_Invalid(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveCar(context.Background(), domain.Car{ID: "x", Manufacturer: "Ford", Model: "T", Year: 1800})
	if !errors.Is(err, domain.ErrYearOutOfRange) {
		t.Errorf("expected ErrYearOutOfRange, got %v", err)
	}
}

func TestReviews(t *testing.T) {
	s := newTestStore(t)
	seedCars(t, s)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	saved, err := s.AddReview(ctx, domain.Review{
		CarID: "camry-22", Author: "Sam", Title: "Great commuter", Text: "Smooth and efficient.",
		Rating: 4.5, Pros: []string{"Efficient"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" || !saved.Date.Equal(s.now()) {
		t.Errorf("saved = %+v", saved)
	}
	older := domain.Review{CarID: "camry-22", Text: "Fine.", Rating: 3, AIGenerated: true,
		Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := s.AddReview(ctx, older); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReviewsForCar(ctx, "camry-22")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Title != "Great commuter" || len(got[0].Pros) != 1 || got[0].Pros[0] != "Efficient" {
		t.Errorf("newest = %+v", got[0])
	}
	if !got[1].AIGenerated || got[1].Cons == nil {
		t.Errorf("older = %+v", got[1])
	}

	if _, err := s.AddReview(ctx, domain.Review{CarID: "camry-22", Text: "x", Rating: 9}); !errors.Is(err, domain.ErrRatingOutOfRange) {
		t.Errorf("expected ErrRatingOutOfRange, got %v", err)
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	if _, err := s.SearchCars(context.Background(), CarFilter{}); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}

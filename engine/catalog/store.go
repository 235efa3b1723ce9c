// Package catalog is the SQL store behind the car catalog, reviews and the
// knowledge tables (feature ratings, timeline events, sentiment aggregates).
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/WessleyAI/astra/engine/domain"
)

// DefaultLimit caps SearchCars when the filter sets no limit.
const DefaultLimit = 50

var carColumns = []string{
	"id", "manufacturer", "model", "year", "body_type",
	"engine_info", "transmission", "fuel_type", "mpg",
}

var reviewColumns = []string{
	"id", "car_id", "author", "review_title", "review_text",
	"rating", "review_date", "is_ai_generated", "pros", "cons",
}

// Store is a SQLite-backed catalog.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema exists.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path)
	if path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func unavailable(op string, err error) error {
	return fmt.Errorf("catalog: %s: %w: %w", op, domain.ErrDataUnavailable, err)
}

// CarFilter narrows SearchCars.
type CarFilter struct {
	Query        string
	Manufacturer string
	Limit        int
}

// SearchCars returns cars whose manufacturer or model contains Query
// (case-insensitive), optionally restricted to one manufacturer.
func (s *Store) SearchCars(ctx context.Context, f CarFilter) ([]domain.Car, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(carColumns...).From("cars")
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		pattern := "%" + q + "%"
		sb.Where(sb.Or(
			sb.Like("LOWER(manufacturer)", pattern),
			sb.Like("LOWER(model)", pattern),
		))
	}
	if m := strings.TrimSpace(f.Manufacturer); m != "" {
		sb.Where(sb.Equal("LOWER(manufacturer)", strings.ToLower(m)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	sb.OrderBy("manufacturer", "model", "year").Asc()
	sb.Limit(limit)

	query, args := sb.Build()
	cars := []domain.Car{}
	if err := s.db.SelectContext(ctx, &cars, query, args...); err != nil {
		return nil, unavailable("search cars", err)
	}
	return cars, nil
}

// GetCar returns one car or domain.ErrNotFound.
func (s *Store) GetCar(ctx context.Context, id string) (*domain.Car, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(carColumns...).From("cars").Where(sb.Equal("id", id))
	query, args := sb.Build()

	var car domain.Car
	if err := s.db.GetContext(ctx, &car, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("catalog: car %s: %w", id, domain.ErrNotFound)
		}
		return nil, unavailable("get car", err)
	}
	return &car, nil
}

// CarIDs lists every car id.
func (s *Store) CarIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM cars ORDER BY id`); err != nil {
		return nil, unavailable("list car ids", err)
	}
	return ids, nil
}

// Manufacturers returns the distinct non-empty manufacturers, sorted.
func (s *Store) Manufacturers(ctx context.Context) ([]string, error) {
	out := []string{}
	const q = `SELECT DISTINCT manufacturer FROM cars WHERE manufacturer <> '' ORDER BY manufacturer`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, unavailable("list manufacturers", err)
	}
	return out, nil
}

// SaveCar inserts or replaces a car.
func (s *Store) SaveCar(ctx context.Context, c domain.Car) error {
	if err := domain.ValidateCar(c); err != nil {
		return fmt.Errorf("catalog: save car: %w", err)
	}
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.ReplaceInto("cars").Cols(carColumns...).
		Values(c.ID, c.Manufacturer, c.Model, c.Year, c.BodyType, c.EngineInfo, c.Transmission, c.FuelType, c.MPG)
	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("save car", err)
	}
	return nil
}

type reviewRow struct {
	ID          string  `db:"id"`
	CarID       string  `db:"car_id"`
	Author      string  `db:"author"`
	Title       string  `db:"review_title"`
	Text        string  `db:"review_text"`
	Rating      float64 `db:"rating"`
	Date        string  `db:"review_date"`
	AIGenerated bool    `db:"is_ai_generated"`
	Pros        string  `db:"pros"`
	Cons        string  `db:"cons"`
}

func (r reviewRow) toDomain() domain.Review {
	rev := domain.Review{
		ID: r.ID, CarID: r.CarID, Author: r.Author, Title: r.Title, Text: r.Text,
		Rating: r.Rating, AIGenerated: r.AIGenerated,
	}
	rev.Date, _ = time.Parse(time.RFC3339, r.Date)
	_ = json.Unmarshal([]byte(r.Pros), &rev.Pros)
	_ = json.Unmarshal([]byte(r.Cons), &rev.Cons)
	return rev
}

// ReviewsForCar returns a car's reviews, newest first.
func (s *Store) ReviewsForCar(ctx context.Context, carID string) ([]domain.Review, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(reviewColumns...).From("reviews").Where(sb.Equal("car_id", carID))
	sb.OrderBy("review_date").Desc()
	query, args := sb.Build()

	var rows []reviewRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, unavailable("list reviews", err)
	}
	out := make([]domain.Review, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// AddReview stores a review, assigning an id and date when missing.
func (s *Store) AddReview(ctx context.Context, r domain.Review) (domain.Review, error) {
	if err := domain.ValidateReview(r); err != nil {
		return domain.Review{}, fmt.Errorf("catalog: add review: %w", err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Date.IsZero() {
		r.Date = s.now().UTC()
	}
	pros, _ := json.Marshal(nonNil(r.Pros))
	cons, _ := json.Marshal(nonNil(r.Cons))

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("reviews").Cols(reviewColumns...).
		Values(r.ID, r.CarID, r.Author, r.Title, r.Text, r.Rating,
			r.Date.Format(time.RFC3339), r.AIGenerated, string(pros), string(cons))
	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Review{}, unavailable("add review", err)
	}
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package catalog

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cars (
		id TEXT PRIMARY KEY,
		manufacturer TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		body_type TEXT NOT NULL DEFAULT '',
		engine_info TEXT NOT NULL DEFAULT '',
		transmission TEXT NOT NULL DEFAULT '',
		fuel_type TEXT NOT NULL DEFAULT '',
		mpg REAL NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cars_manufacturer ON cars(manufacturer)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		car_id TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		review_title TEXT NOT NULL DEFAULT '',
		review_text TEXT NOT NULL,
		rating REAL NOT NULL,
		review_date TEXT NOT NULL,
		is_ai_generated INTEGER NOT NULL DEFAULT 0,
		pros TEXT NOT NULL DEFAULT '[]',
		cons TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_car ON reviews(car_id)`,
	`CREATE TABLE IF NOT EXISTS feature_ratings (
		car_id TEXT NOT NULL,
		category TEXT NOT NULL,
		feature TEXT NOT NULL,
		value_num REAL,
		value_text TEXT,
		PRIMARY KEY (car_id, category, feature)
	)`,
	`CREATE TABLE IF NOT EXISTS timeline_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		car_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		significance REAL NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timeline_car ON timeline_events(car_id, year)`,
	`CREATE TABLE IF NOT EXISTS sentiment_aggregates (
		car_id TEXT NOT NULL,
		aspect TEXT NOT NULL,
		positive_count INTEGER NOT NULL DEFAULT 0,
		negative_count INTEGER NOT NULL DEFAULT 0,
		neutral_count INTEGER NOT NULL DEFAULT 0,
		key_positive_terms TEXT NOT NULL DEFAULT '[]',
		key_negative_terms TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (car_id, aspect)
	)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("catalog: init schema: %w", err)
		}
	}
	return nil
}

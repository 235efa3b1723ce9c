// Package domain defines the catalog, knowledge and review types shared by the
// Astra engine, plus the sentinel errors and validation applied at its entry
// points.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Car is a catalog entry.
type Car struct {
	ID           string  `json:"id" db:"id" yaml:"id"`
	Manufacturer string  `json:"manufacturer" db:"manufacturer" yaml:"manufacturer"`
	Model        string  `json:"model" db:"model" yaml:"model"`
	Year         int     `json:"year" db:"year" yaml:"year"`
	BodyType     string  `json:"body_type" db:"body_type" yaml:"body_type"`
	EngineInfo   string  `json:"engine_info" db:"engine_info" yaml:"engine_info"`
	Transmission string  `json:"transmission" db:"transmission" yaml:"transmission"`
	FuelType     string  `json:"fuel_type" db:"fuel_type" yaml:"fuel_type"`
	MPG          float64 `json:"mpg" db:"mpg" yaml:"mpg"`
}

// DisplayName renders "{year} {manufacturer} {model}".
func (c Car) DisplayName() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s %s", c.Year, c.Manufacturer, c.Model))
}

// Review is a user or generated review of a car.
type Review struct {
	ID          string    `json:"id"`
	CarID       string    `json:"car_id"`
	Author      string    `json:"author"`
	Title       string    `json:"review_title"`
	Text        string    `json:"review_text"`
	Rating      float64   `json:"rating"`
	Date        time.Time `json:"review_date"`
	AIGenerated bool      `json:"is_ai_generated"`
	Pros        []string  `json:"pros,omitempty"`
	Cons        []string  `json:"cons,omitempty"`
}

// EventType classifies timeline events.
type EventType string

const (
	EventSafety      EventType = "safety"
	EventPerformance EventType = "performance"
	EventTechnology  EventType = "technology"
	EventDesign      EventType = "design"
)

// TimelineEvent is a dated milestone in a model line's history.
type TimelineEvent struct {
	CarID        string    `json:"car_id"`
	Year         int       `json:"year"`
	EventType    EventType `json:"event_type"`
	Significance float64   `json:"significance"`
	Description  string    `json:"description,omitempty"`
}

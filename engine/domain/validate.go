package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinModelYear is the earliest year we accept.
const MinModelYear = 1900

// MaxModelYear is the latest year we accept (current + 1 for next-year models).
const MaxModelYear = 2027

const maxQueryLength = 2000

// Injection patterns: SQL/NoSQL fragments that should never appear in a user query.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`),
}

// ValidateCar validates a catalog entry before it is stored.
func ValidateCar(c Car) error {
	if strings.TrimSpace(c.ID) == "" {
		return NewValidationError("id", c.ID, ErrInvalidCar)
	}
	if strings.TrimSpace(c.Manufacturer) == "" {
		return NewValidationError("manufacturer", c.Manufacturer, ErrInvalidCar)
	}
	if strings.TrimSpace(c.Model) == "" {
		return NewValidationError("model", c.Model, ErrInvalidCar)
	}
	if c.Year < MinModelYear || c.Year > MaxModelYear {
		return NewValidationError("year", fmt.Sprintf("%d", c.Year), ErrYearOutOfRange)
	}
	return nil
}

// ValidateReview validates a review before it is stored.
func ValidateReview(r Review) error {
	if strings.TrimSpace(r.CarID) == "" {
		return NewValidationError("car_id", r.CarID, ErrInvalidReview)
	}
	if strings.TrimSpace(r.Text) == "" {
		return NewValidationError("review_text", r.Text, ErrInvalidReview)
	}
	if r.Rating < 1 || r.Rating > 5 {
		return NewValidationError("rating", fmt.Sprintf("%g", r.Rating), ErrRatingOutOfRange)
	}
	return nil
}

// ValidateRelationship validates a graph edge.
func ValidateRelationship(r Relationship) error {
	if r.SourceID == "" || r.TargetID == "" {
		return NewValidationError("id", r.SourceID+"->"+r.TargetID, ErrInvalidCar)
	}
	if !ValidRelationTypes[r.Type] {
		return NewValidationError("type", string(r.Type), ErrUnknownRelation)
	}
	return nil
}

// ValidateQuery validates free-text chat input. Blank text is rejected; the
// orchestrator treats it as a no-op before it gets here.
func ValidateQuery(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return NewValidationError("text", text, ErrInvalidQuery)
	}
	if utf8.RuneCountInString(text) > maxQueryLength {
		return NewValidationError("text", text[:32], ErrQueryTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("text", text, ErrQueryInjection)
		}
	}
	return nil
}

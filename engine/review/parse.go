package review

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/WessleyAI/astra/engine/assistant"
	"github.com/WessleyAI/astra/engine/domain"
)

const (
	maxFallbackText = 1500
	neutralRating   = 3.0
)

type modelReview struct {
	Title  string          `json:"review_title"`
	Rating json.RawMessage `json:"rating"`
	Text   string          `json:"review_text"`
	Author string          `json:"author"`
	Pros   []string        `json:"pros"`
	Cons   []string        `json:"cons"`
}

// ParseReply decodes the model's JSON review. Prose around the object and
// code fences are tolerated. The rating is clamped to 1-5 with one decimal;
// a missing or unreadable rating becomes 3.
func ParseReply(reply string) (domain.Review, error) {
	start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return domain.Review{}, fmt.Errorf("review: parse reply: %w", domain.ErrMalformedResponse)
	}
	var m modelReview
	if err := json.Unmarshal([]byte(reply[start:end+1]), &m); err != nil {
		return domain.Review{}, fmt.Errorf("review: parse reply: %w: %v", domain.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(m.Text) == "" {
		return domain.Review{}, fmt.Errorf("review: parse reply: missing review_text: %w", domain.ErrMalformedResponse)
	}
	return domain.Review{
		Author: strings.TrimSpace(m.Author),
		Title:  strings.TrimSpace(m.Title),
		Text:   strings.TrimSpace(m.Text),
		Rating: clampRating(parseRating(m.Rating)),
		Pros:   capList(m.Pros),
		Cons:   capList(m.Cons),
	}, nil
}

func parseRating(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "/5")
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}

func clampRating(r float64) float64 {
	if r <= 0 || math.IsNaN(r) {
		return neutralRating
	}
	r = math.Min(math.Max(r, 1), 5)
	return math.Round(r*10) / 10
}

// salvage keeps what it can from a reply that was not valid review JSON: the
// text truncated, plus any bullets and "x/5" rating found in it.
func salvage(c domain.Car, reply string) domain.Review {
	a := assistant.AnalyzeReply(reply)
	rating := neutralRating
	if a.AverageRating != nil {
		rating = clampRating(*a.AverageRating)
	}
	return domain.Review{
		Title:  c.DisplayName() + " Review",
		Author: "Astra",
		Text:   assistant.Truncate(strings.TrimSpace(reply), maxFallbackText),
		Rating: rating,
		Pros:   capList(a.CommonPros),
		Cons:   capList(a.CommonCons),
	}
}

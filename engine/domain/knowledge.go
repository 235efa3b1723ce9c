package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RelationType is the kind of edge between two cars.
type RelationType string

const (
	RelPredecessor RelationType = "predecessor"
	RelSuccessor   RelationType = "successor"
	RelVariant     RelationType = "variant"
	RelCompetitor  RelationType = "competitor"
)

// ValidRelationTypes is the set of recognised relationship types.
var ValidRelationTypes = map[RelationType]bool{
	RelPredecessor: true, RelSuccessor: true, RelVariant: true, RelCompetitor: true,
}

// Relationship is a directed edge from SourceID to TargetID.
type Relationship struct {
	SourceID    string         `json:"source_id"`
	TargetID    string         `json:"target_id"`
	Type        RelationType   `json:"type"`
	Strength    float64        `json:"strength"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	TargetLabel string         `json:"target_label"`
}

// FeatureValue is either numeric or categorical.
type FeatureValue struct {
	Number *float64
	Text   string
}

// Num returns a numeric FeatureValue.
func Num(v float64) FeatureValue { return FeatureValue{Number: &v} }

// Text returns a categorical FeatureValue.
func Text(s string) FeatureValue { return FeatureValue{Text: s} }

// IsNumeric reports whether the value holds a number.
func (v FeatureValue) IsNumeric() bool { return v.Number != nil }

func (v FeatureValue) MarshalJSON() ([]byte, error) {
	if v.Number != nil {
		return json.Marshal(*v.Number)
	}
	return json.Marshal(v.Text)
}

func (v *FeatureValue) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		v.Number, v.Text = &n, ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v.Number, v.Text = nil, s
	return nil
}

func (v FeatureValue) String() string {
	if v.Number != nil {
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	}
	return v.Text
}

// FeatureRating is one stored feature row.
type FeatureRating struct {
	CarID    string       `json:"car_id"`
	Category string       `json:"category"`
	Feature  string       `json:"feature"`
	Value    FeatureValue `json:"value"`
}

// FeatureSet groups a car's features as category -> feature -> value.
type FeatureSet map[string]map[string]FeatureValue

// OverallFeature is the feature name holding a category's summary score.
const OverallFeature = "overall"

// Overall returns the numeric overall score of category, matching the
// category name exactly first and then lower-cased.
func (s FeatureSet) Overall(category string) (float64, bool) {
	feats, ok := s[category]
	if !ok {
		feats, ok = s[strings.ToLower(category)]
	}
	if !ok {
		return 0, false
	}
	v, ok := feats[OverallFeature]
	if !ok || !v.IsNumeric() {
		return 0, false
	}
	return *v.Number, true
}

// OverallScores returns every category that has a numeric overall score.
func (s FeatureSet) OverallScores() map[string]float64 {
	out := make(map[string]float64)
	for cat := range s {
		if v, ok := s.Overall(cat); ok {
			out[cat] = v
		}
	}
	return out
}

// SentimentAggregate summarises opinion about one aspect of a car.
type SentimentAggregate struct {
	CarID            string   `json:"car_id"`
	Aspect           string   `json:"aspect"`
	PositiveCount    int      `json:"positive_count"`
	NegativeCount    int      `json:"negative_count"`
	NeutralCount     int      `json:"neutral_count"`
	KeyPositiveTerms []string `json:"key_positive_terms"`
	KeyNegativeTerms []string `json:"key_negative_terms"`
	PositivePercent  int      `json:"positive_percentage"`
	NegativePercent  int      `json:"negative_percentage"`
	NeutralPercent   int      `json:"neutral_percentage"`
}

// Total returns the number of mentions.
func (s SentimentAggregate) Total() int {
	return s.PositiveCount + s.NegativeCount + s.NeutralCount
}

// WithPercentages fills the percentage fields from the counts. Each share is
// rounded to the nearest integer; an excess over 100 is taken from the largest
// share. All percentages are 0 when there are no mentions.
func (s SentimentAggregate) WithPercentages() SentimentAggregate {
	total := s.Total()
	if total <= 0 {
		s.PositivePercent, s.NegativePercent, s.NeutralPercent = 0, 0, 0
		return s
	}
	pct := func(n int) int { return int(math.Round(float64(n) * 100 / float64(total))) }
	shares := []*int{&s.PositivePercent, &s.NegativePercent, &s.NeutralPercent}
	*shares[0], *shares[1], *shares[2] = pct(s.PositiveCount), pct(s.NegativeCount), pct(s.NeutralCount)
	for sum := *shares[0] + *shares[1] + *shares[2]; sum > 100; sum-- {
		largest := shares[0]
		for _, p := range shares[1:] {
			if *p > *largest {
				largest = p
			}
		}
		*largest--
	}
	return s
}

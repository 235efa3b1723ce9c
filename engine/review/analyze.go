package review

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/pkg/fn"
)

const (
	maxTopics   = 10
	maxKeyTerms = 5
)

// Buckets counts reviews by rating: 4 and up is positive, 2 and below is
// negative, anything between is neutral.
type Buckets struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Topic is a frequent word across review texts.
type Topic struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Analysis summarises a car's reviews.
type Analysis struct {
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
	Sentiment     Buckets `json:"sentiment"`
	CommonTopics  []Topic `json:"common_topics"`
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}']+`)

// Analyze computes the rating average, sentiment buckets and the ten most
// frequent words longer than three characters. Ties are broken
// alphabetically.
func Analyze(reviews []domain.Review) Analysis {
	a := Analysis{TotalReviews: len(reviews), CommonTopics: []Topic{}}
	if len(reviews) == 0 {
		return a
	}

	var sum float64
	counts := make(map[string]int)
	for _, r := range reviews {
		sum += r.Rating
		switch {
		case r.Rating >= 4:
			a.Sentiment.Positive++
		case r.Rating <= 2:
			a.Sentiment.Negative++
		default:
			a.Sentiment.Neutral++
		}
		for _, w := range wordRe.FindAllString(strings.ToLower(r.Text), -1) {
			if len([]rune(w)) > 3 {
				counts[w]++
			}
		}
	}
	a.AverageRating = math.Round(sum/float64(len(reviews))*100) / 100

	for w, n := range counts {
		a.CommonTopics = append(a.CommonTopics, Topic{Word: w, Count: n})
	}
	slices.SortFunc(a.CommonTopics, func(x, y Topic) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return strings.Compare(x.Word, y.Word)
	})
	if len(a.CommonTopics) > maxTopics {
		a.CommonTopics = a.CommonTopics[:maxTopics]
	}
	return a
}

// aspects maps an aspect label to the words that mention it.
var aspects = map[string][]string{
	"Performance":  {"engine", "power", "acceleration", "performance", "horsepower", "torque", "turbo"},
	"Handling":     {"handling", "steering", "cornering", "braking", "brakes", "suspension"},
	"Comfort":      {"comfort", "comfortable", "seat", "seats", "seating", "ride", "quiet", "noise"},
	"Fuel Economy": {"mpg", "fuel", "economy", "efficiency", "efficient", "mileage", "range"},
	"Technology":   {"technology", "tech", "infotainment", "screen", "display", "software", "features"},
	"Interior":     {"interior", "cabin", "materials", "storage", "cargo", "space", "trunk"},
	"Reliability":  {"reliable", "reliability", "warranty", "quality", "build", "durable"},
	"Value":        {"price", "value", "cost", "money", "expensive", "affordable", "cheap"},
}

var (
	praise = set("excellent", "great", "good", "smooth", "smoothly", "responsive", "comfortable", "quiet",
		"reliable", "impressive", "spacious", "intuitive", "strong", "solid", "efficient", "premium",
		"superior", "engaging", "affordable", "love", "best", "decent", "balanced")
	complaint = set("poor", "bad", "rough", "noisy", "cheap", "underpowered", "uncomfortable", "cramped",
		"outdated", "dated", "disappointing", "disappoint", "sluggish", "expensive", "unstable", "tight",
		"lags", "worst", "problem", "problems", "issue", "issues", "frustrating", "hesitation")

	sentenceRe = regexp.MustCompile(`[.!?\n]+`)
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

type mention struct {
	aspect   string
	polarity int
	terms    []string
}

// AggregateAspects counts aspect mentions across review texts and pros/cons
// lists. Each sentence counts once per aspect it mentions. Its polarity comes
// from praise and complaint words in the sentence; pros are always positive
// and cons always negative. Aspects without mentions are left out. The result
// is ordered by mention volume, then aspect name.
func AggregateAspects(carID string, reviews []domain.Review) []domain.SentimentAggregate {
	var mentions []mention
	for _, r := range reviews {
		for _, s := range sentenceRe.Split(r.Text, -1) {
			mentions = append(mentions, scan(s, 0)...)
		}
		for _, p := range r.Pros {
			mentions = append(mentions, scan(p, 1)...)
		}
		for _, c := range r.Cons {
			mentions = append(mentions, scan(c, -1)...)
		}
	}

	out := make([]domain.SentimentAggregate, 0, len(aspects))
	for aspect, ms := range fn.GroupBy(mentions, func(m mention) string { return m.aspect }) {
		agg := domain.SentimentAggregate{CarID: carID, Aspect: aspect}
		pos, neg := map[string]int{}, map[string]int{}
		for _, m := range ms {
			switch {
			case m.polarity > 0:
				agg.PositiveCount++
				for _, t := range m.terms {
					if praise[t] {
						pos[t]++
					}
				}
			case m.polarity < 0:
				agg.NegativeCount++
				for _, t := range m.terms {
					if complaint[t] {
						neg[t]++
					}
				}
			default:
				agg.NeutralCount++
			}
		}
		agg.KeyPositiveTerms = topTerms(pos)
		agg.KeyNegativeTerms = topTerms(neg)
		out = append(out, agg.WithPercentages())
	}
	slices.SortFunc(out, func(x, y domain.SentimentAggregate) int {
		if c := cmp.Compare(y.Total(), x.Total()); c != 0 {
			return c
		}
		return strings.Compare(x.Aspect, y.Aspect)
	})
	return out
}

// scan finds the aspects a sentence mentions. forced overrides the word
// based polarity when non-zero.
func scan(sentence string, forced int) []mention {
	words := wordRe.FindAllString(strings.ToLower(sentence), -1)
	if len(words) == 0 {
		return nil
	}
	polarity := forced
	if polarity == 0 {
		var score int
		for _, w := range words {
			if praise[w] {
				score++
			}
			if complaint[w] {
				score--
			}
		}
		polarity = cmp.Compare(score, 0)
	}

	var out []mention
	for aspect, keys := range aspects {
		if slices.ContainsFunc(words, func(w string) bool { return slices.Contains(keys, w) }) {
			out = append(out, mention{aspect: aspect, polarity: polarity, terms: words})
		}
	}
	return out
}

// topTerms orders terms by count, then alphabetically.
func topTerms(counts map[string]int) []string {
	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if len(terms) > maxKeyTerms {
		terms = terms[:maxKeyTerms]
	}
	return terms
}

// Package intent maps free-text questions to a visualization category and to
// the conversational topics used for follow-up suggestions.
package intent

import (
	"log/slog"
	"regexp"
	"strings"
)

// Category is the chart family a query implies.
type Category string

const (
	Comparison   Category = "comparison"
	Trend        Category = "trend"
	Sentiment    Category = "sentiment"
	Relationship Category = "relationship"
	None         Category = "none"
)

// Valid reports whether c names a chart family.
func (c Category) Valid() bool {
	switch c {
	case Comparison, Trend, Sentiment, Relationship:
		return true
	}
	return false
}

type group struct {
	category Category
	patterns []*regexp.Regexp
}

// Evaluated in priority order; the first matching group wins.
var groups = []group{
	{Comparison, compileAll(
		`\bcompare\b.*\b(with|to|against)\b`,
		`\bvs\.?\b`,
		`\bversus\b`,
		`\b(better|worse) than\b`,
		`\bcompared (to|with)\b`,
		`\bdifference between\b`,
		`\bstacks? up\b`,
	)},
	{Trend, compileAll(
		`\bevolution of\b`,
		`\bhistory of\b`,
		`\bchang(e|es|ed) over time\b`,
		`\bover the years\b`,
		`\bhow has\b.*\bchanged\b`,
		`\btimeline\b`,
		`\bevolved\b`,
	)},
	{Sentiment, compileAll(
		`\bwhat do (people|owners|drivers|users) (think|say)\b`,
		`\breviews?\b`,
		`\bopinions?\b`,
		`\b(like|dislike)\b`,
		`\bfeedback\b`,
		`\bsentiment\b`,
	)},
	{Relationship, compileAll(
		`\brelated to\b`,
		`\bsimilar to\b`,
		`\bfamily tree\b`,
		`\bpredecessors?\b`,
		`\bsuccessors?\b`,
		`\bvariants?\b`,
		`\bcompetitors?\b`,
	)},
}

// Weaker cues, consulted only when the query names a rated feature.
var (
	featureComparisonCue = regexp.MustCompile(`\bcompar(e|es|ed|ing|ison)\b|\bothers?\b`)
	featureTrendCue      = regexp.MustCompile(`\bhistory\b|\bimproved\b`)
)

var featureVocabulary = []string{
	"performance", "safety", "reliability", "comfort",
	"fuel economy", "technology", "value", "styling",
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Classifier selects a visualization category for a query.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier creates a Classifier. A nil logger uses slog.Default().
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger}
}

// Classify returns the chart category implied by query, or None.
func (c *Classifier) Classify(query string) Category {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		c.logger.Warn("intent: empty query")
		return None
	}
	category := classify(q)
	c.logger.Debug("intent: classified", "category", category)
	return category
}

func classify(q string) Category {
	for _, g := range groups {
		for _, p := range g.patterns {
			if p.MatchString(q) {
				return g.category
			}
		}
	}
	if !mentionsFeature(q) {
		return None
	}
	switch {
	case featureComparisonCue.MatchString(q):
		return Comparison
	case featureTrendCue.MatchString(q):
		return Trend
	default:
		return Sentiment
	}
}

var defaultClassifier = NewClassifier(nil)

// Classify classifies query with a classifier logging to slog.Default().
func Classify(query string) Category { return defaultClassifier.Classify(query) }

func mentionsFeature(q string) bool {
	for _, f := range featureVocabulary {
		if strings.Contains(q, f) {
			return true
		}
	}
	return false
}

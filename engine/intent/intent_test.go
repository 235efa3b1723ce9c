package intent

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		query string
		want  Category
	}{
		{"Compare Model X to Model Y", Comparison},
		{"Camry vs Accord", Comparison},
		{"Is the Civic better than the Corolla?", Comparison},
		{"What's the difference between the GTI and the Golf R?", Comparison},
		{"Show the evolution of the Mustang", Trend},
		{"How has the 3 Series changed since 2010?", Trend},
		{"What do owners think about the Outback?", Sentiment},
		{"Any reviews of the Model 3?", Sentiment},
		{"Which cars are similar to the RAV4?", Relationship},
		{"Who are the competitors of the F-150?", Relationship},
		{"What was the predecessor of the Supra?", Relationship},
		{"How is its safety compared with other SUVs?", Comparison},
		{"safety of other sedans", Comparison},
		{"Has the reliability improved?", Trend},
		{"Safety history please", Trend},
		{"Tell me about the comfort", Sentiment},
		{"Is the comfort good enough for my mother?", Sentiment},
		{"Another question about safety", Sentiment},
		{"How does its comfort rank among others?", Comparison},
		{"Technology comparison please", Comparison},
		{"What colors does it come in?", None},
		{"", None},
		{"   ", None},
	}
	c := NewClassifier(nil)
	for _, tc := range cases {
		if got := c.Classify(tc.query); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestClassify_ComparisonOutranksRelationship(t *testing.T) {
	q := "compare the Camry with its competitors"
	if got := Classify(q); got != Comparison {
		t.Errorf("Classify(%q) = %q, want comparison", q, got)
	}
}

func TestClassify_SentimentOutranksRelationship(t *testing.T) {
	q := "reviews of the Civic's successor"
	if got := Classify(q); got != Sentiment {
		t.Errorf("Classify(%q) = %q, want sentiment", q, got)
	}
}

func TestClassify_EmptyLogs(t *testing.T) {
	var buf bytes.Buffer
	c := NewClassifier(slog.New(slog.NewTextHandler(&buf, nil)))
	if got := c.Classify(""); got != None {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(buf.String(), "empty query") {
		t.Errorf("expected a log line, got %q", buf.String())
	}
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range []Category{Comparison, Trend, Sentiment, Relationship} {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if None.Valid() || Category("pie").Valid() {
		t.Error("none and unknown categories should be invalid")
	}
}

func TestTopics(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"What's the gas mileage?", []string{TopicFuelEconomy}},
		{"Is it safe and reliable?", []string{TopicSafety, TopicReliability}},
		{"tell me something", []string{TopicGeneral}},
	}
	for _, tc := range cases {
		got := Topics(tc.query)
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Errorf("Topics(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestPrimaryIntent(t *testing.T) {
	cases := map[string]string{
		"hello! how fast is it?":   TopicPerformance,
		"hello":                    "greeting",
		"How many mpg does it get": TopicFuelEconomy,
		"what is this":             TopicGeneral,
	}
	for q, want := range cases {
		if got := PrimaryIntent(q); got != want {
			t.Errorf("PrimaryIntent(%q) = %q, want %q", q, got, want)
		}
	}
}

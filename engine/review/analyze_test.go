package review

import (
	"reflect"
	"testing"

	"github.com/WessleyAI/astra/engine/domain"
)

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(nil)
	if a.TotalReviews != 0 || a.AverageRating != 0 || a.Sentiment != (Buckets{}) || a.CommonTopics == nil {
		t.Errorf("Analyze(nil) = %+v", a)
	}
}

func TestAnalyze(t *testing.T) {
	reviews := []domain.Review{
		{Rating: 5, Text: "Great engine, great brakes."},
		{Rating: 4, Text: "Engine pulls well."},
		{Rating: 3, Text: "Okay seats."},
		{Rating: 2, Text: "Noisy engine."},
		{Rating: 1.5, Text: "Brakes squeal."},
	}
	a := Analyze(reviews)
	if a.TotalReviews != 5 {
		t.Errorf("total = %d", a.TotalReviews)
	}
	if a.AverageRating != 3.1 {
		t.Errorf("average = %v, want 3.1", a.AverageRating)
	}
	if want := (Buckets{Positive: 2, Negative: 2, Neutral: 1}); a.Sentiment != want {
		t.Errorf("sentiment = %+v, want %+v", a.Sentiment, want)
	}
	want := []Topic{
		{"engine", 3}, {"brakes", 2}, {"great", 2}, {"noisy", 1},
		{"okay", 1}, {"pulls", 1}, {"seats", 1}, {"squeal", 1}, {"well", 1},
	}
	if !reflect.DeepEqual(a.CommonTopics, want) {
		t.Errorf("topics = %v\nwant     %v", a.CommonTopics, want)
	}
}

func TestAnalyzeTopTen(t *testing.T) {
	r := domain.Review{Rating: 4, Text: "alpha bravo charlie delta echoo foxtrot golf hotel india juliet kilo lima"}
	if got := len(Analyze([]domain.Review{r}).CommonTopics); got != 10 {
		t.Errorf("topics = %d, want 10", got)
	}
}

func TestAggregateAspects(t *testing.T) {
	reviews := []domain.Review{
		{Text: "The engine is responsive and strong. Fuel economy is poor.", Pros: []string{"Comfortable seats"}},
		{Text: "Engine feels sluggish on hills. The cabin has lots of space.", Cons: []string{"Noisy ride"}},
	}
	got := AggregateAspects("car-1", reviews)

	byAspect := map[string]domain.SentimentAggregate{}
	for _, a := range got {
		if a.CarID != "car-1" {
			t.Errorf("car id = %q", a.CarID)
		}
		byAspect[a.Aspect] = a
	}

	perf := byAspect["Performance"]
	if perf.PositiveCount != 1 || perf.NegativeCount != 1 || perf.NeutralCount != 0 {
		t.Errorf("performance = %+v", perf)
	}
	if !reflect.DeepEqual(perf.KeyPositiveTerms, []string{"responsive", "strong"}) ||
		!reflect.DeepEqual(perf.KeyNegativeTerms, []string{"sluggish"}) {
		t.Errorf("performance terms = %v / %v", perf.KeyPositiveTerms, perf.KeyNegativeTerms)
	}
	if perf.PositivePercent+perf.NegativePercent+perf.NeutralPercent != 100 {
		t.Errorf("performance percentages = %+v", perf)
	}

	if fe := byAspect["Fuel Economy"]; fe.NegativeCount != 1 || fe.PositiveCount != 0 {
		t.Errorf("fuel economy = %+v", fe)
	}
	if c := byAspect["Comfort"]; c.PositiveCount != 1 || c.NegativeCount != 1 {
		t.Errorf("comfort = %+v", c)
	}
	if in := byAspect["Interior"]; in.NeutralCount != 1 {
		t.Errorf("interior = %+v", in)
	}
	if _, ok := byAspect["Value"]; ok {
		t.Error("unmentioned aspect should be omitted")
	}

	for i := 1; i < len(got); i++ {
		if got[i-1].Total() < got[i].Total() {
			t.Errorf("not ordered by volume: %s(%d) before %s(%d)", got[i-1].Aspect, got[i-1].Total(), got[i].Aspect, got[i].Total())
		}
	}
}

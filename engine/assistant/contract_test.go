package assistant

import (
	"errors"
	"testing"

	"github.com/WessleyAI/astra/engine/domain"
)

func TestDecodeResponseFull(t *testing.T) {
	body := `{
		"response": "It is good.",
		"entity_data": {"id": "c1", "manufacturer": "Honda", "model": "Civic", "year": 2022},
		"analysis": {
			"category_scores": {"Safety": 4.5},
			"common_pros": ["Efficient", " "],
			"common_cons": [],
			"sentiment": {"positive": 1, "negative": 0, "neutral": 0},
			"average_rating": 4.2
		},
		"intent": {"primaryIntent": "safety"}
	}`
	r, err := DecodeResponse([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if r.Response != "It is good." || r.EntityData == nil || r.EntityData.Model != "Civic" {
		t.Errorf("r = %+v", r)
	}
	if r.PrimaryIntent() != "safety" {
		t.Errorf("intent = %q", r.PrimaryIntent())
	}
	a := r.Analysis
	if a.CategoryScores["Safety"] != 4.5 || len(a.CommonPros) != 1 || a.CommonCons != nil {
		t.Errorf("analysis = %+v", a)
	}
	if a.Sentiment == nil || a.Sentiment.Positive != 1 || a.AverageRating == nil || *a.AverageRating != 4.2 {
		t.Errorf("analysis = %+v", a)
	}
}

func TestDecodeResponseDropsBadFields(t *testing.T) {
	body := `{
		"response": "ok",
		"entity_data": "not a car",
		"analysis": {"category_scores": {"Safety": "high"}, "average_rating": "4", "common_pros": ["a"]},
		"intent": 7
	}`
	r, err := DecodeResponse([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if r.EntityData != nil || r.Intent != nil {
		t.Errorf("bad fields kept: %+v", r)
	}
	if r.Analysis.CategoryScores != nil || r.Analysis.AverageRating != nil {
		t.Errorf("analysis = %+v", r.Analysis)
	}
	if len(r.Analysis.CommonPros) != 1 {
		t.Errorf("good field lost: %+v", r.Analysis)
	}
}

func TestDecodeResponseMinimal(t *testing.T) {
	r, err := DecodeResponse([]byte(`{"response":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	if r.Analysis != nil || r.EntityData != nil || r.PrimaryIntent() != "" {
		t.Errorf("r = %+v", r)
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	for _, body := range []string{"<html>oops</html>", `{"answer":"x"}`, `["a"]`, `{"response": 3}`} {
		if _, err := DecodeResponse([]byte(body)); !errors.Is(err, domain.ErrMalformedResponse) {
			t.Errorf("%s: err = %v", body, err)
		}
	}
}

func TestNilResponseIntent(t *testing.T) {
	var r *ChatResponse
	if r.PrimaryIntent() != "" {
		t.Error("nil response should have no intent")
	}
}

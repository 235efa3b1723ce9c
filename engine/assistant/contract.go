// Package assistant answers chat turns about a selected car: it builds the
// prompt from catalog data, routes it to a primary or fallback language
// model and extracts structured analysis from the reply.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/WessleyAI/astra/engine/domain"
)

// Backend produces one assistant reply. Service and HTTPBackend implement it.
type Backend interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message             string   `json:"message"`
	EntityID            string   `json:"entity_id,omitempty"`
	ConversationHistory []string `json:"conversation_history"`
}

// ChatResponse is the reply plus whatever structured data the backend could
// derive. Every optional field is nil when absent.
type ChatResponse struct {
	Response   string      `json:"response"`
	EntityData *domain.Car `json:"entity_data,omitempty"`
	Analysis   *Analysis   `json:"analysis,omitempty"`
	Intent     *Intent     `json:"intent,omitempty"`
	Model      string      `json:"model,omitempty"`
}

// Analysis is structured data extracted from a reply.
type Analysis struct {
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
	CommonPros     []string           `json:"common_pros,omitempty"`
	CommonCons     []string           `json:"common_cons,omitempty"`
	Sentiment      *Sentiment         `json:"sentiment,omitempty"`
	AverageRating  *float64           `json:"average_rating,omitempty"`
}

// Sentiment counts keyword hits in a reply.
type Sentiment struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Intent carries the topic detected for the user message.
type Intent struct {
	PrimaryIntent string `json:"primaryIntent"`
}

// PrimaryIntent returns the detected topic or "" when absent.
func (r *ChatResponse) PrimaryIntent() string {
	if r == nil || r.Intent == nil {
		return ""
	}
	return r.Intent.PrimaryIntent
}

// DecodeResponse parses a backend body field by field. A field with an
// unexpected shape is dropped rather than failing the whole reply; only a
// body that is not a JSON object, or lacks a string "response", is an error
// wrapping domain.ErrMalformedResponse.
func DecodeResponse(body []byte) (*ChatResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("assistant: decode: %w: %w", domain.ErrMalformedResponse, err)
	}
	out := &ChatResponse{}
	if err := json.Unmarshal(raw["response"], &out.Response); err != nil {
		return nil, fmt.Errorf("assistant: decode response text: %w", domain.ErrMalformedResponse)
	}
	lenient(raw["model"], &out.Model)

	var car domain.Car
	if lenient(raw["entity_data"], &car) && car.ID != "" {
		out.EntityData = &car
	}

	var intent Intent
	if lenient(raw["intent"], &intent) && intent.PrimaryIntent != "" {
		out.Intent = &intent
	}

	var fields map[string]json.RawMessage
	if lenient(raw["analysis"], &fields) {
		var a Analysis
		lenient(fields["category_scores"], &a.CategoryScores)
		lenient(fields["common_pros"], &a.CommonPros)
		lenient(fields["common_cons"], &a.CommonCons)
		var s Sentiment
		if lenient(fields["sentiment"], &s) {
			a.Sentiment = &s
		}
		var rating float64
		if lenient(fields["average_rating"], &rating) {
			a.AverageRating = &rating
		}
		a.CommonPros = nonBlank(a.CommonPros)
		a.CommonCons = nonBlank(a.CommonCons)
		out.Analysis = &a
	}
	return out, nil
}

// lenient unmarshals raw into dst only when the whole value decodes,
// reporting whether it did.
func lenient[T any](raw json.RawMessage, dst *T) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

func nonBlank(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

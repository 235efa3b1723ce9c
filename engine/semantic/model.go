package semantic

// Snippet is one review passage returned by a similarity search.
type Snippet struct {
	ID       string  `json:"id"`
	CarID    string  `json:"car_id"`
	ReviewID string  `json:"review_id"`
	Text     string  `json:"text"`
	Rating   float64 `json:"rating,omitempty"`
	Score    float32 `json:"score"`
}

// Record is a single vector to store in Qdrant.
type Record struct {
	ID        string
	Embedding []float32
	CarID     string
	ReviewID  string
	Text      string
	Rating    float64
}

package viz

import (
	"encoding/json"

	"github.com/WessleyAI/astra/engine/intent"
)

// Visualization is a tagged chart payload.
type Visualization struct {
	Type intent.Category `json:"type"`
	Data Payload         `json:"data"`
}

// Payload is one of ComparisonPayload, TrendPayload, SentimentPayload or
// RelationshipPayload.
type Payload interface {
	Kind() intent.Category
}

// Entity is one compared car.
type Entity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ComparisonPayload feeds a grouped bar/radar chart. Values is entity-major:
// Values[i][j] is entity i's score in category j; nil means unknown.
type ComparisonPayload struct {
	Categories []string     `json:"categories"`
	Entities   []Entity     `json:"entities"`
	Values     [][]*float64 `json:"values"`
}

func (ComparisonPayload) Kind() intent.Category { return intent.Comparison }

// Series is one line of a trend chart.
type Series struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TrendPoint is one x-axis label with a value per series key.
type TrendPoint struct {
	Label  string
	Values map[string]*float64
}

// MarshalJSON flattens the point to {"label": ..., "<series>": value|null}.
func (p TrendPoint) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Values)+1)
	for k, v := range p.Values {
		m[k] = v
	}
	m["label"] = p.Label
	return json.Marshal(m)
}

// TrendPayload feeds a multi-series line chart.
type TrendPayload struct {
	TimeSeriesData []TrendPoint `json:"timeSeriesData"`
	Series         []Series     `json:"series"`
	YDomain        [2]float64   `json:"yDomain"`
}

func (TrendPayload) Kind() intent.Category { return intent.Trend }

// AspectData is one diverging bar: positive and negative percentages.
type AspectData struct {
	Aspect   string `json:"aspect"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
}

// SentimentPayload feeds a diverging bar chart.
type SentimentPayload struct {
	AspectData []AspectData `json:"aspectData"`
}

func (SentimentPayload) Kind() intent.Category { return intent.Sentiment }

// Node is a vertex of the relationship graph.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Link is an edge of the relationship graph.
type Link struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
}

// RelationshipPayload feeds a force-directed graph.
type RelationshipPayload struct {
	PrimaryNode Node   `json:"primaryNode"`
	Nodes       []Node `json:"nodes"`
	Links       []Link `json:"links"`
}

func (RelationshipPayload) Kind() intent.Category { return intent.Relationship }

package intent

import (
	"regexp"
	"strings"
)

// Conversation topics reported as the backend's primary intent.
const (
	TopicGeneral     = "general"
	TopicFuelEconomy = "fuel_economy"
	TopicPerformance = "performance"
	TopicReliability = "reliability"
	TopicSafety      = "safety"
)

type topic struct {
	name    string
	pattern *regexp.Regexp
}

var topics = []topic{
	{"greeting", regexp.MustCompile(`\b(hi|hello|hey|greetings)\b`)},
	{"farewell", regexp.MustCompile(`\b(bye|goodbye|see you|farewell)\b`)},
	{"features", regexp.MustCompile(`\b(features?|equipped|comes with|options?)\b`)},
	{"specs", regexp.MustCompile(`\b(specs?|specifications?|dimensions?|horsepower|hp|torque|engine|weight)\b`)},
	{TopicFuelEconomy, regexp.MustCompile(`\b(mpg|fuel|gas mileage|economy|efficient|efficiency|consumption)\b`)},
	{TopicPerformance, regexp.MustCompile(`\b(performance|acceleration|speed|fast|quick|handling|0-60)\b`)},
	{TopicSafety, regexp.MustCompile(`\b(safety|safe|crash|airbags?|collision|nhtsa|iihs)\b`)},
	{"interior", regexp.MustCompile(`\b(interior|cabin|seats?|comfort|comfortable|space|legroom)\b`)},
	{"exterior", regexp.MustCompile(`\b(exterior|design|looks?|styling|colors?|paint)\b`)},
	{TopicReliability, regexp.MustCompile(`\b(reliability|reliable|dependable|problems?|issues?|maintenance)\b`)},
	{"comparison", regexp.MustCompile(`\b(compare|comparison|versus|vs|better than|difference)\b`)},
	{"price", regexp.MustCompile(`\b(price|cost|expensive|cheap|afford|msrp|value)\b`)},
	{"recommendation", regexp.MustCompile(`\b(recommend|suggest|should i buy|worth it)\b`)},
	{"technology", regexp.MustCompile(`\b(technology|tech|infotainment|screen|apple carplay|android auto)\b`)},
	{"opinion", regexp.MustCompile(`\b(opinion|think|thoughts|feel about|review)\b`)},
}

// Topics returns every conversation topic query touches, in table order, or
// [general] when none match.
func Topics(query string) []string {
	q := strings.ToLower(query)
	var out []string
	for _, t := range topics {
		if t.pattern.MatchString(q) {
			out = append(out, t.name)
		}
	}
	if len(out) == 0 {
		return []string{TopicGeneral}
	}
	return out
}

// PrimaryIntent returns the first topic of query, skipping greetings and
// farewells when a more specific topic is present.
func PrimaryIntent(query string) string {
	ts := Topics(query)
	for _, t := range ts {
		if t != "greeting" && t != "farewell" {
			return t
		}
	}
	return ts[0]
}

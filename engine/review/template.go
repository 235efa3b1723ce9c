package review

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/WessleyAI/astra/engine/domain"
)

// Tone is the overall verdict of a templated review.
type Tone string

const (
	Positive Tone = "positive"
	Neutral  Tone = "neutral"
	Negative Tone = "negative"
)

const maxListItems = 4

var authors = []string{
	"Michael Thompson", "Sarah Johnson", "James Rodriguez", "Emma Davis",
	"Robert Chen", "Lisa Patel", "David Wilson", "Maria Garcia",
}

// Weights are relative odds of each tone.
type Weights struct {
	Positive, Neutral, Negative int
}

// ToneWeights starts from 40/40/20 and shifts the odds by brand reputation
// and model age.
func ToneWeights(c domain.Car, currentYear int) Weights {
	w := Weights{Positive: 40, Neutral: 40, Negative: 20}
	switch strings.ToLower(c.Manufacturer) {
	case "tesla", "toyota", "lexus", "honda":
		w.Positive += 15
		w.Negative -= 10
	case "ford", "chevrolet", "volkswagen":
		w.Neutral += 10
	case "fiat", "mitsubishi":
		w.Negative += 15
		w.Positive -= 10
	}
	switch {
	case c.Year >= currentYear-2:
		w.Positive += 10
		w.Negative -= 5
	case c.Year <= currentYear-10:
		w.Negative += 15
		w.Positive -= 10
	}
	return w
}

// Pick maps roll, in [0,1), onto the weighted tones.
func (w Weights) Pick(roll float64) Tone {
	total := float64(w.Positive + w.Neutral + w.Negative)
	if total <= 0 {
		return Neutral
	}
	x := roll * total
	switch {
	case x < float64(w.Positive):
		return Positive
	case x < float64(w.Positive+w.Neutral):
		return Neutral
	default:
		return Negative
	}
}

// Template writes a short review without a language model. The output is a
// pure function of the car and the calendar year of now.
func Template(c domain.Car, now time.Time) domain.Review {
	rng := rand.New(rand.NewPCG(seed(c), uint64(now.Year())))
	tone := ToneWeights(c, now.Year()).Pick(rng.Float64())
	rating := ratingFor(tone, rng.Float64())

	name := c.DisplayName()
	titles := map[Tone][]string{
		Positive: {"The " + name + ": A Solid Choice", "Impressive: " + name, name + " - Worth Your Attention"},
		Neutral:  {"The " + name + ": Mixed Results", "Middle Ground: " + name, name + " - Has Potential"},
		Negative: {"The " + name + ": Room for Improvement", "Disappointing: " + name, name + " - Look Elsewhere"},
	}[tone]

	return domain.Review{
		CarID:       c.ID,
		Author:      authors[rng.IntN(len(authors))],
		Title:       titles[rng.IntN(len(titles))],
		Text:        body(c, tone, rating),
		Rating:      rating,
		Date:        now.UTC(),
		AIGenerated: true,
		Pros:        pros(rng, c, tone),
		Cons:        cons(rng, c, tone),
	}
}

func seed(c domain.Car) uint64 {
	h := fnv.New64a()
	h.Write([]byte(c.ID))
	h.Write([]byte(c.DisplayName()))
	return h.Sum64()
}

// ratingFor spreads u over the tone's band: 4.0-4.8, 3.0-3.9 or 1.8-2.9.
func ratingFor(t Tone, u float64) float64 {
	lo, hi := 3.0, 3.9
	switch t {
	case Positive:
		lo, hi = 4.0, 4.8
	case Negative:
		lo, hi = 1.8, 2.9
	}
	return math.Round((lo+u*(hi-lo))*10) / 10
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func mpgText(c domain.Car) string {
	if c.MPG <= 0 {
		return "competitive"
	}
	return fmt.Sprintf("%g", c.MPG)
}

func body(c domain.Car, t Tone, rating float64) string {
	name := c.DisplayName()
	bodyType := orDefault(c.BodyType, "vehicle")
	engine := orDefault(c.EngineInfo, "standard engine")
	mpg := mpgText(c)

	var overview, verdict string
	switch t {
	case Positive:
		overview = fmt.Sprintf("The %s stands out in the %s category with its %s providing strong performance while achieving %s MPG. "+
			"Ride quality, handling and interior comfort are above average for its class, and the technology is intuitive.", name, bodyType, engine, mpg)
		verdict = fmt.Sprintf("Overall, the %s earns a %.1f/5 rating. It offers a compelling package for buyers in this segment, "+
			"and its few minor drawbacks are easily outweighed by its strengths.", c.Model, rating)
	case Neutral:
		overview = fmt.Sprintf("The %s offers adequate performance for a %s, with its %s providing sufficient power for daily driving while returning %s MPG. "+
			"The ride and interior are satisfactory though unremarkable, and the technology covers the basics.", name, bodyType, engine, mpg)
		verdict = fmt.Sprintf("With a %.1f/5 rating, the %s is a middle-of-the-road option. "+
			"It is worth a look, though competitors may suit some buyers better.", rating, c.Model)
	default:
		overview = fmt.Sprintf("The %s falls short in the %s segment. Its %s feels underpowered despite modest %s MPG efficiency. "+
			"The ride is compromised, interior materials disappoint, and the technology lags behind competitors.", name, bodyType, engine, mpg)
		verdict = fmt.Sprintf("I give the %s a %.1f/5 rating. Its shortcomings make it difficult to recommend "+
			"when more compelling options exist at similar prices.", c.Model, rating)
	}
	return overview + "\n\n" + verdict
}

func sample(rng *rand.Rand, items []string, k int) []string {
	if k > len(items) {
		k = len(items)
	}
	out := make([]string, 0, k)
	for _, i := range rng.Perm(len(items))[:k] {
		out = append(out, items[i])
	}
	return out
}

func capList(items []string) []string {
	if len(items) > maxListItems {
		return items[:maxListItems]
	}
	return items
}

func pros(rng *rand.Rand, c domain.Car, t Tone) []string {
	common := []string{
		orDefault(c.Transmission, "Transmission") + " shifts smoothly in normal driving",
		"User-friendly infotainment system",
		"Adequate " + orDefault(c.BodyType, "vehicle") + " for daily commuting",
	}
	engine := orDefault(c.EngineInfo, "engine")
	switch t {
	case Positive:
		return capList(append(sample(rng, []string{
			"Excellent fuel economy at " + mpgText(c) + " MPG",
			"Responsive " + engine,
			"Premium interior materials",
			"Advanced technology features",
			"Engaging handling dynamics",
			"Comfortable and spacious seating",
			"Superior build quality",
			"Comprehensive safety features",
			"Versatile cargo space",
		}, 3), sample(rng, common, 1)...))
	case Neutral:
		return capList(append(sample(rng, []string{
			"Decent fuel economy at " + mpgText(c) + " MPG",
			"Adequate power for most situations",
			"Comfortable front seats",
			"User-friendly controls",
			"Reasonable cargo space",
			"Balanced ride quality",
			"Good visibility",
		}, 2), sample(rng, common, 1)...))
	default:
		return sample(rng, []string{
			"Acceptable fuel tank range",
			"Basic " + engine + " works for urban driving",
			"Entry-level trim offers value",
			"Some thoughtful storage compartments",
			"Distinctive styling",
		}, 2)
	}
}

func cons(rng *rand.Rand, c domain.Car, t Tone) []string {
	common := []string{
		"Some advanced features only available on higher trims",
		"Warranty coverage is standard but not exceptional",
		"Interior storage could be better organized",
	}
	engine := orDefault(c.EngineInfo, "engine")
	var picked []string
	switch t {
	case Positive:
		picked = sample(rng, []string{
			"Slightly higher starting price than some competitors",
			"Optional features can increase price significantly",
			"Rear visibility could be improved",
			"Learning curve for some advanced technology features",
			"Firm ride might not appeal to all drivers",
			"Requires premium fuel for optimal performance",
			"Some controls could be more intuitively placed",
		}, 3)
	case Neutral:
		picked = sample(rng, []string{
			"Fuel economy lags behind segment leaders",
			orDefault(c.EngineInfo, "Engine") + " performance is adequate but uninspiring",
			"Interior materials quality is inconsistent",
			"Noticeable road noise at highway speeds",
			"Infotainment system graphics look dated",
			"Rear seat space is tight for taller passengers",
			"Handling becomes less composed on rough roads",
			"Some competitors offer better value",
		}, 3)
	default:
		picked = sample(rng, []string{
			"Poor fuel economy relative to segment competitors",
			"Underpowered " + engine + " struggles during acceleration",
			orDefault(c.Transmission, "Transmission") + " exhibits frequent hesitation and rough shifts",
			"Interior materials feel cheap and prone to wear",
			"Uncomfortable seating becomes evident on longer drives",
			"Frustrating and outdated infotainment interface",
			"Excessive road and wind noise intrudes into cabin",
			"Limited cargo capacity compared to competitors",
		}, 4)
	}
	return capList(append(picked, sample(rng, common, 1)...))
}

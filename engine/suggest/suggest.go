// Package suggest produces follow-up questions for the chat UI.
package suggest

import (
	"fmt"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/intent"
)

// EarlyTurns is the number of user turns that get the basic template set.
const EarlyTurns = 2

var general = []string{
	"What are the most fuel-efficient cars available?",
	"Which SUVs have the best safety ratings?",
	"What's the difference between hybrid and electric vehicles?",
	"Which cars hold their value best?",
	"What should I look for when buying a used car?",
}

var basic = []string{
	"What is the fuel economy of the %s?",
	"Tell me about the engine in the %s",
	"How comfortable is the %s on long drives?",
	"What safety features does the %s have?",
	"How reliable is the %s?",
}

var byTopic = map[string][]string{
	intent.TopicFuelEconomy: {
		"How does the %s's fuel economy compare to its competitors?",
		"What real-world mileage do owners get from the %s?",
		"Does the %s have a hybrid or electric option?",
		"What driving habits improve mileage in the %s?",
	},
	intent.TopicPerformance: {
		"How fast does the %s accelerate from 0-60?",
		"How does the %s handle on winding roads?",
		"Is the %s's engine powerful enough for highway merging?",
		"What performance trims are available for the %s?",
	},
	intent.TopicReliability: {
		"What are the most common problems with the %s?",
		"How expensive is the %s to maintain?",
		"How many miles can the %s last?",
		"What does the %s's warranty cover?",
	},
	intent.TopicSafety: {
		"What crash test ratings did the %s receive?",
		"Which driver-assistance features come standard on the %s?",
		"How does the %s protect rear-seat passengers?",
		"Is the %s a good choice for a family?",
	},
}

var followUps = []string{
	"How does the %s compare to its competitors?",
	"What do owners say about the %s?",
	"What are the pros and cons of the %s?",
	"Would you recommend the %s?",
}

// Generate returns the follow-up questions for the current turn. It is
// deterministic: the same car, intent and turn count always produce the same
// list.
func Generate(car *domain.Car, lastIntent string, turnCount int) []string {
	if car == nil {
		return append([]string(nil), general...)
	}
	name := car.DisplayName()
	if turnCount <= EarlyTurns {
		return fill(basic, name)
	}
	if templates, ok := byTopic[lastIntent]; ok {
		return fill(templates, name)
	}
	return fill(followUps, name)
}

// Fallback returns the entity-aware questions offered when the assistant is
// unreachable.
func Fallback(car *domain.Car) []string {
	return Generate(car, "", 0)
}

func fill(templates []string, name string) []string {
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = fmt.Sprintf(t, name)
	}
	return out
}

package review

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/pkg/ollama"
)

const journalist = "You are an experienced automotive journalist with 20 years of experience reviewing cars. " +
	"You provide detailed, honest and technically accurate reviews that highlight both strengths and weaknesses."

func spec(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}

func prompt(c domain.Car) []ollama.Message {
	mpg := "N/A"
	if c.MPG > 0 {
		mpg = fmt.Sprintf("%g", c.MPG)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Write a detailed car review for a %s.\n\n", c.DisplayName())
	b.WriteString("Technical specifications:\n")
	fmt.Fprintf(&b, "- Engine: %s\n", spec(c.EngineInfo))
	fmt.Fprintf(&b, "- Transmission: %s\n", spec(c.Transmission))
	fmt.Fprintf(&b, "- Fuel type: %s\n", spec(c.FuelType))
	fmt.Fprintf(&b, "- MPG: %s\n", mpg)
	fmt.Fprintf(&b, "- Body type: %s\n\n", spec(c.BodyType))
	b.WriteString("Cover performance, the technical features above, the driving experience and value for money. " +
		"Keep it balanced and list 3 to 5 pros and cons.\n\n")
	b.WriteString("Respond with a JSON object with these fields:\n" +
		"- review_title: a catchy title\n" +
		"- rating: a number between 1 and 5 with one decimal\n" +
		"- review_text: the review, 300 to 500 words\n" +
		"- author: an automotive expert name\n" +
		"- pros: an array of strings\n" +
		"- cons: an array of strings\n")

	return []ollama.Message{
		{Role: "system", Content: journalist},
		{Role: "user", Content: b.String()},
	}
}

package assistant

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/astra/engine/domain"
)

const basePrompt = `You are an automotive expert assistant. Give helpful, accurate and conversational answers about cars.

Rules:
1. Focus on vehicles from our catalog, but general automotive knowledge is welcome when data is missing.
2. If a requested attribute is not in our data, say so and give typical figures for that class of vehicle.
3. Be conversational; avoid canned or repetitive answers.
4. Organise longer answers into sections with bullet points. Label lists "Pros:" and "Cons:" when weighing a car.
5. When you rate a car, write the rating as "x out of 5".
6. Keep earlier questions in mind and keep the dialogue coherent.`

// systemPrompt lists up to limit catalog cars and the selected car's specs.
func systemPrompt(sample []domain.Car, limit int, car *domain.Car) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	listed := 0
	for _, c := range sample {
		if c.Year == 0 || c.Manufacturer == "" || c.Model == "" {
			continue
		}
		if listed == 0 {
			b.WriteString("\n\nVehicles in our catalog include:")
		}
		fmt.Fprintf(&b, "\n- %s", c.DisplayName())
		listed++
		if listed == limit {
			break
		}
	}

	if car != nil && car.Year != 0 && car.Manufacturer != "" && car.Model != "" {
		fmt.Fprintf(&b, "\n\nThe user is currently viewing the %s. Its specifications:", car.DisplayName())
		for _, kv := range specLines(*car) {
			fmt.Fprintf(&b, "\n- %s: %s", kv[0], kv[1])
		}
		fmt.Fprintf(&b, "\n\nIf you lack data about a feature of the %s %s, describe what similar vehicles in its class typically offer.", car.Manufacturer, car.Model)
	}
	return b.String()
}

func specLines(c domain.Car) [][2]string {
	var out [][2]string
	add := func(k, v string) {
		if v != "" {
			out = append(out, [2]string{k, v})
		}
	}
	add("manufacturer", c.Manufacturer)
	add("model", c.Model)
	add("year", fmt.Sprint(c.Year))
	add("body type", c.BodyType)
	add("engine", c.EngineInfo)
	add("transmission", c.Transmission)
	add("fuel type", c.FuelType)
	if c.MPG > 0 {
		add("mpg", fmt.Sprint(c.MPG))
	}
	return out
}

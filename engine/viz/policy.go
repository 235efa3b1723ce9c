package viz

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// ErrUnknownPolicy is returned by ParsePolicy for an unrecognised name.
var ErrUnknownPolicy = errors.New("viz: unknown data policy")

// UnknownDataPolicy decides the comparison score shown when a car has no
// "overall" rating in a category.
type UnknownDataPolicy interface {
	Fill(entityID, category string) *float64
}

// PlaceholderPolicy returns a pseudo-random score in [3, 5).
type PlaceholderPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlaceholderPolicy seeds the placeholder generator. Equal seeds produce
// equal sequences.
func NewPlaceholderPolicy(seed int64) *PlaceholderPolicy {
	return &PlaceholderPolicy{rng: rand.New(rand.NewPCG(uint64(seed), 0x5eed))}
}

func (p *PlaceholderPolicy) Fill(string, string) *float64 {
	p.mu.Lock()
	v := 3 + p.rng.Float64()*2
	p.mu.Unlock()
	return &v
}

// OmitPolicy leaves unknown scores empty (null in JSON).
type OmitPolicy struct{}

func (OmitPolicy) Fill(string, string) *float64 { return nil }

// SentinelPolicy fills unknown scores with a fixed value.
type SentinelPolicy float64

func (s SentinelPolicy) Fill(string, string) *float64 {
	v := float64(s)
	return &v
}

// ParsePolicy maps a configuration name to a policy: "omit", "zero" or
// "placeholder" (seeded with seed).
func ParsePolicy(name string, seed int64) (UnknownDataPolicy, error) {
	switch name {
	case "omit":
		return OmitPolicy{}, nil
	case "zero":
		return SentinelPolicy(0), nil
	case "placeholder":
		return NewPlaceholderPolicy(seed), nil
	default:
		return nil, fmt.Errorf("%w %q (want omit, zero or placeholder)", ErrUnknownPolicy, name)
	}
}

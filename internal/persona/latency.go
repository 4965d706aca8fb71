package persona

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Distribution selects how latency is drawn between the persona's bounds.
type Distribution string

const (
	Uniform    Distribution = "uniform"
	Triangular Distribution = "triangular"
)

// ParseDistribution accepts the config spelling of a Distribution.
func ParseDistribution(s string) (Distribution, error) {
	switch d := Distribution(strings.ToLower(strings.TrimSpace(s))); d {
	case "", Uniform:
		return Uniform, nil
	case Triangular:
		return Triangular, nil
	default:
		return "", fmt.Errorf("unknown latency distribution %q", s)
	}
}

// LatencySampler draws response delays within fixed bounds. It is safe for
// concurrent use.
type LatencySampler struct {
	mu   sync.Mutex
	rng  *rand.Rand
	min  time.Duration
	max  time.Duration
	dist Distribution
}

// NewLatencySampler returns a sampler over p's latency bounds. A nil src
// seeds the generator randomly.
func NewLatencySampler(p Persona, dist Distribution, src rand.Source) *LatencySampler {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if dist == "" {
		dist = Uniform
	}
	return &LatencySampler{
		rng:  rand.New(src),
		min:  time.Duration(p.LatencyMinMS) * time.Millisecond,
		max:  time.Duration(p.LatencyMaxMS) * time.Millisecond,
		dist: dist,
	}
}

// Sample returns one delay in [min, max].
func (s *LatencySampler) Sample() time.Duration {
	span := s.max - s.min
	if span <= 0 {
		return s.min
	}

	s.mu.Lock()
	var u float64
	switch s.dist {
	case Triangular:
		u = (s.rng.Float64() + s.rng.Float64()) / 2
	default:
		u = s.rng.Float64()
	}
	s.mu.Unlock()

	return s.min + time.Duration(u*float64(span))
}

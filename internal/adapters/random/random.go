package random

import (
	"math/rand/v2"
	"sync"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Source draws bounded integers from a PCG generator.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Source seeded from the runtime's entropy.
func New() *Source {
	return &Source{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded returns a reproducible Source.
func NewSeeded(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntRange returns a value in [min, max]. Reversed bounds are swapped.
func (s *Source) IntRange(min, max int) int {
	if max < min {
		min, max = max, min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.IntN(max-min+1)
}

var _ ports.Random = (*Source)(nil)

package game

import (
	"math/rand/v2"
	"sync"
)

// Source supplies secrets and guesses. Implementations are used by one
// machine at a time.
type Source interface {
	// Secret returns a secret in [1, upper].
	Secret(upper int) int
	// Guess returns a guess in [1, upper], preferring values not in tried.
	Guess(upper int, tried map[int]bool) int
}

// RandSource draws uniformly from a seeded PCG generator.
type RandSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSource returns a source seeded with seed. A zero seed draws a
// random one.
func NewRandSource(seed int64) *RandSource {
	s := uint64(seed)
	if seed == 0 {
		s = rand.Uint64()
	}
	return &RandSource{rng: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (r *RandSource) Secret(upper int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(upper) + 1
}

// Guess picks uniformly among untried values; once every value was tried it
// falls back to any value in range.
func (r *RandSource) Guess(upper int, tried map[int]bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := upper - len(tried)
	if remaining <= 0 {
		return r.rng.IntN(upper) + 1
	}
	k := r.rng.IntN(remaining)
	for v := 1; v <= upper; v++ {
		if tried[v] {
			continue
		}
		if k == 0 {
			return v
		}
		k--
	}
	return r.rng.IntN(upper) + 1
}

// ScriptSource replays fixed secrets and guesses, then defers to Fallback
// (or counts upward from 1 when Fallback is nil).
type ScriptSource struct {
	mu       sync.Mutex
	Secrets  []int
	Guesses  []int
	Fallback Source
}

func (s *ScriptSource) Secret(upper int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Secrets) > 0 {
		v := s.Secrets[0]
		s.Secrets = s.Secrets[1:]
		return v
	}
	if s.Fallback != nil {
		return s.Fallback.Secret(upper)
	}
	return upper
}

func (s *ScriptSource) Guess(upper int, tried map[int]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Guesses) > 0 {
		v := s.Guesses[0]
		s.Guesses = s.Guesses[1:]
		return v
	}
	if s.Fallback != nil {
		return s.Fallback.Guess(upper, tried)
	}
	for v := 1; v <= upper; v++ {
		if !tried[v] {
			return v
		}
	}
	return 1
}

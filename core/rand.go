package core

import (
	"math/rand"
	"sync"
)

// RandSource supplies the randomness used by the stochastic parts of the
// relay (weather draws, channel loss, measurement noise, science-mode
// exit). It is injected everywhere so tests can fix outcomes; production
// code never reaches for a package-global generator.
//
// One source is typically shared across components serving concurrent
// reports, so implementations must be safe for concurrent use.
type RandSource interface {
	// Float64 returns a uniform sample in [0, 1).
	Float64() float64
	// NormFloat64 returns a standard normal sample.
	NormFloat64() float64
}

// NewRand returns a seeded RandSource backed by math/rand. The returned
// source serializes draws; rand.Rand itself is not concurrency-safe.
func NewRand(seed int64) RandSource {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

func (l *lockedRand) NormFloat64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.NormFloat64()
}

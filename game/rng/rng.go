// Package rng holds the random helpers shared by the level generators:
// a seedable source and an unbiased Fisher-Yates shuffle.
package rng

import (
	"time"

	"golang.org/x/exp/rand"
)

// Source is the subset of a PRNG the generators depend on.
// *rand.Rand satisfies it; tests may plug in scripted sources.
type Source interface {
	// Intn returns a uniform value in [0, n). It panics if n <= 0.
	Intn(n int) int
}

// New returns a deterministic source for the given seed
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewTimeSeeded returns a source seeded from the wall clock
func NewTimeSeeded() *rand.Rand {
	return New(uint64(time.Now().UnixNano()))
}

// Shuffle permutes items in place. Every one of the len(items)! orderings
// is equally likely provided src is uniform.
func Shuffle[T any](src Source, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Intn returns a uniform value in [0, n), or 0 when n <= 1
func Intn(src Source, n int) int {
	if n <= 1 {
		return 0
	}
	return src.Intn(n)
}

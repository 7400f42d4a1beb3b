package identification

import "math/rand/v2"

// RandomSource feeds the heuristic fallback. Tests pass a scripted source.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }
func (globalRandom) IntN(n int) int   { return rand.IntN(n) }

func DefaultRandom() RandomSource {
	return globalRandom{}
}

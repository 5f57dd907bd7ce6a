// Package walk implements a bounded random walk used to simulate a live sensor value.
package walk

import (
	crand "crypto/rand"
	"math"
	"math/rand/v2"
)

const (
	// StdDev is the standard deviation of the per-step perturbation.
	StdDev = 0.005

	defaultUpper = 4096
	defaultLower = 0

	// band is the half width of the band around a seeded start value.
	band = 10
)

// Walk owns a scalar value that drifts by a normally distributed step each tick,
// kept inside [lower, upper).
//
// A Walk is not safe for concurrent use.
type Walk struct {
	value float64
	lower float64
	upper float64
	rng   *rand.Rand
}

// New returns a walk starting at 0 with bounds [0, 4096].
func New() *Walk {
	return newWalk(0, defaultLower, defaultUpper, entropySource())
}

// NewAround returns a walk starting at start with bounds [start-10, start+10].
// A NaN or infinite start has no band to recover into, so it yields New().
func NewAround(start float64) *Walk {
	if math.IsNaN(start) || math.IsInf(start, 0) {
		return New()
	}

	return newWalk(start, start-band, start+band, entropySource())
}

func newWalk(value, lower, upper float64, src rand.Source) *Walk {
	return &Walk{
		value: value,
		lower: lower,
		upper: upper,
		rng:   rand.New(src), //nolint:gosec // Simulation, not cryptography
	}
}

// entropySource seeds a ChaCha8 generator from the operating system's entropy pool.
func entropySource() rand.Source {
	var seed [32]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = crand.Read(seed[:])

	return rand.NewChaCha8(seed)
}

// Step advances the walk by one tick.
//
// A value that has left the band is snapped one unit inside the violated bound and
// is not perturbed on that tick, so the walk never sits exactly on a bound.
func (w *Walk) Step() {
	if w.value < w.lower {
		w.value = w.lower + 1
		return
	}

	if w.value > w.upper-1 {
		w.value = w.upper - 1
		return
	}

	w.value += w.rng.NormFloat64() * StdDev
}

// Value returns the current position.
func (w *Walk) Value() float64 {
	return w.value
}

// Bounds returns the lower and upper bound fixed at construction.
func (w *Walk) Bounds() (lower, upper float64) {
	return w.lower, w.upper
}

package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strconv"
)

// RNG provides deterministic random number generation for one unit of
// pipeline work. Each unit derives its own seed from the master seed to
// ensure isolation and reproducibility. The derivation follows the formula:
//
//	seed_unit = H(masterSeed, label_1, label_2, …)
//
// where H is SHA-256 and the first 8 bytes are used as the uint64 seed.
//
// The planner derives one stream per (seed, imageID, configIndex, transformID)
// so that parameter resolution is reproducible regardless of worker count or
// scheduling order.
type RNG struct {
	seed   uint64
	source *rand.Rand
}

// New creates a unit-specific RNG by deriving a sub-seed from the master seed
// and an ordered list of labels. The derivation uses SHA-256 to combine:
//   - masterSeed: the top-level seed for the entire release
//   - labels: identifiers for the unit of work (image ID, config index,
//     transform ID, stage name, …) written in order with length prefixes
//
// This ensures that:
//  1. Same inputs always produce the same sequence (determinism)
//  2. Different units get independent sequences (isolation)
//  3. Label changes result in different sequences (sensitivity)
func New(masterSeed uint64, labels ...string) *RNG {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], masterSeed)
	h.Write(buf[:])

	// Length-prefix each label so ("ab","c") and ("a","bc") derive differently.
	for _, label := range labels {
		binary.BigEndian.PutUint64(buf[:], uint64(len(label)))
		h.Write(buf[:])
		h.Write([]byte(label))
	}

	hash := h.Sum(nil)
	derivedSeed := binary.BigEndian.Uint64(hash[:8])

	return &RNG{
		seed:   derivedSeed,
		source: rand.New(rand.NewSource(int64(derivedSeed))), //nolint:gosec // deterministic by design
	}
}

// ForTransform creates the RNG stream used to resolve one transform's range
// parameters within one augmentation config.
func ForTransform(masterSeed uint64, imageID string, configIndex int, transformID string) *RNG {
	return New(masterSeed, imageID, strconv.Itoa(configIndex), transformID)
}

// Uint64 returns a pseudo-random 64-bit unsigned integer.
func (r *RNG) Uint64() uint64 {
	return r.source.Uint64()
}

// Intn returns a pseudo-random integer in [0, n).
// It panics if n <= 0.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn argument must be positive")
	}
	return r.source.Intn(n)
}

// Float64 returns a pseudo-random float64 in [0.0, 1.0).
func (r *RNG) Float64() float64 {
	return r.source.Float64()
}

// Shuffle pseudo-randomizes the order of elements in a slice.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	r.source.Shuffle(n, swap)
}

// Seed returns the derived seed for this RNG.
// Useful for debugging and logging which seed was used for a unit.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// IntRange returns a pseudo-random integer in [min, max].
// It panics if min > max.
func (r *RNG) IntRange(min, max int) int {
	if min > max {
		panic("rng: IntRange min must be <= max")
	}
	if min == max {
		return min
	}
	return min + r.source.Intn(max-min+1)
}

// Float64Range returns a pseudo-random float64 in [min, max).
// Returns min when min == max; panics if min > max.
func (r *RNG) Float64Range(min, max float64) float64 {
	if min > max {
		panic("rng: Float64Range min must be <= max")
	}
	if min == max {
		return min
	}
	return min + r.source.Float64()*(max-min)
}

// Bool returns a pseudo-random boolean value.
func (r *RNG) Bool() bool {
	return r.source.Intn(2) == 1
}

// WeightedChoice selects an index from weights using weighted random selection.
// Weights must be non-negative. Returns -1 if all weights are zero or weights is empty.
func (r *RNG) WeightedChoice(weights []float64) int {
	if len(weights) == 0 {
		return -1
	}

	total := 0.0
	for _, w := range weights {
		if w < 0 {
			panic("rng: WeightedChoice weights must be non-negative")
		}
		total += w
	}

	if total == 0 {
		return -1
	}

	randVal := r.Float64() * total

	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if randVal < cumulative {
			return i
		}
	}

	return len(weights) - 1
}

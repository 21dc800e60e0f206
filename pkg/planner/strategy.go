package planner

import (
	"fmt"

	"github.com/yelloji/relgen/pkg/rng"
)

// Strategy selects which transform combinations build each augmented image.
// Implementations receive the number of enabled transforms and must return
// exactly count index combinations; each combination is an ascending list of
// indexes into the order_index-sorted transform slice.
//
// Contract:
//   - Must be deterministic given the same RNG stream
//   - Every returned combination must be non-empty
//   - Indexes must be ascending so application order follows order_index
type Strategy interface {
	// Sample returns count combinations over n transforms.
	Sample(n, count int, stream *rng.RNG) [][]int
}

// strategies is the registry of sampling strategies, keyed by the
// sampling_strategy config value.
var strategies = map[string]Strategy{
	"intelligent": intelligentStrategy{},
	"exhaustive":  exhaustiveStrategy{},
	"random":      randomStrategy{},
}

// GetStrategy returns a registered sampling strategy by name.
func GetStrategy(name string) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown sampling strategy %q", name)
	}
	return s, nil
}

// combinations enumerates every non-empty ascending index combination over n
// elements with size 1..maxSize, sizes ascending, lexicographic within a
// size. The order is part of the determinism contract.
func combinations(n, maxSize int) [][]int {
	if maxSize > n {
		maxSize = n
	}
	var all [][]int
	for size := 1; size <= maxSize; size++ {
		combo := make([]int, size)
		var walk func(start, depth int)
		walk = func(start, depth int) {
			if depth == size {
				out := make([]int, size)
				copy(out, combo)
				all = append(all, out)
				return
			}
			for i := start; i <= n-(size-depth); i++ {
				combo[depth] = i
				walk(i+1, depth+1)
			}
		}
		walk(0, 0)
	}
	return all
}

// intelligentStrategy enumerates combinations of size 1..min(n, 3) and
// samples without replacement, weighting larger combinations more heavily so
// diverse multi-transform outputs are preferred. When the pool is smaller
// than the requested count it falls back to sampling with replacement.
type intelligentStrategy struct{}

func (intelligentStrategy) Sample(n, count int, stream *rng.RNG) [][]int {
	maxSize := n
	if maxSize > 3 {
		maxSize = 3
	}
	pool := combinations(n, maxSize)

	weights := make([]float64, len(pool))
	for i, combo := range pool {
		weights[i] = float64(len(combo))
	}

	var picked [][]int
	for len(picked) < count && len(picked) < len(pool) {
		idx := stream.WeightedChoice(weights)
		if idx < 0 {
			break
		}
		picked = append(picked, pool[idx])
		weights[idx] = 0 // without replacement
	}

	// Pool exhausted: continue with replacement.
	for len(picked) < count {
		picked = append(picked, pool[stream.Intn(len(pool))])
	}

	return picked
}

// exhaustiveStrategy walks every combination (all sizes) in enumeration
// order, cycling when the requested count exceeds the pool.
type exhaustiveStrategy struct{}

func (exhaustiveStrategy) Sample(n, count int, _ *rng.RNG) [][]int {
	pool := combinations(n, n)
	picked := make([][]int, count)
	for i := 0; i < count; i++ {
		picked[i] = pool[i%len(pool)]
	}
	return picked
}

// randomStrategy draws uniformly from all combinations, with replacement.
type randomStrategy struct{}

func (randomStrategy) Sample(n, count int, stream *rng.RNG) [][]int {
	pool := combinations(n, n)
	picked := make([][]int, count)
	for i := 0; i < count; i++ {
		picked[i] = pool[stream.Intn(len(pool))]
	}
	return picked
}

// Package planner expands a declarative list of enabled transformations into
// concrete per-image augmentation configs honoring the requested multiplier
// and sampling strategy.
//
// Three strategies are registered: intelligent (weighted sampling over
// combinations of size 1..3, without replacement while the pool lasts),
// exhaustive (every combination in enumeration order), and random (uniform
// draws with replacement). All are deterministic given the release seed.
package planner

package transform

import (
	"math"

	"github.com/yelloji/relgen/pkg/rng"
)

// Resolved is one concrete transform step inside an augmentation config:
// every range parameter has been collapsed to a single value and every absent
// parameter filled with its default. Numeric values are float64, enum values
// string.
type Resolved struct {
	Type   Kind           `json:"type"`
	Params map[string]any `json:"params"`
}

// Float returns a numeric parameter. The planner guarantees presence, so a
// missing key falls back to the catalog default.
func (r Resolved) Float(key string) float64 {
	if v, ok := r.Params[key].(float64); ok {
		return v
	}
	if spec, err := Get(r.Type); err == nil {
		return spec.Params[key].Default
	}
	return 0
}

// Int returns a numeric parameter rounded to the nearest integer.
func (r Resolved) Int(key string) int {
	return int(math.Round(r.Float(key)))
}

// String returns an enum parameter, falling back to the catalog default.
func (r Resolved) String(key string) string {
	if v, ok := r.Params[key].(string); ok {
		return v
	}
	if spec, err := Get(r.Type); err == nil {
		return spec.Params[key].DefaultChoice
	}
	return ""
}

// Geometric reports whether this step must be mirrored on annotations.
func (r Resolved) Geometric() bool {
	return IsGeometric(r.Type)
}

// Resolve collapses a record's stored parameters to concrete values using the
// given deterministic RNG stream. Range parameters draw uniformly within
// their bounds; absent parameters take catalog defaults. The parameter keys
// are visited in sorted order so the RNG stream is consumed identically on
// every run.
//
// Resolve assumes the record already passed ValidateParams; it does not
// re-validate.
func Resolve(record *Record, stream *rng.RNG) Resolved {
	spec, err := Get(record.Type)
	if err != nil {
		// Unknown kinds are rejected during planning; an empty step keeps
		// the engine total.
		return Resolved{Type: record.Type, Params: map[string]any{}}
	}

	out := Resolved{Type: record.Type, Params: make(map[string]any, len(spec.Params))}

	for _, key := range sortedParamKeys(spec) {
		ps := spec.Params[key]

		if len(ps.Choices) > 0 {
			if s, ok := record.Parameters[key].(string); ok {
				out.Params[key] = s
			} else {
				out.Params[key] = ps.DefaultChoice
			}
			continue
		}

		raw, present := record.Parameters[key]
		var value float64
		if !present {
			value = ps.Default
		} else {
			lo, hi, err := numericBounds(raw)
			if err != nil {
				value = ps.Default
			} else if lo == hi {
				value = lo
			} else {
				value = stream.Float64Range(lo, hi)
			}
		}
		if ps.Integer {
			value = math.Round(value)
		}
		out.Params[key] = value
	}

	return out
}

func sortedParamKeys(spec Spec) []string {
	keys := make([]string, 0, len(spec.Params))
	for k := range spec.Params {
		keys = append(keys, k)
	}
	// insertion sort keeps this allocation-light for tiny maps
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

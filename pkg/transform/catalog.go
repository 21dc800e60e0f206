package transform

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidParameter is returned when a transform's stored parameters carry
// an unknown key, an out-of-range value, or a value of the wrong type.
// Callers detect it with errors.Is.
var ErrInvalidParameter = errors.New("invalid transform parameter")

// Kind names a transformation type in the catalog. The canonical names are
// the wire values stored on transformation records by external editors.
type Kind string

// Recognized transformation kinds.
const (
	KindResize      Kind = "resize"
	KindRotate      Kind = "rotate"
	KindFlip        Kind = "flip"
	KindCrop        Kind = "crop"
	KindBrightness  Kind = "brightness"
	KindContrast    Kind = "contrast"
	KindBlur        Kind = "blur"
	KindNoise       Kind = "noise"
	KindColorJitter Kind = "color_jitter"
	KindCutout      Kind = "cutout"
	KindRandomZoom  Kind = "random_zoom"
	KindAffine      Kind = "affine_transform"
	KindPerspective Kind = "perspective_warp"
	KindGrayscale   Kind = "grayscale"
	KindShear       Kind = "shear"
	KindGamma       Kind = "gamma_correction"
	KindEqualize    Kind = "equalize"
	KindCLAHE       Kind = "clahe"
)

// ParamSpec declares a single parameter of a transform kind: its accepted
// numeric range (or enum choices) and default. Numeric parameters accept
// either a single value or a {min, max} range object; ranges are resolved to
// a concrete value per config by the planner.
type ParamSpec struct {
	// Min and Max bound numeric values (inclusive). Ignored for enums.
	Min float64
	Max float64

	// Default is used when the parameter is absent from the stored map.
	Default float64

	// Choices lists the accepted values for string-enum parameters.
	// When non-empty the parameter is an enum, not a number.
	Choices []string

	// DefaultChoice is the enum default when the parameter is absent.
	DefaultChoice string

	// Integer restricts numeric values to whole numbers.
	Integer bool
}

// Spec declares one transformation kind: its parameters and whether it is
// geometric (its effect must be mirrored on annotation geometry) or
// photometric (pixel values only).
type Spec struct {
	Kind      Kind
	Geometric bool
	Params    map[string]ParamSpec
}

// catalog declares every recognized transformation kind centrally.
// Cutout punches holes in pixel data without moving geometry, so it is
// photometric for annotation purposes even though it is spatial.
var catalog = map[Kind]Spec{
	KindResize: {Kind: KindResize, Geometric: true, Params: map[string]ParamSpec{
		"width":         {Min: 1, Max: 8192, Default: 640, Integer: true},
		"height":        {Min: 1, Max: 8192, Default: 640, Integer: true},
		"interpolation": {Choices: []string{"nearest", "bilinear"}, DefaultChoice: "bilinear"},
	}},
	KindRotate: {Kind: KindRotate, Geometric: true, Params: map[string]ParamSpec{
		"angle": {Min: -180, Max: 180, Default: 15},
	}},
	KindFlip: {Kind: KindFlip, Geometric: true, Params: map[string]ParamSpec{
		"axis": {Choices: []string{"horizontal", "vertical"}, DefaultChoice: "horizontal"},
	}},
	KindCrop: {Kind: KindCrop, Geometric: true, Params: map[string]ParamSpec{
		"keep_fraction": {Min: 0.5, Max: 1.0, Default: 0.8},
	}},
	KindBrightness: {Kind: KindBrightness, Params: map[string]ParamSpec{
		"percent": {Min: -50, Max: 50, Default: 20},
	}},
	KindContrast: {Kind: KindContrast, Params: map[string]ParamSpec{
		"percent": {Min: -50, Max: 50, Default: 20},
	}},
	KindBlur: {Kind: KindBlur, Params: map[string]ParamSpec{
		"radius": {Min: 0.5, Max: 10, Default: 2},
	}},
	KindNoise: {Kind: KindNoise, Params: map[string]ParamSpec{
		"strength": {Min: 0, Max: 25, Default: 5},
	}},
	KindColorJitter: {Kind: KindColorJitter, Params: map[string]ParamSpec{
		"hue":        {Min: -30, Max: 30, Default: 10},
		"saturation": {Min: -50, Max: 50, Default: 20},
		"brightness": {Min: -50, Max: 50, Default: 10},
		"contrast":   {Min: -50, Max: 50, Default: 10},
	}},
	KindCutout: {Kind: KindCutout, Params: map[string]ParamSpec{
		"num_holes": {Min: 1, Max: 10, Default: 3, Integer: true},
		"hole_size": {Min: 8, Max: 128, Default: 32, Integer: true},
	}},
	KindRandomZoom: {Kind: KindRandomZoom, Geometric: true, Params: map[string]ParamSpec{
		"factor": {Min: 0.5, Max: 2.0, Default: 1.2},
	}},
	KindAffine: {Kind: KindAffine, Geometric: true, Params: map[string]ParamSpec{
		"scale":    {Min: 0.5, Max: 2.0, Default: 1.0},
		"rotation": {Min: -45, Max: 45, Default: 0},
		"shift_x":  {Min: -0.3, Max: 0.3, Default: 0},
		"shift_y":  {Min: -0.3, Max: 0.3, Default: 0},
		"shear_x":  {Min: -30, Max: 30, Default: 0},
		"shear_y":  {Min: -30, Max: 30, Default: 0},
	}},
	KindPerspective: {Kind: KindPerspective, Geometric: true, Params: map[string]ParamSpec{
		"distortion": {Min: 0, Max: 0.3, Default: 0.1},
	}},
	KindGrayscale: {Kind: KindGrayscale, Params: map[string]ParamSpec{}},
	KindShear: {Kind: KindShear, Geometric: true, Params: map[string]ParamSpec{
		"angle": {Min: -30, Max: 30, Default: 10},
	}},
	KindGamma: {Kind: KindGamma, Params: map[string]ParamSpec{
		"gamma": {Min: 0.5, Max: 2.0, Default: 1.2},
	}},
	KindEqualize: {Kind: KindEqualize, Params: map[string]ParamSpec{}},
	KindCLAHE: {Kind: KindCLAHE, Params: map[string]ParamSpec{
		"clip_limit": {Min: 1, Max: 10, Default: 2},
		"tile_grid":  {Min: 2, Max: 16, Default: 8, Integer: true},
	}},
}

// Get returns the spec for a transformation kind.
func Get(kind Kind) (Spec, error) {
	spec, ok := catalog[kind]
	if !ok {
		return Spec{}, fmt.Errorf("%w: unknown transformation type %q", ErrInvalidParameter, kind)
	}
	return spec, nil
}

// Kinds returns all recognized kinds in sorted order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(catalog))
	for k := range catalog {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsGeometric reports whether a kind's effect must be mirrored on annotation
// geometry. Unknown kinds report false.
func IsGeometric(kind Kind) bool {
	return catalog[kind].Geometric
}

// ValidateParams checks a stored parameter map against the kind's spec.
// It rejects unknown kinds, unknown keys, wrong types, and out-of-range
// values (for range objects, both bounds must lie in the accepted range and
// min must not exceed max). All failures wrap ErrInvalidParameter.
func ValidateParams(kind Kind, params map[string]any) error {
	spec, err := Get(kind)
	if err != nil {
		return err
	}

	for key, raw := range params {
		ps, ok := spec.Params[key]
		if !ok {
			return fmt.Errorf("%w: %s has no parameter %q", ErrInvalidParameter, kind, key)
		}

		if len(ps.Choices) > 0 {
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("%w: %s.%s must be a string", ErrInvalidParameter, kind, key)
			}
			if !containsString(ps.Choices, s) {
				return fmt.Errorf("%w: %s.%s must be one of %v, got %q", ErrInvalidParameter, kind, key, ps.Choices, s)
			}
			continue
		}

		lo, hi, err := numericBounds(raw)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidParameter, kind, key, err)
		}
		if lo > hi {
			return fmt.Errorf("%w: %s.%s range min %g exceeds max %g", ErrInvalidParameter, kind, key, lo, hi)
		}
		if lo < ps.Min || hi > ps.Max {
			return fmt.Errorf("%w: %s.%s must be in [%g, %g], got [%g, %g]", ErrInvalidParameter, kind, key, ps.Min, ps.Max, lo, hi)
		}
	}

	return nil
}

// numericBounds extracts the [lo, hi] interval from a stored parameter value:
// a bare number yields a point interval, a {min, max} object its bounds.
func numericBounds(raw any) (float64, float64, error) {
	if v, ok := toFloat(raw); ok {
		return v, v, nil
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return 0, 0, fmt.Errorf("expected number or {min, max} object, got %T", raw)
	}
	loRaw, hasLo := m["min"]
	hiRaw, hasHi := m["max"]
	if !hasLo || !hasHi || len(m) != 2 {
		return 0, 0, fmt.Errorf("range object must have exactly min and max keys")
	}
	lo, ok := toFloat(loRaw)
	if !ok {
		return 0, 0, fmt.Errorf("range min must be a number, got %T", loRaw)
	}
	hi, ok := toFloat(hiRaw)
	if !ok {
		return 0, 0, fmt.Errorf("range max must be a number, got %T", hiRaw)
	}
	return lo, hi, nil
}

// toFloat normalizes the numeric types JSON and YAML decoders produce.
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

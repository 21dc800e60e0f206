package planner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yelloji/relgen/pkg/rng"
	"github.com/yelloji/relgen/pkg/transform"
)

// ErrNoTransforms is returned when a multiplier above one is requested but
// no enabled transforms are available to build augmented images from.
var ErrNoTransforms = errors.New("no enabled transforms available")

// ImageRef identifies one source image to plan configs for.
type ImageRef struct {
	// ID is the source image's database ID.
	ID string

	// Split is the image's target split section (train, val, test).
	Split string
}

// Config is the planner input.
type Config struct {
	// Records are the enabled transformation records for this release.
	// The planner sorts them by OrderIndex; that order is a contract the
	// engine honors when applying transforms within a config.
	Records []transform.Record

	// Images are the source images to augment.
	Images []ImageRef

	// Multiplier is images_per_original: the number of output images per
	// source image, including the original when IncludeOriginal is set.
	Multiplier int

	// Strategy selects the sampling strategy: intelligent, exhaustive, random.
	Strategy string

	// Seed is the master release seed for deterministic resolution.
	Seed uint64

	// IncludeOriginal controls whether the unmodified source counts toward
	// the multiplier.
	IncludeOriginal bool
}

// AugmentationConfig is the concrete per-image plan: a totally ordered list
// of resolved transforms. ConfigID numbers augmented outputs per source image
// starting at 1; 0 is reserved for the passthrough original.
type AugmentationConfig struct {
	ConfigID      int                  `json:"config_id"`
	SourceImageID string               `json:"source_image_id"`
	Transforms    []transform.Resolved `json:"applied_transforms"`
	TargetSplit   string               `json:"target_split"`
}

// Plan expands the enabled transforms × images × multiplier into concrete
// augmentation configs. Range parameters resolve through a deterministic RNG
// stream per (seed, imageID, configIndex, transformID), and combination
// choices through a per-image stream, so plans are reproducible regardless
// of worker count.
//
// With Multiplier == 1 and IncludeOriginal set, Plan emits zero configs (the
// release consists of originals only). An empty transform set with
// Multiplier > 1 is rejected with ErrNoTransforms.
func Plan(cfg Config) ([]AugmentationConfig, error) {
	if cfg.Multiplier < 1 {
		return nil, fmt.Errorf("multiplier must be >= 1, got %d", cfg.Multiplier)
	}

	perImage := cfg.Multiplier
	if cfg.IncludeOriginal {
		perImage--
	}
	if perImage == 0 {
		return nil, nil
	}

	enabled := make([]transform.Record, 0, len(cfg.Records))
	for _, r := range cfg.Records {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("%w: multiplier %d needs at least one enabled transform", ErrNoTransforms, cfg.Multiplier)
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].OrderIndex < enabled[j].OrderIndex
	})

	for i := range enabled {
		if err := enabled[i].Validate(); err != nil {
			return nil, fmt.Errorf("transform %s: %w", enabled[i].ID, err)
		}
	}

	strategy, err := GetStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	var configs []AugmentationConfig
	for _, img := range cfg.Images {
		sampling := rng.New(cfg.Seed, img.ID, "sampling")
		combos := strategy.Sample(len(enabled), perImage, sampling)

		for i, combo := range combos {
			configID := i + 1
			resolved := make([]transform.Resolved, len(combo))
			for j, idx := range combo {
				record := &enabled[idx]
				stream := rng.ForTransform(cfg.Seed, img.ID, configID, record.ID)
				resolved[j] = transform.Resolve(record, stream)
			}
			configs = append(configs, AugmentationConfig{
				ConfigID:      configID,
				SourceImageID: img.ID,
				Transforms:    resolved,
				TargetSplit:   img.Split,
			})
		}
	}

	return configs, nil
}

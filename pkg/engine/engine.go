package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/yelloji/relgen/pkg/annotation"
	"github.com/yelloji/relgen/pkg/geometry"
	"github.com/yelloji/relgen/pkg/planner"
	"github.com/yelloji/relgen/pkg/rng"
)

// Source describes one staged input image and its annotations.
type Source struct {
	// ID is the source image's database ID.
	ID string

	// Path is the staged image file location.
	Path string

	// Dataset is the owning dataset's name, used as the output filename
	// prefix to avoid collisions across merged datasets.
	Dataset string

	// Stem is the source filename without extension.
	Stem string

	// Split is the image's target split section.
	Split string

	// Annotations are the pixel-space labels for this image.
	Annotations []annotation.Annotation
}

// Options configures one engine invocation.
type Options struct {
	// OutputDir receives the augmented image file.
	OutputDir string

	// ImageFormat is the configured output format
	// (original, jpg, png, webp, bmp, tiff).
	ImageFormat string

	// Seed is the master release seed; randomized pixel effects derive
	// per-(image, config, transform) streams from it.
	Seed uint64
}

// Result is the engine output for one augmentation config: the written image
// and the annotations carried through the same geometry.
type Result struct {
	SourceImageID string                  `json:"source_image_id"`
	ConfigID      int                     `json:"config_id"`
	Dataset       string                  `json:"dataset"`
	Split         string                  `json:"split"`
	ImageName     string                  `json:"image_name"`
	ImagePath     string                  `json:"augmented_image_path"`
	Width         int                     `json:"width"`
	Height        int                     `json:"height"`
	Annotations   []annotation.Annotation `json:"updated_annotations"`
	Applied       []string                `json:"transformation_applied"`

	// DroppedAnnotations counts inputs whose transformed geometry became
	// degenerate; MalformedAnnotations counts inputs rejected before the
	// transform.
	DroppedAnnotations   int `json:"dropped_annotations"`
	MalformedAnnotations int `json:"malformed_annotations"`
}

// Apply runs one augmentation config against one source image: it decodes
// the image, applies each transform in planner order while composing the
// geometric stages into a single homography, writes the output image, and
// emits annotations mapped through that same homography, clipped to the
// final canvas.
//
// Apply is pure per call modulo the output file write, so the orchestrator
// may run it from parallel workers. Given the same (seed, config) it
// produces identical output bytes and labels.
func Apply(ctx context.Context, src Source, cfg planner.AugmentationConfig, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := LoadImage(src.Path)
	if err != nil {
		return nil, err
	}

	srcW := img.Rect.Dx()
	srcH := img.Rect.Dy()
	curW, curH := srcW, srcH

	homography := geometry.Identity()
	geometricApplied := false
	applied := make([]string, 0, len(cfg.Transforms))

	for _, step := range cfg.Transforms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stream := rng.New(opts.Seed, src.ID, strconv.Itoa(cfg.ConfigID), string(step.Type))

		if step.Geometric() {
			st, err := buildStage(step, curW, curH, stream)
			if err != nil {
				return nil, fmt.Errorf("config %d on %s: %w", cfg.ConfigID, src.ID, err)
			}
			if st.width < 1 || st.height < 1 {
				return nil, fmt.Errorf("config %d on %s: %w", cfg.ConfigID, src.ID, errCanvas(step.Type))
			}
			img = warp(img, st)
			homography = st.matrix.Mul(homography)
			curW, curH = st.width, st.height
			geometricApplied = true
		} else {
			img = applyPhotometric(img, step, stream)
		}

		applied = append(applied, string(step.Type))
	}

	kept, dropped, malformed := propagate(src.Annotations, homography, geometricApplied,
		float64(srcW), float64(srcH), float64(curW), float64(curH))

	ext := OutputExt(opts.ImageFormat, filepath.Ext(src.Path))
	name := OutputName(src.Dataset, src.Stem, cfg.ConfigID, ext)
	outPath := filepath.Join(opts.OutputDir, name)
	if err := SaveImage(img, outPath); err != nil {
		return nil, err
	}

	return &Result{
		SourceImageID:        src.ID,
		ConfigID:             cfg.ConfigID,
		Dataset:              src.Dataset,
		Split:                src.Split,
		ImageName:            name,
		ImagePath:            outPath,
		Width:                curW,
		Height:               curH,
		Annotations:          kept,
		Applied:              applied,
		DroppedAnnotations:   dropped,
		MalformedAnnotations: malformed,
	}, nil
}

// Passthrough emits the unmodified original (config 0), re-encoding only
// when the configured output format requires it. Annotations are validated
// and carried through untouched.
func Passthrough(ctx context.Context, src Source, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := LoadImage(src.Path)
	if err != nil {
		return nil, err
	}

	w := img.Rect.Dx()
	h := img.Rect.Dy()

	kept, _, malformed := propagate(src.Annotations, geometry.Identity(), false,
		float64(w), float64(h), float64(w), float64(h))

	ext := OutputExt(opts.ImageFormat, filepath.Ext(src.Path))
	name := OutputName(src.Dataset, src.Stem, 0, ext)
	outPath := filepath.Join(opts.OutputDir, name)
	if err := SaveImage(img, outPath); err != nil {
		return nil, err
	}

	return &Result{
		SourceImageID:        src.ID,
		ConfigID:             0,
		Dataset:              src.Dataset,
		Split:                src.Split,
		ImageName:            name,
		ImagePath:            outPath,
		Width:                w,
		Height:               h,
		Annotations:          kept,
		MalformedAnnotations: malformed,
	}, nil
}

// propagate maps annotations through the composed homography and clips them
// to the output canvas. When no geometric stage ran the input geometry is
// carried through byte-for-byte, so photometric-only configs cannot perturb
// labels via float round-trips.
func propagate(anns []annotation.Annotation, h geometry.Matrix, geometric bool, srcW, srcH, dstW, dstH float64) ([]annotation.Annotation, int, int) {
	kept := make([]annotation.Annotation, 0, len(anns))
	dropped := 0
	malformed := 0

	for _, ann := range anns {
		if err := ann.Validate(srcW, srcH); err != nil {
			malformed++
			continue
		}

		if !geometric {
			kept = append(kept, ann)
			continue
		}

		switch ann.Kind {
		case annotation.KindBox:
			// The envelope of the transformed corners is the new
			// axis-aligned box.
			env := transformEnvelope(ann.Box, h)
			clipped, ok := annotation.ClipBox(env, dstW, dstH)
			if !ok {
				dropped++
				continue
			}
			out := ann
			out.Box = clipped
			kept = append(kept, out)

		case annotation.KindPolygon:
			points := make([]annotation.Point, len(ann.Points))
			for i, p := range ann.Points {
				x, y := h.Apply(p.X, p.Y)
				points[i] = annotation.Point{X: x, Y: y}
			}
			clipped, ok := annotation.ClipPolygon(points, dstW, dstH)
			if !ok {
				dropped++
				continue
			}
			out := ann
			out.Points = clipped
			kept = append(kept, out)
		}
	}

	return kept, dropped, malformed
}

// transformEnvelope maps a box's four corners through h and returns their
// axis-aligned envelope.
func transformEnvelope(b annotation.Box, h geometry.Matrix) annotation.Box {
	minX, minY, maxX, maxY := h.Bounds(b.XMin, b.YMin, b.XMax, b.YMax)
	return annotation.Box{XMin: minX, YMin: minY, XMax: maxX, YMax: maxY}
}

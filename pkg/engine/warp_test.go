package engine

import (
	"image"
	"math"
	"testing"

	"github.com/yelloji/relgen/pkg/rng"
	"github.com/yelloji/relgen/pkg/transform"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(x, y)
			img.Pix[o] = uint8(x % 256)
			img.Pix[o+1] = uint8(y % 256)
			img.Pix[o+2] = 0
			img.Pix[o+3] = 255
		}
	}
	return img
}

func pixel(img *image.NRGBA, x, y int) [4]uint8 {
	o := img.PixOffset(x, y)
	return [4]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3]}
}

func TestFlipH_Exact(t *testing.T) {
	src := gradient(10, 4)
	dst := flipH(src)

	for y := 0; y < 4; y++ {
		for x := 0; x < 10; x++ {
			if pixel(dst, x, y) != pixel(src, 9-x, y) {
				t.Fatalf("flipH mismatch at (%d, %d)", x, y)
			}
		}
	}
}

func TestRot90_Exact(t *testing.T) {
	src := gradient(6, 4)
	dst := rot90(src)

	if dst.Rect.Dx() != 4 || dst.Rect.Dy() != 6 {
		t.Fatalf("rot90 dims = %dx%d", dst.Rect.Dx(), dst.Rect.Dy())
	}
	// (x, y) -> (H-1-y, x)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			if pixel(dst, 3-y, x) != pixel(src, x, y) {
				t.Fatalf("rot90 mismatch at (%d, %d)", x, y)
			}
		}
	}
}

func TestRot180_SelfInverse(t *testing.T) {
	src := gradient(7, 5)
	back := rot180(rot180(src))
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			if pixel(back, x, y) != pixel(src, x, y) {
				t.Fatalf("rot180 twice not identity at (%d, %d)", x, y)
			}
		}
	}
}

func TestBuildStage_RotateExpandsCanvas(t *testing.T) {
	st, err := buildStage(transform.Resolved{
		Type:   transform.KindRotate,
		Params: map[string]any{"angle": 45.0},
	}, 100, 100, rng.New(1, "t"))
	if err != nil {
		t.Fatal(err)
	}
	want := int(math.Ceil(100 * math.Sqrt2))
	if st.width != want || st.height != want {
		t.Errorf("45° canvas = %dx%d, want %dx%d", st.width, st.height, want, want)
	}

	// The source center must map to the new canvas center.
	cx, cy := st.matrix.Apply(50, 50)
	if math.Abs(cx-float64(st.width)/2) > 1 || math.Abs(cy-float64(st.height)/2) > 1 {
		t.Errorf("center mapped to (%f, %f)", cx, cy)
	}
}

func TestBuildStage_ZoomKeepsCanvas(t *testing.T) {
	st, err := buildStage(transform.Resolved{
		Type:   transform.KindRandomZoom,
		Params: map[string]any{"factor": 1.5},
	}, 200, 100, rng.New(1, "t"))
	if err != nil {
		t.Fatal(err)
	}
	if st.width != 200 || st.height != 100 {
		t.Errorf("zoom changed canvas to %dx%d", st.width, st.height)
	}
	// Center fixed point.
	cx, cy := st.matrix.Apply(100, 50)
	if math.Abs(cx-100) > 1e-9 || math.Abs(cy-50) > 1e-9 {
		t.Errorf("zoom moved center to (%f, %f)", cx, cy)
	}
}

func TestBuildStage_PerspectiveDeterministic(t *testing.T) {
	step := transform.Resolved{Type: transform.KindPerspective, Params: map[string]any{"distortion": 0.2}}
	a, err := buildStage(step, 100, 100, rng.New(9, "img", "1", "perspective_warp"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := buildStage(step, 100, 100, rng.New(9, "img", "1", "perspective_warp"))
	if err != nil {
		t.Fatal(err)
	}
	if a.matrix != b.matrix {
		t.Error("same stream produced different perspective matrices")
	}

	c, err := buildStage(step, 100, 100, rng.New(9, "img", "2", "perspective_warp"))
	if err != nil {
		t.Fatal(err)
	}
	if a.matrix == c.matrix {
		t.Error("different streams produced identical perspective matrices")
	}
}

func TestWarp_PerspectiveSamplerBounds(t *testing.T) {
	src := gradient(50, 50)
	st, err := buildStage(transform.Resolved{
		Type:   transform.KindPerspective,
		Params: map[string]any{"distortion": 0.25},
	}, 50, 50, rng.New(3, "bounds"))
	if err != nil {
		t.Fatal(err)
	}

	dst := warp(src, st)
	if dst.Rect.Dx() != 50 || dst.Rect.Dy() != 50 {
		t.Fatalf("perspective changed canvas to %dx%d", dst.Rect.Dx(), dst.Rect.Dy())
	}
}

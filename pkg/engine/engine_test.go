package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/yelloji/relgen/pkg/annotation"
	"github.com/yelloji/relgen/pkg/planner"
	"github.com/yelloji/relgen/pkg/transform"
)

// writeTestImage saves a w×h gradient PNG and returns its path.
func writeTestImage(t *testing.T, dir string, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(x, y)
			img.Pix[o] = uint8(x * 255 / w)
			img.Pix[o+1] = uint8(y * 255 / h)
			img.Pix[o+2] = uint8((x + y) % 256)
			img.Pix[o+3] = 255
		}
	}
	path := filepath.Join(dir, name)
	if err := SaveImage(img, path); err != nil {
		t.Fatalf("writing test image: %v", err)
	}
	return path
}

func step(kind transform.Kind, params map[string]any) transform.Resolved {
	return transform.Resolved{Type: kind, Params: params}
}

func config(id int, steps ...transform.Resolved) planner.AugmentationConfig {
	return planner.AugmentationConfig{ConfigID: id, SourceImageID: "img-1", Transforms: steps, TargetSplit: "train"}
}

func source(t *testing.T, dir string, w, h int, anns ...annotation.Annotation) Source {
	t.Helper()
	path := writeTestImage(t, dir, "src.png", w, h)
	return Source{ID: "img-1", Path: path, Dataset: "ds", Stem: "src", Split: "train", Annotations: anns}
}

func TestApply_FlipHorizontal_Polygon(t *testing.T) {
	dir := t.TempDir()
	poly := annotation.NewPolygon([]annotation.Point{{X: 10, Y: 10}, {X: 100, Y: 10}, {X: 100, Y: 80}, {X: 10, Y: 80}}, 0, "car", 1.0)
	src := source(t, dir, 400, 300, poly)

	res, err := Apply(context.Background(), src, config(1, step(transform.KindFlip, map[string]any{"axis": "horizontal"})), Options{OutputDir: dir, ImageFormat: "png"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if res.Width != 400 || res.Height != 300 {
		t.Errorf("flip changed canvas to %dx%d", res.Width, res.Height)
	}
	if len(res.Annotations) != 1 {
		t.Fatalf("got %d annotations, want 1", len(res.Annotations))
	}

	want := []annotation.Point{{X: 390, Y: 10}, {X: 300, Y: 10}, {X: 300, Y: 80}, {X: 390, Y: 80}}
	got := res.Annotations[0].Points
	if len(got) != 4 {
		t.Fatalf("polygon has %d points", len(got))
	}
	for i := range want {
		if math.Abs(got[i].X-want[i].X) > 1e-6 || math.Abs(got[i].Y-want[i].Y) > 1e-6 {
			t.Errorf("point %d = (%f, %f), want (%f, %f)", i, got[i].X, got[i].Y, want[i].X, want[i].Y)
		}
	}
}

func TestApply_Rotate90_Box(t *testing.T) {
	dir := t.TempDir()
	box := annotation.NewBox(100, 50, 300, 250, 0, "car", 1.0)
	src := source(t, dir, 640, 480, box)

	res, err := Apply(context.Background(), src, config(1, step(transform.KindRotate, map[string]any{"angle": 90.0})), Options{OutputDir: dir, ImageFormat: "png"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if res.Width != 480 || res.Height != 640 {
		t.Fatalf("rotated canvas = %dx%d, want 480x640", res.Width, res.Height)
	}

	got := res.Annotations[0].Box
	want := annotation.Box{XMin: 230, YMin: 100, XMax: 430, YMax: 300}
	if math.Abs(got.XMin-want.XMin) > 1e-6 || math.Abs(got.YMin-want.YMin) > 1e-6 ||
		math.Abs(got.XMax-want.XMax) > 1e-6 || math.Abs(got.YMax-want.YMax) > 1e-6 {
		t.Errorf("rotated box = %+v, want %+v", got, want)
	}

	// The written image must actually have the rotated dimensions.
	out, err := LoadImage(res.ImagePath)
	if err != nil {
		t.Fatalf("reloading output: %v", err)
	}
	if out.Rect.Dx() != 480 || out.Rect.Dy() != 640 {
		t.Errorf("on-disk image is %dx%d", out.Rect.Dx(), out.Rect.Dy())
	}
}

func TestApply_PhotometricOnly_GeometryUntouched(t *testing.T) {
	dir := t.TempDir()
	box := annotation.NewBox(50.25, 60.5, 200.75, 180.125, 2, "person", 0.8)
	poly := annotation.NewPolygon([]annotation.Point{{X: 10.1, Y: 10.2}, {X: 100.3, Y: 10.4}, {X: 55.5, Y: 80.6}}, 1, "bike", 1.0)
	src := source(t, dir, 300, 200, box, poly)

	res, err := Apply(context.Background(), src, config(1,
		step(transform.KindBrightness, map[string]any{"percent": 30.0}),
		step(transform.KindBlur, map[string]any{"radius": 2.0}),
	), Options{OutputDir: dir, ImageFormat: "png"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if len(res.Annotations) != 2 {
		t.Fatalf("got %d annotations, want 2", len(res.Annotations))
	}
	if res.Annotations[0].Box != box.Box {
		t.Errorf("photometric config changed box: %+v", res.Annotations[0].Box)
	}
	for i, p := range res.Annotations[1].Points {
		if p != poly.Points[i] {
			t.Errorf("photometric config changed polygon point %d: %+v", i, p)
		}
	}
}

func TestApply_DoubleRotate180_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	box := annotation.NewBox(100, 50, 300, 250, 0, "car", 1.0)
	src := source(t, dir, 640, 480, box)

	res, err := Apply(context.Background(), src, config(1,
		step(transform.KindRotate, map[string]any{"angle": 180.0}),
		step(transform.KindRotate, map[string]any{"angle": 180.0}),
	), Options{OutputDir: dir, ImageFormat: "png"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	got := res.Annotations[0].Box
	if math.Abs(got.XMin-100) > 1 || math.Abs(got.YMin-50) > 1 ||
		math.Abs(got.XMax-300) > 1 || math.Abs(got.YMax-250) > 1 {
		t.Errorf("double 180° drifted: %+v", got)
	}
}

func TestApply_ResizeUsesOutputDims(t *testing.T) {
	dir := t.TempDir()
	box := annotation.NewBox(50, 60, 200, 180, 0, "car", 1.0)
	src := source(t, dir, 300, 200, box)

	res, err := Apply(context.Background(), src, config(1,
		step(transform.KindResize, map[string]any{"width": 600.0, "height": 100.0, "interpolation": "bilinear"}),
	), Options{OutputDir: dir, ImageFormat: "png"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if res.Width != 600 || res.Height != 100 {
		t.Fatalf("resized canvas = %dx%d", res.Width, res.Height)
	}
	got := res.Annotations[0].Box
	want := annotation.Box{XMin: 100, YMin: 30, XMax: 400, YMax: 90}
	if math.Abs(got.XMin-want.XMin) > 1e-6 || math.Abs(got.YMax-want.YMax) > 1e-6 {
		t.Errorf("scaled box = %+v, want %+v", got, want)
	}
}

func TestApply_CropDropsOutsideAnnotations(t *testing.T) {
	dir := t.TempDir()
	corner := annotation.NewBox(0, 0, 20, 20, 0, "car", 1.0)
	center := annotation.NewBox(140, 90, 160, 110, 1, "person", 1.0)
	src := source(t, dir, 300, 200, corner, center)

	res, err := Apply(context.Background(), src, config(1,
		step(transform.KindCrop, map[string]any{"keep_fraction": 0.5}),
	), Options{OutputDir: dir, ImageFormat: "png"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if res.Width != 150 || res.Height != 100 {
		t.Fatalf("cropped canvas = %dx%d, want 150x100", res.Width, res.Height)
	}
	if len(res.Annotations) != 1 {
		t.Fatalf("got %d annotations, want 1 (corner box dropped)", len(res.Annotations))
	}
	if res.DroppedAnnotations != 1 {
		t.Errorf("dropped count = %d, want 1", res.DroppedAnnotations)
	}
	if res.Annotations[0].ClassName != "person" {
		t.Errorf("kept wrong annotation: %s", res.Annotations[0].ClassName)
	}
}

func TestApply_MalformedAnnotationSkipped(t *testing.T) {
	dir := t.TempDir()
	bad := annotation.NewBox(200, 50, 100, 250, 0, "car", 1.0) // inverted
	good := annotation.NewBox(10, 10, 50, 50, 0, "car", 1.0)
	src := source(t, dir, 300, 200, bad, good)

	res, err := Apply(context.Background(), src, config(1, step(transform.KindFlip, map[string]any{"axis": "horizontal"})), Options{OutputDir: dir, ImageFormat: "png"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if res.MalformedAnnotations != 1 || len(res.Annotations) != 1 {
		t.Errorf("malformed=%d kept=%d, want 1/1", res.MalformedAnnotations, len(res.Annotations))
	}
}

func TestApply_EmptyAnnotationsStillWritesImage(t *testing.T) {
	dir := t.TempDir()
	src := source(t, dir, 100, 100)

	res, err := Apply(context.Background(), src, config(1, step(transform.KindFlip, map[string]any{"axis": "vertical"})), Options{OutputDir: dir, ImageFormat: "png"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if _, err := os.Stat(res.ImagePath); err != nil {
		t.Errorf("output image missing: %v", err)
	}
	if len(res.Annotations) != 0 {
		t.Errorf("annotations appeared from nowhere: %d", len(res.Annotations))
	}
}

func TestApply_Deterministic(t *testing.T) {
	dir := t.TempDir()
	box := annotation.NewBox(20, 20, 80, 80, 0, "car", 1.0)
	src := source(t, dir, 200, 200, box)

	cfg := config(2,
		step(transform.KindPerspective, map[string]any{"distortion": 0.2}),
		step(transform.KindNoise, map[string]any{"strength": 10.0}),
	)

	run := func(sub string) (*Result, []byte) {
		out := filepath.Join(dir, sub)
		if err := os.MkdirAll(out, 0o755); err != nil {
			t.Fatal(err)
		}
		res, err := Apply(context.Background(), src, cfg, Options{OutputDir: out, ImageFormat: "png", Seed: 1234})
		if err != nil {
			t.Fatalf("Apply() error: %v", err)
		}
		data, err := os.ReadFile(res.ImagePath)
		if err != nil {
			t.Fatal(err)
		}
		return res, data
	}

	resA, bytesA := run("a")
	resB, bytesB := run("b")

	if !bytes.Equal(bytesA, bytesB) {
		t.Error("same seed produced different image bytes")
	}
	if len(resA.Annotations) != len(resB.Annotations) {
		t.Fatal("same seed produced different annotation counts")
	}
	for i := range resA.Annotations {
		if resA.Annotations[i].Box != resB.Annotations[i].Box {
			t.Errorf("annotation %d differs between runs", i)
		}
	}
}

func TestApply_MissingSource(t *testing.T) {
	src := Source{ID: "img-x", Path: "/nonexistent/file.png", Dataset: "ds", Stem: "file", Split: "train"}
	_, err := Apply(context.Background(), src, config(1, step(transform.KindFlip, nil)), Options{OutputDir: t.TempDir(), ImageFormat: "png"})
	if !errors.Is(err, ErrSourceMissing) {
		t.Errorf("error = %v, want ErrSourceMissing", err)
	}
}

func TestApply_Cancelled(t *testing.T) {
	dir := t.TempDir()
	src := source(t, dir, 50, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Apply(ctx, src, config(1), Options{OutputDir: dir}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestPassthrough(t *testing.T) {
	dir := t.TempDir()
	box := annotation.NewBox(10, 10, 40, 40, 0, "car", 1.0)
	src := source(t, dir, 120, 90, box)

	res, err := Passthrough(context.Background(), src, Options{OutputDir: dir, ImageFormat: "original"})
	if err != nil {
		t.Fatalf("Passthrough() error: %v", err)
	}
	if res.ConfigID != 0 {
		t.Errorf("passthrough config id = %d", res.ConfigID)
	}
	if res.ImageName != "ds_src.png" {
		t.Errorf("passthrough name = %q", res.ImageName)
	}
	if res.Width != 120 || res.Height != 90 {
		t.Errorf("passthrough dims = %dx%d", res.Width, res.Height)
	}
	if len(res.Annotations) != 1 || res.Annotations[0].Box != box.Box {
		t.Error("passthrough altered annotations")
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName("roads", "frame_0042", 3, "jpg"); got != "roads_frame_0042__cfg3.jpg" {
		t.Errorf("OutputName = %q", got)
	}
	if got := OutputName("roads", "frame_0042", 0, "png"); got != "roads_frame_0042.png" {
		t.Errorf("original OutputName = %q", got)
	}
}

func TestOutputExt(t *testing.T) {
	tests := []struct {
		format, srcExt, want string
	}{
		{"original", ".jpg", "jpg"},
		{"original", ".webp", "png"},
		{"jpg", ".png", "jpg"},
		{"webp", ".png", "png"},
		{"tiff", ".jpg", "tiff"},
	}
	for _, tt := range tests {
		if got := OutputExt(tt.format, tt.srcExt); got != tt.want {
			t.Errorf("OutputExt(%q, %q) = %q, want %q", tt.format, tt.srcExt, got, tt.want)
		}
	}
}

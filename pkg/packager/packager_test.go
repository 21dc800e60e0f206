package packager

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yelloji/relgen/pkg/annotation"
	"github.com/yelloji/relgen/pkg/export"
)

func testItems() []export.Item {
	return []export.Item{
		{
			Image: export.Image{Name: "ds_a.jpg", Width: 300, Height: 200, Split: "train", Dataset: "ds", SourceID: "img-1", ConfigID: 0},
			Annotations: []annotation.Annotation{
				annotation.NewBox(50, 60, 200, 180, 0, "car", 1.0),
			},
		},
		{
			Image: export.Image{Name: "ds_a__cfg1.jpg", Width: 300, Height: 200, Split: "train", Dataset: "ds", SourceID: "img-1", ConfigID: 1},
			Annotations: []annotation.Annotation{
				annotation.NewPolygon([]annotation.Point{{X: 10, Y: 10}, {X: 90, Y: 10}, {X: 50, Y: 70}}, 1, "person", 1.0),
			},
		},
		{
			Image: export.Image{Name: "ds_b.jpg", Width: 100, Height: 100, Split: "val", Dataset: "ds", SourceID: "img-2", ConfigID: 0},
		},
	}
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats(testItems(), []string{"car", "person"})

	if s.TotalImages != 3 || s.TrainImages != 2 || s.ValImages != 1 || s.TestImages != 0 {
		t.Errorf("split counts: %+v", s)
	}
	if s.OriginalImages != 2 || s.AugmentedImages != 1 {
		t.Errorf("original/augmented: %d/%d", s.OriginalImages, s.AugmentedImages)
	}
	if s.ClassCount != 2 {
		t.Errorf("class count = %d", s.ClassCount)
	}
	if s.PerClass["car"] != 1 || s.PerClass["person"] != 1 {
		t.Errorf("per class: %v", s.PerClass)
	}
	if s.PerDataset["ds"] != 3 {
		t.Errorf("per dataset: %v", s.PerDataset)
	}
}

func TestWriteMetadata(t *testing.T) {
	root := t.TempDir()
	items := testItems()
	table := export.BuildClassTable(items)
	table.Remap(items)

	meta := Metadata{
		ReleaseID:    "rel-1",
		ReleaseName:  "nightly",
		CreatedAt:    "2024-05-01T00:00:00Z",
		ExportFormat: "yolo_detection",
		TaskType:     "object_detection",
		ImageFormat:  "jpg",
		Multiplier:   2,
		Classes:      table.Names(),
		Stats:        ComputeStats(items, table.Names()),
	}

	if err := WriteMetadata(root, meta, items, table.Classes()); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "metadata", "release_config.json"))
	if err != nil {
		t.Fatal(err)
	}
	var back Metadata
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("invalid release_config.json: %v", err)
	}
	if back.ReleaseID != "rel-1" || back.Stats.TotalImages != 3 {
		t.Errorf("roundtrip = %+v", back)
	}

	data, err = os.ReadFile(filepath.Join(root, "metadata", "annotations.json"))
	if err != nil {
		t.Fatal(err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("invalid annotations.json: %v", err)
	}
	if len(snap.Images) != 3 || len(snap.Annotations) != 2 || len(snap.Classes) != 2 {
		t.Errorf("snapshot counts: %d images, %d annotations, %d classes",
			len(snap.Images), len(snap.Annotations), len(snap.Classes))
	}
	if snap.Annotations[0].BBox == nil {
		t.Error("bbox annotation lost its geometry")
	}
	if len(snap.Annotations[1].Points) != 3 {
		t.Error("polygon annotation lost its points")
	}
}

func TestBuildZip_RoundTrip(t *testing.T) {
	staging := t.TempDir()
	for _, p := range []string{
		"images/train/a.jpg",
		"labels/train/a.txt",
		"metadata/release_config.json",
		"data.yaml",
		"README.md",
	} {
		full := filepath.Join(staging, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("content of "+p), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	zipPath := filepath.Join(t.TempDir(), "release.zip")
	if err := BuildZip(staging, zipPath); err != nil {
		t.Fatalf("BuildZip: %v", err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	names := map[string]bool{}
	for _, f := range r.File {
		names[f.Name] = true
		if f.Method != zip.Deflate {
			t.Errorf("entry %s not DEFLATE-compressed", f.Name)
		}
	}
	for _, want := range []string{"images/train/a.jpg", "labels/train/a.txt", "metadata/release_config.json", "data.yaml", "README.md"} {
		if !names[want] {
			t.Errorf("zip missing entry %s", want)
		}
	}
}

func TestZipPath(t *testing.T) {
	got := ZipPath("/data", "proj", "v1 release", "coco")
	want := filepath.Join("/data", "projects", "proj", "releases", "v1_release_coco.zip")
	if got != want {
		t.Errorf("ZipPath = %q, want %q", got, want)
	}
}

func TestCleanup_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staging")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Cleanup(dir); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := Cleanup(dir); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("staging dir survived cleanup")
	}
}

func TestWriteREADME(t *testing.T) {
	root := t.TempDir()
	meta := Metadata{
		ReleaseName:  "nightly",
		CreatedAt:    "2024-05-01",
		ExportFormat: "yolo_detection",
		TaskType:     "object_detection",
		Classes:      []string{"car", "person"},
		Stats:        Stats{TotalImages: 3, TrainImages: 2, ValImages: 1},
	}
	if err := WriteREADME(root, meta); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, frag := range []string{"# nightly", "data.yaml", "- 0: car", "| 3 | 2 | 1 |"} {
		if !strings.Contains(s, frag) {
			t.Errorf("README missing %q", frag)
		}
	}
}

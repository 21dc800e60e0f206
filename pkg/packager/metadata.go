package packager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yelloji/relgen/pkg/annotation"
	"github.com/yelloji/relgen/pkg/export"
	"github.com/yelloji/relgen/pkg/transform"
)

// Stats is the dataset statistics block of release_config.json. The counts
// are fixed at packaging time and stay authoritative for the release even as
// the live datasets change.
type Stats struct {
	TotalImages     int            `json:"total_images"`
	TrainImages     int            `json:"train_images"`
	ValImages       int            `json:"val_images"`
	TestImages      int            `json:"test_images"`
	OriginalImages  int            `json:"original_images"`
	AugmentedImages int            `json:"augmented_images"`
	ClassCount      int            `json:"class_count"`
	PerClass        map[string]int `json:"per_class"`
	PerDataset      map[string]int `json:"per_dataset"`
}

// Warnings summarizes per-item failures that were recorded and skipped.
type Warnings struct {
	SkippedImages        []string `json:"skipped_images,omitempty"`
	FailedConfigs        []string `json:"failed_configs,omitempty"`
	DroppedAnnotations   int      `json:"dropped_annotations,omitempty"`
	MalformedAnnotations int      `json:"malformed_annotations,omitempty"`
}

// Metadata is the release_config.json document.
type Metadata struct {
	ReleaseID              string             `json:"release_id"`
	ReleaseName            string             `json:"release_name"`
	Description            string             `json:"description,omitempty"`
	CreatedAt              string             `json:"created_at"`
	ExportFormat           string             `json:"export_format"`
	TaskType               string             `json:"task_type"`
	ImageFormat            string             `json:"image_format"`
	Multiplier             int                `json:"images_per_original"`
	IncludeOriginal        bool               `json:"include_original"`
	SamplingStrategy       string             `json:"sampling_strategy"`
	PreserveOriginalSplits bool               `json:"preserve_original_splits"`
	Seed                   uint64             `json:"seed"`
	Classes                []string           `json:"classes"`
	Stats                  Stats              `json:"dataset_stats"`
	Transforms             []transform.Record `json:"transformations"`
	DatasetIDs             []string           `json:"source_dataset_ids"`
	Warnings               Warnings           `json:"warnings"`
}

// ComputeStats derives the statistics block from the emitted items.
func ComputeStats(items []export.Item, classNames []string) Stats {
	s := Stats{
		PerClass:   map[string]int{},
		PerDataset: map[string]int{},
		ClassCount: len(classNames),
	}
	for _, name := range classNames {
		s.PerClass[name] = 0
	}
	for _, it := range items {
		s.TotalImages++
		switch it.Image.Split {
		case "train":
			s.TrainImages++
		case "val":
			s.ValImages++
		case "test":
			s.TestImages++
		}
		if it.Image.ConfigID == 0 {
			s.OriginalImages++
		} else {
			s.AugmentedImages++
		}
		s.PerDataset[it.Image.Dataset]++
		for _, ann := range it.Annotations {
			s.PerClass[ann.ClassName]++
		}
	}
	return s
}

// snapshot structures for metadata/annotations.json, a normalized dump
// suitable for re-ingesting the release.

type snapshotImage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FilePath string `json:"file_path"`
	Split    string `json:"split"`
}

type snapshotAnnotation struct {
	ID         string             `json:"id"`
	ImageID    string             `json:"image_id"`
	ClassID    int                `json:"class_id"`
	ClassName  string             `json:"class_name"`
	Type       string             `json:"type"`
	BBox       *annotation.Box    `json:"bbox,omitempty"`
	Points     []annotation.Point `json:"points,omitempty"`
	Confidence float64            `json:"confidence"`
}

type snapshot struct {
	Images      []snapshotImage      `json:"images"`
	Annotations []snapshotAnnotation `json:"annotations"`
	Classes     []export.Class       `json:"classes"`
}

// WriteMetadata writes metadata/release_config.json and
// metadata/annotations.json under the staging root.
func WriteMetadata(root string, meta Metadata, items []export.Item, classes []export.Class) error {
	dir := filepath.Join(root, "metadata")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating metadata dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, "release_config.json"), meta); err != nil {
		return err
	}

	snap := snapshot{
		Images:      make([]snapshotImage, 0, len(items)),
		Annotations: []snapshotAnnotation{},
		Classes:     classes,
	}
	for _, it := range items {
		imageID := fmt.Sprintf("%s#%d", it.Image.SourceID, it.Image.ConfigID)
		snap.Images = append(snap.Images, snapshotImage{
			ID:       imageID,
			Name:     it.Image.Name,
			Width:    it.Image.Width,
			Height:   it.Image.Height,
			FilePath: filepath.Join("images", it.Image.Split, it.Image.Name),
			Split:    it.Image.Split,
		})
		for _, ann := range it.Annotations {
			entry := snapshotAnnotation{
				ID:         uuid.NewString(),
				ImageID:    imageID,
				ClassID:    ann.ClassID,
				ClassName:  ann.ClassName,
				Type:       string(ann.Kind),
				Confidence: ann.Confidence,
			}
			if ann.Kind == annotation.KindBox {
				box := ann.Box
				entry.BBox = &box
			} else {
				entry.Points = ann.Points
			}
			snap.Annotations = append(snap.Annotations, entry)
		}
	}

	return writeJSON(filepath.Join(dir, "annotations.json"), snap)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

package export

import (
	"errors"
	"fmt"

	"github.com/yelloji/relgen/pkg/annotation"
)

// ErrExportFailed wraps emitter failures for a specific image; the
// orchestrator counts and skips them.
var ErrExportFailed = errors.New("export failed")

// Format names an export format.
type Format string

const (
	FormatAuto      Format = "auto"
	FormatYOLODet   Format = "yolo_detection"
	FormatYOLOSeg   Format = "yolo_segmentation"
	FormatCOCO      Format = "coco"
	FormatPascalVOC Format = "pascal_voc"
	FormatCSV       Format = "csv"
)

// TaskType is the annotation task the release targets.
type TaskType string

const (
	TaskDetection    TaskType = "object_detection"
	TaskSegmentation TaskType = "segmentation"
)

// Image describes one emitted image file, with the dimensions recorded from
// the engine output. All normalization divides by these dimensions, never
// the source image's.
type Image struct {
	Name     string `json:"name"`
	Path     string `json:"file_path"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Split    string `json:"split"`
	Dataset  string `json:"dataset"`
	SourceID string `json:"source_id"`
	ConfigID int    `json:"config_id"`
}

// Item pairs an emitted image with its transformed annotations.
type Item struct {
	Image       Image
	Annotations []annotation.Annotation
}

// Select resolves the requested format. "auto" picks by task and annotation
// shapes:
//   - segmentation with polygons     -> yolo_segmentation
//   - segmentation with only bboxes  -> coco
//   - detection with only bboxes     -> yolo_detection
//   - detection with polygons        -> coco
func Select(requested Format, task TaskType, hasPolygons bool) Format {
	if requested != FormatAuto && requested != "" {
		return requested
	}
	switch {
	case task == TaskSegmentation && hasPolygons:
		return FormatYOLOSeg
	case task == TaskSegmentation:
		return FormatCOCO
	case task == TaskDetection && !hasPolygons:
		return FormatYOLODet
	default:
		return FormatCOCO
	}
}

// HasPolygons reports whether any item carries polygon geometry.
func HasPolygons(items []Item) bool {
	for _, it := range items {
		for _, ann := range it.Annotations {
			if ann.Kind == annotation.KindPolygon {
				return true
			}
		}
	}
	return false
}

// Write emits labels for every item under root in the given format.
// Images are already on disk (the engine writes them); Write only produces
// label files and format metadata such as data.yaml.
func Write(root string, format Format, items []Item, table *ClassTable) error {
	switch format {
	case FormatYOLODet:
		if err := WriteYOLODetection(root, items); err != nil {
			return err
		}
		return WriteDataYAML(root, table)
	case FormatYOLOSeg:
		if err := WriteYOLOSegmentation(root, items); err != nil {
			return err
		}
		return WriteDataYAML(root, table)
	case FormatCOCO:
		return WriteCOCO(root, items, table)
	case FormatPascalVOC:
		return WritePascalVOC(root, items)
	case FormatCSV:
		return WriteCSV(root, items)
	default:
		return fmt.Errorf("%w: unknown format %q", ErrExportFailed, format)
	}
}

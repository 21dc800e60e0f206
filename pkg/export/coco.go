package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yelloji/relgen/pkg/annotation"
)

// COCO JSON structures, following the COCO object detection specification.

type cocoDataset struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoAnnotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	BBox         [4]float64  `json:"bbox"` // [x, y, w, h] in pixels
	Area         float64     `json:"area"`
	Segmentation [][]float64 `json:"segmentation,omitempty"`
	IsCrowd      int         `json:"iscrowd"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// WriteCOCO writes a single annotations.json at the release root. Image and
// annotation IDs are assigned deterministically in item order; category IDs
// come from the unified class table. BBoxes are pixel [x, y, w, h];
// polygons additionally carry a flattened segmentation list.
func WriteCOCO(root string, items []Item, table *ClassTable) error {
	ds := cocoDataset{
		Images:      make([]cocoImage, 0, len(items)),
		Annotations: []cocoAnnotation{},
		Categories:  make([]cocoCategory, 0, table.Len()),
	}

	for _, c := range table.Classes() {
		ds.Categories = append(ds.Categories, cocoCategory{ID: c.ID, Name: c.Name})
	}

	annID := 1
	for i, it := range items {
		imageID := i + 1
		ds.Images = append(ds.Images, cocoImage{
			ID:       imageID,
			FileName: filepath.Join("images", it.Image.Split, it.Image.Name),
			Width:    it.Image.Width,
			Height:   it.Image.Height,
		})

		for _, ann := range it.Annotations {
			box := ann.Envelope()
			entry := cocoAnnotation{
				ID:         annID,
				ImageID:    imageID,
				CategoryID: ann.ClassID,
				BBox:       [4]float64{box.XMin, box.YMin, box.Width(), box.Height()},
				Area:       box.Area(),
			}
			if ann.Kind == annotation.KindPolygon {
				seg := make([]float64, 0, len(ann.Points)*2)
				for _, p := range ann.Points {
					seg = append(seg, p.X, p.Y)
				}
				entry.Segmentation = [][]float64{seg}
				entry.Area = annotation.PolygonArea(ann.Points)
			}
			ds.Annotations = append(ds.Annotations, entry)
			annID++
		}
	}

	data, err := json.MarshalIndent(&ds, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling coco: %v", ErrExportFailed, err)
	}
	path := filepath.Join(root, "annotations.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// labelPath returns labels/{split}/{stem}{ext} for an item.
func labelPath(root string, img Image, ext string) string {
	stem := strings.TrimSuffix(img.Name, filepath.Ext(img.Name))
	return filepath.Join(root, "labels", img.Split, stem+ext)
}

// coord formats a normalized coordinate with fixed precision.
func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteYOLODetection writes one .txt per image with lines
// "class_id cx cy w h", all normalized to [0, 1] by the emitted image's
// dimensions. Polygons export their axis-aligned envelope. Every image gets
// a label file, empty when no annotations survived.
func WriteYOLODetection(root string, items []Item) error {
	for _, it := range items {
		w := float64(it.Image.Width)
		h := float64(it.Image.Height)

		var b strings.Builder
		for _, ann := range it.Annotations {
			box := ann.Envelope()
			cx := (box.XMin + box.XMax) / 2 / w
			cy := (box.YMin + box.YMax) / 2 / h
			bw := box.Width() / w
			bh := box.Height() / h
			if bw <= 0 || bh <= 0 {
				continue
			}
			fmt.Fprintf(&b, "%d %s %s %s %s\n", ann.ClassID, coord(cx), coord(cy), coord(bw), coord(bh))
		}

		if err := writeLabel(labelPath(root, it.Image, ".txt"), b.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteYOLOSegmentation writes one .txt per image with lines
// "class_id x1 y1 x2 y2 …", polygon coordinates normalized to [0, 1] by the
// emitted image's dimensions. Bbox-only annotations emit their four corners.
func WriteYOLOSegmentation(root string, items []Item) error {
	for _, it := range items {
		w := float64(it.Image.Width)
		h := float64(it.Image.Height)

		var b strings.Builder
		for _, ann := range it.Annotations {
			poly := ann.AsPolygon()
			if len(poly.Points) < 3 {
				continue
			}
			b.WriteString(strconv.Itoa(ann.ClassID))
			for _, p := range poly.Points {
				b.WriteByte(' ')
				b.WriteString(coord(p.X / w))
				b.WriteByte(' ')
				b.WriteString(coord(p.Y / h))
			}
			b.WriteByte('\n')
		}

		if err := writeLabel(labelPath(root, it.Image, ".txt"), b.String()); err != nil {
			return err
		}
	}
	return nil
}

// dataYAML is the YOLO dataset descriptor.
type dataYAML struct {
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	Test  string   `yaml:"test"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// WriteDataYAML writes data.yaml at the release root for YOLO formats.
func WriteDataYAML(root string, table *ClassTable) error {
	doc := dataYAML{
		Train: "./images/train",
		Val:   "./images/val",
		Test:  "./images/test",
		NC:    table.Len(),
		Names: table.Names(),
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("%w: marshaling data.yaml: %v", ErrExportFailed, err)
	}
	return writeLabel(filepath.Join(root, "data.yaml"), string(data))
}

// writeLabel writes a label file, creating parent directories.
func writeLabel(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}

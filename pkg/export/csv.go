package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yelloji/relgen/pkg/annotation"
)

// WriteCSV writes a single annotations.csv at the release root with one row
// per annotation in pixel coordinates. Polygon rows carry the flattened
// vertex list in the points column; bbox rows leave it empty.
func WriteCSV(root string, items []Item) error {
	path := filepath.Join(root, "annotations.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"image", "class_name", "class_id", "type", "x", "y", "w", "h", "points"}); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	px := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

	for _, it := range items {
		for _, ann := range it.Annotations {
			box := ann.Envelope()
			points := ""
			if ann.Kind == annotation.KindPolygon {
				var b strings.Builder
				for i, p := range ann.Points {
					if i > 0 {
						b.WriteByte(';')
					}
					b.WriteString(px(p.X))
					b.WriteByte(',')
					b.WriteString(px(p.Y))
				}
				points = b.String()
			}
			row := []string{
				filepath.Join("images", it.Image.Split, it.Image.Name),
				ann.ClassName,
				strconv.Itoa(ann.ClassID),
				string(ann.Kind),
				px(box.XMin),
				px(box.YMin),
				px(box.Width()),
				px(box.Height()),
				points,
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("%w: %v", ErrExportFailed, err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}

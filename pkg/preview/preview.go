package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/yelloji/relgen/pkg/annotation"
)

// Item is one emitted image to render an overlay for.
type Item struct {
	Name        string
	Split       string
	Width       int
	Height      int
	Annotations []annotation.Annotation
}

// palette holds the class-stable stroke colors. Colors assign by class ID
// modulo the palette size, so the same class renders identically across
// every preview in a release.
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080",
}

func classColor(classID int) string {
	if classID < 0 {
		classID = 0
	}
	return palette[classID%len(palette)]
}

// WriteOverlays renders annotation-overlay SVGs under dir/{split}/{stem}.svg,
// capped at max items (0 means no cap). Overlays draw the image extent as a
// neutral canvas with each annotation's geometry and class label on top;
// they ship in the bundle's metadata tree for release QA.
func WriteOverlays(dir string, items []Item, max int) error {
	if max > 0 && len(items) > max {
		items = items[:max]
	}

	for _, it := range items {
		if it.Width < 1 || it.Height < 1 {
			continue
		}
		if err := writeOverlay(dir, it); err != nil {
			return err
		}
	}
	return nil
}

func writeOverlay(dir string, it Item) error {
	outDir := filepath.Join(dir, it.Split)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating preview dir: %w", err)
	}

	stem := strings.TrimSuffix(it.Name, filepath.Ext(it.Name))
	f, err := os.Create(filepath.Join(outDir, stem+".svg"))
	if err != nil {
		return fmt.Errorf("creating preview: %w", err)
	}
	defer f.Close()

	canvas := svg.New(f)
	canvas.Start(it.Width, it.Height)
	canvas.Rect(0, 0, it.Width, it.Height, "fill:#1e1e1e")

	for _, ann := range it.Annotations {
		color := classColor(ann.ClassID)
		style := fmt.Sprintf("fill:%s;fill-opacity:0.15;stroke:%s;stroke-width:2", color, color)

		switch ann.Kind {
		case annotation.KindBox:
			b := ann.Box
			canvas.Rect(int(b.XMin), int(b.YMin), int(b.Width()), int(b.Height()), style)
			canvas.Text(int(b.XMin)+3, int(b.YMin)+14, ann.ClassName,
				fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", color))
		case annotation.KindPolygon:
			xs := make([]int, len(ann.Points))
			ys := make([]int, len(ann.Points))
			for i, p := range ann.Points {
				xs[i] = int(p.X)
				ys[i] = int(p.Y)
			}
			canvas.Polygon(xs, ys, style)
			if len(xs) > 0 {
				canvas.Text(xs[0]+3, ys[0]+14, ann.ClassName,
					fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", color))
			}
		}
	}

	canvas.End()
	return nil
}

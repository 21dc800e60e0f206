package export

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/yelloji/relgen/pkg/annotation"
)

// Pascal VOC XML structures. Polygons flatten into a <polygon> element as a
// segmentation extension alongside the standard <bndbox>.

type vocAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Folder   string      `xml:"folder"`
	Filename string      `xml:"filename"`
	Size     vocSize     `xml:"size"`
	Objects  []vocObject `xml:"object"`
}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type vocObject struct {
	Name      string      `xml:"name"`
	Pose      string      `xml:"pose"`
	Truncated int         `xml:"truncated"`
	Difficult int         `xml:"difficult"`
	BndBox    vocBndBox   `xml:"bndbox"`
	Polygon   *vocPolygon `xml:"polygon,omitempty"`
}

type vocBndBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

type vocPolygon struct {
	Points string `xml:"points"`
}

// WritePascalVOC writes one .xml per image with pixel-space bndbox objects.
// Polygon annotations keep their envelope as the bndbox and carry the
// flattened vertex list in a polygon element.
func WritePascalVOC(root string, items []Item) error {
	for _, it := range items {
		doc := vocAnnotation{
			Folder:   it.Image.Split,
			Filename: it.Image.Name,
			Size:     vocSize{Width: it.Image.Width, Height: it.Image.Height, Depth: 3},
		}

		for _, ann := range it.Annotations {
			box := ann.Envelope()
			obj := vocObject{
				Name: ann.ClassName,
				Pose: "Unspecified",
				BndBox: vocBndBox{
					XMin: int(box.XMin + 0.5),
					YMin: int(box.YMin + 0.5),
					XMax: int(box.XMax + 0.5),
					YMax: int(box.YMax + 0.5),
				},
			}
			if ann.Kind == annotation.KindPolygon {
				var b strings.Builder
				for i, p := range ann.Points {
					if i > 0 {
						b.WriteByte(';')
					}
					fmt.Fprintf(&b, "%.2f,%.2f", p.X, p.Y)
				}
				obj.Polygon = &vocPolygon{Points: b.String()}
			}
			doc.Objects = append(doc.Objects, obj)
		}

		data, err := xml.MarshalIndent(&doc, "", "  ")
		if err != nil {
			return fmt.Errorf("%w: marshaling voc for %s: %v", ErrExportFailed, it.Image.Name, err)
		}
		content := xml.Header + string(data) + "\n"
		if err := writeLabel(labelPath(root, it.Image, ".xml"), content); err != nil {
			return err
		}
	}
	return nil
}

package annotation

import (
	"fmt"
	"math"
)

// Geometry thresholds for keeping a transformed annotation. A shape whose
// clipped area falls below EpsArea, or whose sides collapse under MinSide,
// is considered degenerate and dropped.
const (
	EpsArea = 1.0
	MinSide = 1.0
)

// Kind discriminates the two annotation geometries.
type Kind string

const (
	// KindBox is an axis-aligned bounding box.
	KindBox Kind = "bbox"

	// KindPolygon is an ordered vertex polygon.
	KindPolygon Kind = "polygon"
)

// Point is a 2D pixel-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Annotation is a single labeled shape in pixel coordinates relative to its
// image. Exactly one of Box or Points is populated, selected by Kind.
// The pipeline never mutates input annotations; transforms emit new values.
type Annotation struct {
	// Kind selects bbox or polygon geometry.
	Kind Kind `json:"type"`

	// Box holds bbox geometry when Kind == KindBox.
	Box Box `json:"bbox,omitempty"`

	// Points holds polygon vertices in order when Kind == KindPolygon.
	// A reversed winding (from a horizontal flip) is allowed.
	Points []Point `json:"points,omitempty"`

	// ClassID is the class index within the owning dataset. The export
	// emitter remaps it to the release-wide unified class table.
	ClassID int `json:"class_id"`

	// ClassName is the human-readable class label.
	ClassName string `json:"class_name"`

	// Confidence is the annotation confidence in [0, 1]; 1.0 for manual labels.
	Confidence float64 `json:"confidence"`
}

// Box is an axis-aligned bounding box with XMin < XMax and YMin < YMax.
type Box struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Width returns the box width in pixels.
func (b Box) Width() float64 { return b.XMax - b.XMin }

// Height returns the box height in pixels.
func (b Box) Height() float64 { return b.YMax - b.YMin }

// Area returns the box area in pixels².
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Corners returns the four corners in clockwise order from the top-left.
func (b Box) Corners() []Point {
	return []Point{
		{b.XMin, b.YMin},
		{b.XMax, b.YMin},
		{b.XMax, b.YMax},
		{b.XMin, b.YMax},
	}
}

// NewBox creates a box annotation.
func NewBox(xMin, yMin, xMax, yMax float64, classID int, className string, confidence float64) Annotation {
	return Annotation{
		Kind:       KindBox,
		Box:        Box{XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax},
		ClassID:    classID,
		ClassName:  className,
		Confidence: confidence,
	}
}

// NewPolygon creates a polygon annotation. The points slice is used as-is.
func NewPolygon(points []Point, classID int, className string, confidence float64) Annotation {
	return Annotation{
		Kind:       KindPolygon,
		Points:     points,
		ClassID:    classID,
		ClassName:  className,
		Confidence: confidence,
	}
}

// Validate checks the annotation against the dimensions of its source image.
// It enforces the pixel-space invariants: boxes need 0 ≤ x_min < x_max ≤ W and
// 0 ≤ y_min < y_max ≤ H; polygons need at least three vertices, all inside
// [0,W]×[0,H]. Malformed annotations are dropped by the caller, not repaired.
func (a *Annotation) Validate(width, height float64) error {
	switch a.Kind {
	case KindBox:
		b := a.Box
		if b.XMin < 0 || b.YMin < 0 || b.XMax > width || b.YMax > height {
			return fmt.Errorf("box [%g,%g,%g,%g] outside canvas %gx%g", b.XMin, b.YMin, b.XMax, b.YMax, width, height)
		}
		if b.XMin >= b.XMax || b.YMin >= b.YMax {
			return fmt.Errorf("box [%g,%g,%g,%g] has non-positive extent", b.XMin, b.YMin, b.XMax, b.YMax)
		}
	case KindPolygon:
		if len(a.Points) < 3 {
			return fmt.Errorf("polygon has %d points, need at least 3", len(a.Points))
		}
		for i, p := range a.Points {
			if p.X < 0 || p.X > width || p.Y < 0 || p.Y > height {
				return fmt.Errorf("polygon point %d (%g,%g) outside canvas %gx%g", i, p.X, p.Y, width, height)
			}
		}
	default:
		return fmt.Errorf("unknown annotation kind %q", a.Kind)
	}
	return nil
}

// Envelope returns the axis-aligned bounding box of the annotation.
// For boxes this is the box itself; for polygons the min/max of the vertices.
func (a *Annotation) Envelope() Box {
	if a.Kind == KindBox {
		return a.Box
	}
	env := Box{XMin: math.Inf(1), YMin: math.Inf(1), XMax: math.Inf(-1), YMax: math.Inf(-1)}
	for _, p := range a.Points {
		env.XMin = math.Min(env.XMin, p.X)
		env.YMin = math.Min(env.YMin, p.Y)
		env.XMax = math.Max(env.XMax, p.X)
		env.YMax = math.Max(env.YMax, p.Y)
	}
	return env
}

// AsPolygon returns the polygon form of the annotation. Boxes become their
// four-corner rectangle so segmentation exports can feed them through the
// same geometric pipeline as true polygons.
func (a *Annotation) AsPolygon() Annotation {
	if a.Kind == KindPolygon {
		return *a
	}
	return Annotation{
		Kind:       KindPolygon,
		Points:     a.Box.Corners(),
		ClassID:    a.ClassID,
		ClassName:  a.ClassName,
		Confidence: a.Confidence,
	}
}

// PolygonArea computes the absolute area of a polygon via the shoelace formula.
func PolygonArea(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	sum := 0.0
	for i := range points {
		j := (i + 1) % len(points)
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(sum) / 2
}

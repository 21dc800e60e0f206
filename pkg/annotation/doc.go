// Package annotation defines the pixel-space annotation model shared by the
// whole release pipeline: axis-aligned bounding boxes and ordered-vertex
// polygons carrying class metadata.
//
// Annotations enter the pipeline in pixel coordinates relative to their
// source image. Geometry validation, canvas clipping (Sutherland–Hodgman for
// polygons), degenerate-shape detection, and the polygon↔bbox conversions
// used by the export fallback all live here.
package annotation

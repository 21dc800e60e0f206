// Package export serializes transformed images and annotations into the
// release's on-disk label format: YOLO detection, YOLO segmentation, COCO,
// Pascal VOC, or CSV.
//
// Two contracts concentrate here. First, all normalization divides by the
// emitted image's recorded dimensions: the engine hands over pixel
// coordinates relative to its output canvas, and only this package turns
// them into [0,1]. Second, class IDs are unified: class names are collected
// across every exported annotation, sorted lexicographically, numbered from
// 0, and rewritten onto each annotation before any label is emitted.
package export

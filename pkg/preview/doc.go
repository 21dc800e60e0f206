// Package preview renders annotation-overlay SVGs for release QA. The
// overlays draw each emitted image's extent with its transformed boxes and
// polygons in class-stable colors and are bundled under metadata/previews/.
package preview

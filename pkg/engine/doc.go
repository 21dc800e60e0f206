// Package engine applies augmentation configs to images while propagating
// the same geometric transform to annotations.
//
// Each geometric stage lowers to a 3×3 homography evaluated against the
// current canvas. Pixels are warped stage by stage; the stage matrices
// compose in planner order into a single matrix applied to annotation
// geometry. Photometric stages adjust pixels only. Flips and 90°-multiple rotations take exact integer remapping
// paths; other affine stages warp through x/image interpolators and true
// perspective warps through an inverse-homography bilinear sampler.
//
// Apply is pure per call modulo the output image write, which is what makes
// parallel per-image execution safe for the orchestrator.
package engine

// Package geometry provides the 3×3 homography algebra shared by the
// augmentation engine: constructors for the canonical transforms (translate,
// scale, rotate, shear, reflect, quad-to-quad perspective), composition,
// inversion, and point/rectangle mapping with perspective divide.
//
// The engine composes one matrix per geometric stage and applies the same
// composition to the image and to annotation geometry, which is what keeps
// labels spatially consistent with pixels.
package geometry

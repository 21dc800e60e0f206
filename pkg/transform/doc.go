// Package transform declares the transformation catalog: every recognized
// transformation kind with its parameter schema, accepted ranges, defaults,
// and whether it is geometric (mirrored on annotation geometry) or
// photometric (pixel values only).
//
// Stored parameters may carry single values or {min, max} range objects;
// Resolve collapses them to concrete per-config values using a deterministic
// RNG stream derived from (seed, imageID, configIndex, transformID).
package transform

// Package packager assembles the final release bundle: the staged directory
// skeleton, the metadata documents (release_config.json and the normalized
// annotations.json snapshot), the bundle README, and the DEFLATE-compressed
// ZIP written into the project's releases tree.
package packager

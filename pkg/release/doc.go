// Package release drives the dataset release pipeline.
//
// The orchestrator walks the protocol: create the release record, resolve
// the source image set and pending transformation records, plan augmentation
// configs, stage sources, fan the engine out over a bounded worker pool,
// unify classes, emit labels, package the ZIP, and atomically mark the
// consumed transformation records COMPLETED.
//
// Failure policy: per-image errors are counted into the warnings block and
// skipped; pipeline errors abort, mark the release failed, remove partial
// artifacts, and leave every transformation record PENDING. The staging
// directory is removed on both paths.
package release

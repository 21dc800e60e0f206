// Package rng provides deterministic random number generation for the
// release pipeline.
//
// Every randomized decision in the pipeline (parameter resolution, transform
// combination sampling, noise and cutout placement) draws from an RNG whose
// seed is derived by hashing the master release seed together with labels
// identifying the unit of work:
//
//	seed_unit = SHA256(masterSeed, label_1, label_2, …)[0:8]
//
// Because each unit owns an independent stream, reruns with the same master
// seed produce identical releases regardless of worker count or scheduling
// order, and consuming extra values in one unit never perturbs another.
package rng

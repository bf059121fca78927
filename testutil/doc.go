// Package testutil provides testing utilities for indexdb.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG with helpers for generating rows
// and dictionary entries that look like indexed source facts.
//
// # Rows
//
//	rng := testutil.NewRNG(seed)
//	rows := rng.Rows(1000, 3, 50)     // IDs in [0, 50]
//	edge := rng.BoundaryValues(16)    // codec width boundaries
//
// # Dictionary Entries
//
//	names := rng.Symbols(500, 200, 1.2) // Zipf-skewed, with duplicates
package testutil

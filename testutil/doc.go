// Package testutil provides testing utilities for fastalloc.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Workloads
//
//	rng := testutil.NewRNG(seed)
//	sizes := rng.SkewedSizes(10_000, 4096, 1.2)
//
// # Content Checks
//
// Fill stamps a recognizable pattern into an allocation and Check verifies
// it later, which catches blocks that were handed out twice or clobbered by
// allocator metadata.
package testutil

// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

// generation identifies a memory pool's generation: 0 is eden,
// collected on every cycle; 1 (survivor) through GCMaxGenerations-1
// are progressively older generations, each collected less often than
// the one below it (see groupData.scope; spec.md §4.1). A cell's
// generation is independent of whether it is rooted — any cell in any
// generation can be preserved via the root trie (root.go).
type generation uint8

const (
	genEden generation = iota
	genSurvivor
	genOldStart // first non-young generation; 2..GCMaxGenerations-1 follow
)

// Generation is the exported name for a collected generation number,
// for callers that want to force a collection of a specific depth with
// Thread.Collect. Most callers should reach for GenYoungest or
// GenOldest rather than an arbitrary value.
type Generation = generation

// GenYoungest and GenOldest name the ends of the generation chain.
const (
	GenYoungest Generation = genEden
	GenOldest   Generation = GCMaxGenerations - 1
)

// Tunables controlling the generational schedule and promotion policy
// (spec.md §4.1, §4.6). These mirror COL_CONF_*'s defaults in
// colConf.h.
const (
	// GCMaxGenerations is the number of collected generations, 0
	// (youngest) through GCMaxGenerations-1 (oldest).
	GCMaxGenerations = 6

	// GCGenFactor is how many collections of generation g must occur
	// before generation g+1 is included in the scope.
	GCGenFactor = 10

	// PromotePageFillRatio is the minimum fraction of a pool's
	// available cells that must be live after a collection for that
	// pool's pages to be promoted to the next generation in place
	// (relinked, never copied; see groupData.promote and
	// pool.fillRatio).
	PromotePageFillRatio = 0.90

	// GCMinPageAlloc and GCMaxPageAlloc carry colConf.h's bounds for
	// an allocation-count collection trigger. No code in this package
	// reads them: collections run only through Thread.Collect or when
	// AllocCells fails to allocate.
	GCMinPageAlloc = 64
	GCMaxPageAlloc = 1024

	// LargePageSize is the page-count threshold at and above which an
	// allocation gets its own dedicated address range instead of being
	// carved out of a pool's pages.
	LargePageSize = 128
)

// gcThreshold clamps a collection's target generation to the valid
// inclusive range [genEden, GCMaxGenerations-1].
func gcThreshold(g generation) generation {
	if g < genEden {
		return genEden
	}
	if g > generation(GCMaxGenerations-1) {
		return generation(GCMaxGenerations - 1)
	}
	return g
}

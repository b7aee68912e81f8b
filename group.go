// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"fmt"
	"sync"

	"github.com/fredericbonnet/colibri-sub002/internal/rangeset"
)

// ThreadingModel selects how a Group's threads coordinate around a
// collection (spec.md §5).
type ThreadingModel int

const (
	// ThreadingSingle allows at most one Thread in a Group at a time;
	// a second Enter fails until the first Thread has Left. A
	// collection simply runs on that thread's own stack when
	// triggered; there is nothing to coordinate.
	ThreadingSingle ThreadingModel = iota

	// ThreadingAsync allows multiple threads to share a Group. A
	// collection runs on the goroutine that requests it (AllocCells or
	// Collect) once every open PauseGC region has closed; no
	// background collector goroutine is started.
	ThreadingAsync

	// ThreadingShared is handled exactly like ThreadingAsync: several
	// Threads may share the Group and collections run on the
	// requesting goroutine. Separate Groups never coordinate with one
	// another, whatever their model.
	ThreadingShared
)

func (m ThreadingModel) String() string {
	switch m {
	case ThreadingSingle:
		return "single"
	case ThreadingAsync:
		return "async"
	case ThreadingShared:
		return "shared"
	default:
		return fmt.Sprintf("ThreadingModel(%d)", int(m))
	}
}

// groupData is the shared state of a Group: its pools, root set, parent
// list and the bookkeeping needed to schedule collections across the
// generations it manages.
type groupData struct {
	mu sync.Mutex

	model    ThreadingModel
	registry *rangeset.Registry

	pools [GCMaxGenerations]*pool // pools[0] == eden, pools[1] == survivor, ...

	roots   *rootTrie
	parents *parentList
	barrier *Barrier

	nbCollections [GCMaxGenerations]uint64 // collections of each generation so far
	compactGen    generation               // oldest generation ever compacted in place

	coord *gcCoordinator

	threads *threadData // ring of threads that have Entered this group

	errorProc ErrorProc
	typeReg   *typeRegistry
}

// Group owns a generational heap: a set of pools, a root set, and the
// threads that allocate into it. Concrete collection types (ropes,
// lists, vectors, string buffers) are layered on top by registering a
// TypeInfo and storing their header in cells returned by AllocCells.
type Group struct {
	data *groupData
}

// NewGroup creates a Group using the given threading model and the
// real OS page allocator.
func NewGroup(model ThreadingModel) *Group {
	return newGroupWithRegistry(model, rangeset.New(rangeset.Config{
		PageSize:           int(PageSize),
		LargePageThreshold: LargePageSize,
	}))
}

func newGroupWithRegistry(model ThreadingModel, registry *rangeset.Registry) *Group {
	g := &groupData{
		model:     model,
		registry:  registry,
		roots:     &rootTrie{},
		parents:   newParentList(),
		errorProc: defaultErrorProc,
		coord:     newGCCoordinator(),
	}
	g.barrier = &Barrier{group: g}
	for i := range g.pools {
		g.pools[i] = newPool(g, generation(i), registry)
	}
	return &Group{data: g}
}

// Barrier returns the write barrier mutators must use to store a Word
// into a cell belonging to this Group.
func (g *Group) Barrier() *Barrier {
	return g.data.barrier
}

// poolFor returns the pool for gen.
func (g *groupData) poolFor(gen generation) *pool {
	return g.pools[gen]
}

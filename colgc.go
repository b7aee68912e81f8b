// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import "fmt"

// AllocCells reserves n contiguous cells in t's own eden pool, tags
// them with typ, and returns the address of the first cell. Callers
// lay out their object's fields starting at word 1 of that cell (word
// 0 is reserved for the TypeID the collector uses to find the type's
// Children/Free hooks).
//
// Each Thread has its own unshared eden pool (see Enter), so this
// never contends with another thread's allocations.
//
// If t's eden pool cannot allocate (the registry could not supply
// pages), AllocCells requests a collection of up to the oldest
// generation (groupData.scope decides how many generations it actually
// reaches) and retries once before giving up.
func (t *Thread) AllocCells(typ TypeID, n int) (Address, error) {
	g := t.data.group
	eden := t.data.eden

	addr, err := eden.allocCells(n)
	if err != nil {
		g.coord.requestCollection(func() {
			g.collect(generation(GCMaxGenerations - 1))
		})
		addr, err = eden.allocCells(n)
		if err != nil {
			g.raise(ErrorLevelError, "AllocCells", "out of memory after collection: %v", err)
			return 0, fmt.Errorf("colgc: AllocCells: %w", err)
		}
	}
	storeWord(addr, 0, MakeInt(int64(typ)))
	return addr, nil
}

// Collect forces a collection now. gen is an upper bound: the
// generations actually collected are those the generational schedule
// (groupData.scope) allows up to gen, so eden is always collected and
// older generations only on their scheduled cycles.
func (t *Thread) Collect(gen Generation) {
	g := t.data.group
	g.coord.requestCollection(func() { g.collect(gen) })
}

// Preserve increments w's root reference count, keeping it (and
// everything reachable from it) alive across collections until a
// matching Release. Preserving an immediate Word is a silent no-op: an
// immediate carries no pointer for the collector to protect.
func (g *Group) Preserve(w Word) {
	if !w.IsCell() {
		return
	}
	g.data.roots.preserve(w.Address())
}

// Release decrements w's root reference count, installed by a prior
// Preserve. Once the count reaches zero, w is no longer a root and may
// be reclaimed the next time its generation is collected, if nothing
// else reaches it.
func (g *Group) Release(w Word) {
	if !w.IsCell() {
		return
	}
	g.data.roots.release(w.Address())
}

// Word reads the word at the given offset, in Word units, within the
// cell starting at cell.
func (g *Group) Word(cell Address, offset int) Word {
	return loadWord(cell, offset)
}

// SetWord stores w at the given offset within the cell starting at
// cell, running the write barrier. Equivalent to
// g.Barrier().Write(cell, offset, w).
func (g *Group) SetWord(cell Address, offset int, w Word) {
	g.data.barrier.Write(cell, offset, w)
}

// Close releases every page this Group has ever reserved from the
// operating system. The Group must not be used afterward.
func (g *Group) Close() error {
	return g.data.registry.Close()
}

// CompactGeneration returns the oldest generation that has ever been
// compacted in place (promoted via page relinking rather than left
// untouched), or GenYoungest if no promotion has happened yet.
func (g *Group) CompactGeneration() Generation {
	g.data.mu.Lock()
	defer g.data.mu.Unlock()
	return g.data.compactGen
}

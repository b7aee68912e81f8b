// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import "sync"

// TypeID identifies a registered cell type. It is stored as an
// immediate integer in word 0 of every multi-cell object's header cell
// so the collector can find the right TypeInfo without any external
// side table.
type TypeID uint16

// TypeInfo is the contract a collection type (rope, list, vector,
// string buffer, or any external collaborator) gives the collector so
// it can trace and reclaim objects of that type without colgc knowing
// their layout (spec.md §6).
type TypeInfo struct {
	// Name identifies the type for diagnostics.
	Name string

	// Cells is the number of cells an object of this type occupies,
	// including its header cell. Variable-size types (e.g. a string
	// buffer whose capacity grows) report the size of the smallest
	// instance here and allocate additional cells explicitly; Children
	// must still be able to enumerate every live word regardless of
	// how many cells were actually allocated.
	Cells int

	// Children enumerates every Word slot of the object at cell that
	// may itself reference a cell, calling visit once per slot. The
	// collector calls this during the mark phase; Children must not
	// allocate or mutate the heap.
	Children func(cell Address, visit func(Word))

	// Free, if non-nil, is called once for each instance of this type
	// the collector is about to reclaim, before its cells are returned
	// to the pool's free bitmap. Used for external resources (open
	// file descriptors, finalized native buffers) that a GC sweep
	// can't release on its own.
	Free func(cell Address)
}

// typeRegistry maps TypeID to TypeInfo for one Group.
type typeRegistry struct {
	mu    sync.RWMutex
	infos []*TypeInfo // indexed by TypeID - 1; TypeID 0 is reserved/invalid
}

// RegisterType adds info to g's type registry and returns the TypeID
// to store in new objects' header cells.
func (g *Group) RegisterType(info TypeInfo) TypeID {
	reg := g.data.types()
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.infos = append(reg.infos, &info)
	return TypeID(len(reg.infos))
}

// TypeInfo looks up the TypeInfo registered under id, or nil if id is
// unregistered.
func (g *Group) TypeInfo(id TypeID) *TypeInfo {
	reg := g.data.types()
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if id == 0 || int(id) > len(reg.infos) {
		return nil
	}
	return reg.infos[id-1]
}

func (g *groupData) types() *typeRegistry {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.typeReg == nil {
		g.typeReg = &typeRegistry{}
	}
	return g.typeReg
}

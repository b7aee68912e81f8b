// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isAllocated(addr Address) bool {
	return pageAt(pageOf(addr)).bitmap.Test(cellIndex(addr))
}

func TestCollectSweepsUnreachableKeepsPreserved(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	th, err := g.Enter()
	require.NoError(t, err)

	typ := g.RegisterType(TypeInfo{
		Name:     "node",
		Cells:    2,
		Children: func(cell Address, visit func(Word)) { visit(loadWord(cell, 1)) },
	})

	child, err := th.AllocCells(typ, 2)
	require.NoError(t, err)
	root, err := th.AllocCells(typ, 2)
	require.NoError(t, err)
	g.SetWord(root, 1, FromAddress(child))
	g.Preserve(FromAddress(root))

	garbage, err := th.AllocCells(typ, 2)
	require.NoError(t, err)

	require.True(t, isAllocated(root))
	require.True(t, isAllocated(child))
	require.True(t, isAllocated(garbage))

	th.Collect(GenOldest)

	assert.True(t, isAllocated(root), "a preserved root must survive a collection")
	assert.True(t, isAllocated(child), "a cell reachable from a preserved root must survive")
	assert.False(t, isAllocated(garbage), "an unreachable, unpreserved cell must be swept")
}

func TestCollectCallsFreeHookOnlyForSweptCells(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	th, err := g.Enter()
	require.NoError(t, err)

	var freed []Address
	typ := g.RegisterType(TypeInfo{
		Name:  "resource",
		Cells: 1,
		Free:  func(cell Address) { freed = append(freed, cell) },
	})

	kept, err := th.AllocCells(typ, 1)
	require.NoError(t, err)
	g.Preserve(FromAddress(kept))

	dropped, err := th.AllocCells(typ, 1)
	require.NoError(t, err)

	th.Collect(GenOldest)

	assert.Contains(t, freed, dropped)
	assert.NotContains(t, freed, kept)
}

func TestReleaseAllowsSubsequentCollectionToReclaim(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	th, err := g.Enter()
	require.NoError(t, err)

	typ := g.RegisterType(TypeInfo{Name: "leaf", Cells: 1})

	// A second preserved cell on the same page keeps that page from
	// being returned to the registry (and made inaccessible) once addr
	// is swept, so isAllocated below still reads a mapped page header.
	anchor, err := th.AllocCells(typ, 1)
	require.NoError(t, err)
	g.Preserve(FromAddress(anchor))

	addr, err := th.AllocCells(typ, 1)
	require.NoError(t, err)
	w := FromAddress(addr)
	g.Preserve(w)

	th.Collect(GenOldest)
	assert.True(t, isAllocated(addr))

	g.Release(w)
	th.Collect(GenOldest)
	assert.False(t, isAllocated(addr))
}

func TestCollectTracesChildrenOfParentPages(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	th, err := g.Enter()
	require.NoError(t, err)

	typ := g.RegisterType(TypeInfo{
		Name:     "node",
		Cells:    2,
		Children: func(cell Address, visit func(Word)) { visit(loadWord(cell, 1)) },
	})

	old, err := g.data.poolFor(genOldStart).allocCells(2)
	require.NoError(t, err)
	storeWord(old, 0, MakeInt(int64(typ)))

	young, err := th.AllocCells(typ, 2)
	require.NoError(t, err)
	g.Barrier().Write(old, 1, FromAddress(young))
	require.True(t, pageAt(pageOf(old)).flag(pageFlagParent))

	garbage, err := th.AllocCells(typ, 2)
	require.NoError(t, err)

	th.Collect(GenYoungest)

	assert.True(t, isAllocated(young), "a cell reachable only through a parent page must survive a minor collection")
	assert.False(t, isAllocated(garbage), "an unreachable eden cell must still be swept")
}

func TestScopeStaysAtEdenWithNoPriorCollections(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	assert.Equal(t, genEden, g.data.scope(generation(GCMaxGenerations-1)))
}

func TestScopeAdvancesOneTierAtGenFactorMultiple(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	g.data.nbCollections[genEden] = GCGenFactor

	scope := g.data.scope(generation(GCMaxGenerations - 1))
	assert.Equal(t, genSurvivor, scope)
}

func TestScopeDoesNotAdvanceOnNonMultiple(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	g.data.nbCollections[genEden] = GCGenFactor - 1

	scope := g.data.scope(generation(GCMaxGenerations - 1))
	assert.Equal(t, genEden, scope)
}

func TestScopeClampsRequestedToValidRange(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	assert.Equal(t, genEden, g.data.scope(generation(250)))
}

func TestPromoteRelinksFullPagesWithoutCopying(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	src := g.data.poolFor(genSurvivor)
	dst := g.data.poolFor(genOldStart)

	addr, err := src.allocCells(1)
	require.NoError(t, err)
	src.nbSetCells = AvailableCells // simulate every cell surviving the last sweep

	require.GreaterOrEqual(t, src.fillRatio(), PromotePageFillRatio)

	g.data.promote(genSurvivor)

	assert.Equal(t, 0, src.nbPages)
	assert.Equal(t, 1, dst.nbPages)
	assert.Equal(t, genOldStart, pageAt(pageOf(addr)).generation())
	assert.Equal(t, Generation(genOldStart), g.data.compactGen)

	// The cell's own address must be unchanged: promotion relinks pages,
	// it never copies cells.
	assert.True(t, pageAt(pageOf(addr)).bitmap.Test(cellIndex(addr)))
}

func TestPromoteNoOpBelowFillThreshold(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	src := g.data.poolFor(genSurvivor)
	dst := g.data.poolFor(genOldStart)

	_, err := src.allocCells(1)
	require.NoError(t, err)
	src.nbSetCells = 1 // far below PromotePageFillRatio

	g.data.promote(genSurvivor)

	assert.Equal(t, 1, src.nbPages)
	assert.Equal(t, 0, dst.nbPages)
}

func TestPromoteNeverTouchesEdenOrOldest(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	eden := g.data.poolFor(genEden)
	_, err := eden.allocCells(1)
	require.NoError(t, err)
	eden.nbSetCells = AvailableCells

	g.data.promote(genEden)
	assert.Equal(t, 1, eden.nbPages, "eden is never a promotion source")

	oldest := generation(GCMaxGenerations - 1)
	oldestPool := g.data.poolFor(oldest)
	_, err = oldestPool.allocCells(1)
	require.NoError(t, err)
	oldestPool.nbSetCells = AvailableCells

	g.data.promote(oldest)
	assert.Equal(t, 1, oldestPool.nbPages, "the oldest generation has nowhere further to promote to")
}

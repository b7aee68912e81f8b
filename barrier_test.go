// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierWriteStoresTheWord(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	cell, err := g.data.poolFor(genEden).allocCells(2)
	require.NoError(t, err)

	g.Barrier().Write(cell, 1, MakeInt(42))
	assert.Equal(t, int64(42), loadWord(cell, 1).Int())
}

func TestBarrierWriteRecordsOldToYoungPointerAsParent(t *testing.T) {
	g := NewGroup(ThreadingSingle)

	oldCell, err := g.data.poolFor(genOldStart).allocCells(2)
	require.NoError(t, err)
	youngCell, err := g.data.poolFor(genEden).allocCells(2)
	require.NoError(t, err)

	g.Barrier().Write(oldCell, 1, FromAddress(youngCell))

	oldPage := pageOf(oldCell)
	assert.True(t, pageAt(oldPage).flag(pageFlagParent))

	var seen bool
	g.data.parents.forEach(func(a Address) {
		if a == oldPage {
			seen = true
		}
	})
	assert.True(t, seen, "writing a young pointer into an old cell should register the old page as a parent")
}

func TestBarrierWriteWithinSameGenerationIsNotAParent(t *testing.T) {
	g := NewGroup(ThreadingSingle)

	a, err := g.data.poolFor(genEden).allocCells(2)
	require.NoError(t, err)
	b, err := g.data.poolFor(genEden).allocCells(2)
	require.NoError(t, err)

	g.Barrier().Write(a, 1, FromAddress(b))

	var count int
	g.data.parents.forEach(func(Address) { count++ })
	assert.Equal(t, 0, count)
}

func TestBarrierWriteYoungToOldPointerIsNotAParent(t *testing.T) {
	g := NewGroup(ThreadingSingle)

	youngCell, err := g.data.poolFor(genEden).allocCells(2)
	require.NoError(t, err)
	oldCell, err := g.data.poolFor(genOldStart).allocCells(2)
	require.NoError(t, err)

	g.Barrier().Write(youngCell, 1, FromAddress(oldCell))

	var count int
	g.data.parents.forEach(func(Address) { count++ })
	assert.Equal(t, 0, count, "a pointer from young to old never needs rescanning at a minor collection")
}

func TestBarrierWriteImmediateIsNeverAParent(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	oldCell, err := g.data.poolFor(genOldStart).allocCells(2)
	require.NoError(t, err)

	g.Barrier().Write(oldCell, 1, MakeInt(7))

	var count int
	g.data.parents.forEach(func(Address) { count++ })
	assert.Equal(t, 0, count)
}

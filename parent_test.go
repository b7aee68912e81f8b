// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allocPage(t *testing.T, p *pool) Address {
	t.Helper()
	addr, err := p.allocCells(1)
	require.NoError(t, err)
	return pageOf(addr)
}

func TestParentListAddSetsPageFlag(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	page := allocPage(t, g.data.poolFor(genOldStart))

	pl := newParentList()
	pl.add(page)

	assert.True(t, pageAt(page).flag(pageFlagParent))
}

func TestParentListAddIsIdempotent(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	page := allocPage(t, g.data.poolFor(genOldStart))

	pl := newParentList()
	pl.add(page)
	pl.add(page)
	pl.add(page)

	var count int
	pl.forEach(func(Address) { count++ })
	assert.Equal(t, 1, count, "adding the same page repeatedly should only track it once")
}

func TestParentListForEachVisitsAllPages(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	p := g.data.poolFor(genOldStart)
	page1 := allocPage(t, p)
	page2 := pageOf(mustAlloc(t, p, 1))
	for page2 == page1 {
		page2 = pageOf(mustAlloc(t, p, 1))
	}

	pl := newParentList()
	pl.add(page1)
	pl.add(page2)

	seen := make(map[Address]bool)
	pl.forEach(func(a Address) { seen[a] = true })
	assert.True(t, seen[page1])
	assert.True(t, seen[page2])
}

func TestParentListResetClearsFlagsAndList(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	page := allocPage(t, g.data.poolFor(genOldStart))

	pl := newParentList()
	pl.add(page)
	require.True(t, pageAt(page).flag(pageFlagParent))

	pl.reset()

	assert.False(t, pageAt(page).flag(pageFlagParent))
	var count int
	pl.forEach(func(Address) { count++ })
	assert.Equal(t, 0, count)
}

func mustAlloc(t *testing.T, p *pool, n int) Address {
	t.Helper()
	addr, err := p.allocCells(n)
	require.NoError(t, err)
	return addr
}

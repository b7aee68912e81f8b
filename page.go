// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"unsafe"

	"github.com/fredericbonnet/colibri-sub002/internal/cellbits"
)

// pageFlag marks a property of a page (spec.md §3 "Page").
type pageFlag uint8

const (
	pageFlagFirst  pageFlag = 1 << 0 // first logical page in its system-page group
	pageFlagLast   pageFlag = 1 << 1 // last logical page in its system-page group
	pageFlagParent pageFlag = 1 << 2 // page is on its group's parent list (holds a pointer into a younger generation)
)

// pageGenFlagsMask covers the low byte of the packed next-page word: 4
// bits of generation, up to 4 bits of flags. A page's own address is
// always PageSize-aligned, which leaves its low 12 bits free to pack
// this into the same word as the "next" link, exactly as colInternal.h's
// PAGE_GENERATION/PAGE_FLAGS/PAGE_NEXT macros do for the C layout.
const pageGenFlagsMask = 0xff

// pageHeader occupies cell 0 of every page — this is the page metadata
// spec.md §3 describes: generation, flags, next-page link, owning
// group, and the per-cell allocation bitmap. Its size is exactly one
// cell (32 bytes: one packed word, one pointer, two bitmap words) so
// that AVAILABLE_CELLS = CELLS_PER_PAGE - RESERVED_CELLS holds with
// RESERVED_CELLS == 1.
type pageHeader struct {
	nextPacked uintptr // low byte: generation | flags<<4; rest: next page address
	group      unsafe.Pointer
	bitmap     cellbits.Bitmap
}

var _ [int(unsafe.Sizeof(pageHeader{})) - cellSize]struct{} // compile-time size check

func pageAt(addr Address) *pageHeader {
	return (*pageHeader)(unsafe.Pointer(uintptr(addr)))
}

// pageOf returns the page containing cell addr (spec.md invariant 2).
func pageOf(addr Address) Address {
	return addr.AlignDown(PageSize)
}

// cellIndex returns the index of cell addr within its page.
func cellIndex(addr Address) int {
	return int((uintptr(addr) % uintptr(PageSize)) / uintptr(CellSize))
}

// cellAt returns the address of the index-th cell of the page at base.
func cellAt(base Address, index int) Address {
	return base.Add(Bytes(index * CellSize))
}

func (p *pageHeader) init(gen generation, group *groupData) {
	p.bitmap.Init()
	p.setNext(0)
	p.setGeneration(gen)
	p.clearFlags(pageFlagFirst | pageFlagLast | pageFlagParent)
	p.group = unsafe.Pointer(group)
}

func (p *pageHeader) generation() generation {
	return generation(p.nextPacked & 0x0f)
}

func (p *pageHeader) setGeneration(g generation) {
	p.nextPacked = (p.nextPacked &^ 0x0f) | uintptr(g&0x0f)
}

func (p *pageHeader) flags() pageFlag {
	return pageFlag((p.nextPacked >> 4) & 0x0f)
}

func (p *pageHeader) flag(f pageFlag) bool {
	return p.flags()&f != 0
}

func (p *pageHeader) setFlags(f pageFlag) {
	p.nextPacked |= uintptr(f) << 4
}

func (p *pageHeader) clearFlags(f pageFlag) {
	p.nextPacked &^= uintptr(f) << 4
}

func (p *pageHeader) next() Address {
	return Address(p.nextPacked &^ pageGenFlagsMask)
}

func (p *pageHeader) setNext(next Address) {
	p.nextPacked = (p.nextPacked & pageGenFlagsMask) | uintptr(next)
}

func (p *pageHeader) groupData() *groupData {
	return (*groupData)(p.group)
}

func (p *pageHeader) addr() Address {
	return Address(uintptr(unsafe.Pointer(p)))
}


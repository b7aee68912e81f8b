// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cellbits implements the per-page cell allocation bitmap
// (spec.md §4.3): 128 bits, one per cell in a page, tracking which
// cells are currently allocated.
//
// The reference implementation's bitmap can be either a single 64-bit
// word or a byte array depending on CELLS_PER_PAGE, with an
// acknowledged (spec.md §9) endianness inconsistency between the two
// paths. This package sidesteps that by always treating the bitmap as
// two plain uint64 words addressed purely arithmetically (bit i lives
// in word i/64 at position i%64): there's no byte-level aliasing of
// memory to get backwards on a big-endian host, so there's only one
// bit order to get right.
package cellbits

// Words is the number of uint64 words needed to track one page's
// worth of cells (128 cells / 64 bits per word).
const Words = 2

// Bits is the number of cells a Bitmap tracks.
const Bits = Words * 64

// Reserved is the number of low bits permanently set: cell 0 of every
// page is reserved for the page header and is never handed out
// (spec.md invariant 8).
const Reserved = 1

// Bitmap tracks which of a page's cells are allocated.
type Bitmap [Words]uint64

// Init clears the bitmap and sets the permanently-reserved bits.
func (b *Bitmap) Init() {
	*b = Bitmap{}
	b.Set(0, Reserved)
}

// Test reports whether cell i is allocated.
func (b *Bitmap) Test(i int) bool {
	return b[i/64]&(uint64(1)<<uint(i%64)) != 0
}

// Set marks cells [first, first+n) as allocated.
func (b *Bitmap) Set(first, n int) {
	for i := first; i < first+n; i++ {
		b[i/64] |= uint64(1) << uint(i%64)
	}
}

// Clear marks cells [first, first+n) as free.
func (b *Bitmap) Clear(first, n int) {
	for i := first; i < first+n; i++ {
		b[i/64] &^= uint64(1) << uint(i%64)
	}
}

// Count returns the number of allocated cells.
func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b {
		for w != 0 {
			w &= w - 1
			n++
		}
	}
	return n
}

// FindRun returns the index of the first run of n consecutive free
// cells starting at or after from, and true if one was found.
//
// This walks bit-by-bit like the teacher's go114PageCache.alloc rather
// than through the reference's precomputed first-zero-run/
// longest-leading-zero-run byte tables: at 128 bits per page a linear
// scan is already fast, and it sidesteps the table's own documented
// endianness wrinkle entirely.
func (b *Bitmap) FindRun(from, n int) (int, bool) {
	pos := from
	for pos < Bits {
		if b.Test(pos) {
			pos++
			continue
		}
		start := pos
		runLen := 0
		for pos < Bits && !b.Test(pos) {
			runLen++
			pos++
			if runLen >= n {
				return start, true
			}
		}
	}
	return 0, false
}

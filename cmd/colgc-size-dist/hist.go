// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

// CellHist tracks how many currently-preserved objects occupy each
// cell count, the same bucketed-array-plus-overflow-map shape the
// teacher's allocation-size histogram uses: small, common sizes get
// O(1) dense-array slots, and the rare huge object falls back to a map
// instead of forcing every entry to pay for a huge dense array.
type CellHist struct {
	small [1 << 12]uint64
	large map[int]uint64
}

// NewCellHist returns an empty histogram.
func NewCellHist() *CellHist {
	return &CellHist{large: make(map[int]uint64)}
}

// Add records one more object of the given cell count.
func (h *CellHist) Add(cells int) {
	if cells >= 1 && cells <= len(h.small) {
		h.small[cells-1]++
		return
	}
	h.large[cells]++
}

// Sub removes one object of the given cell count. It panics if the
// bucket was already empty, the same invariant the teacher's histogram
// enforces: a Sub must always be paired with an earlier Add.
func (h *CellHist) Sub(cells int) {
	if cells >= 1 && cells <= len(h.small) {
		if h.small[cells-1] == 0 {
			panic("colgc-size-dist: subtraction below zero")
		}
		h.small[cells-1]--
		return
	}
	count, ok := h.large[cells]
	if !ok || count == 0 {
		panic("colgc-size-dist: subtraction below zero")
	}
	if count == 1 {
		delete(h.large, cells)
	} else {
		h.large[cells] = count - 1
	}
}

// ForEach invokes f once per non-empty bucket, in no particular order.
func (h *CellHist) ForEach(f func(cells int, count uint64)) {
	for i, count := range h.small {
		if count != 0 {
			f(i+1, count)
		}
	}
	for cells, count := range h.large {
		if count != 0 {
			f(cells, count)
		}
	}
}

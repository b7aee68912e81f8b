// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import "unsafe"

// Barrier implements the generational write barrier: every store of a
// Word into a cell must go through Write rather than a raw pointer
// assignment.
//
// SPEC_FULL.md §7 replaces the original design's OS-trap barrier
// (catch a SIGSEGV on a protected older-generation page, record it,
// unprotect, retry) with this explicit instrumented-store form: there
// is no portable way in Go to intercept a plain memory write and
// resume execution past it without racing the Go runtime's own signal
// handling, which also uses SIGSEGV for goroutine stack growth and
// nil-pointer faults. An instrumented store costs a function call
// instead of a page fault, which is cheaper in the common case anyway.
//
// Real page protection (mprotect) is kept only as an optional,
// non-default debug assertion: see barrier_debug.go.
type Barrier struct {
	group *groupData
}

func wordPtr(cell Address, offset int) *Word {
	return (*Word)(unsafe.Pointer(uintptr(cell) + uintptr(offset)*unsafe.Sizeof(Word(0))))
}

// loadWord reads the word at the given offset (in Word units) within
// the cell starting at cell. Reads need no barrier.
func loadWord(cell Address, offset int) Word {
	return *wordPtr(cell, offset)
}

// storeWord writes w at the given offset within the cell starting at
// cell, bypassing the write barrier. Only Write and AllocCells (which
// tags a fresh object's word 0 with its TypeID) call this directly.
func storeWord(cell Address, offset int, w Word) {
	*wordPtr(cell, offset) = w
}

// Write stores w at the given word offset within the cell at cell,
// running the generational write barrier: if w now points to a cell in
// a younger generation than cell's own page, cell's page is recorded
// as a parent so the next minor collection rescans it (spec.md §4.5).
func (b *Barrier) Write(cell Address, offset int, w Word) {
	page := pageOf(cell)
	if debugProtectBuild {
		_ = b.group.registry.Protect(uintptr(page), false)
	}
	storeWord(cell, offset, w)
	if debugProtectBuild {
		_ = b.group.registry.Protect(uintptr(page), true)
	}

	if !w.IsCell() {
		return
	}
	targetPage := pageOf(w.Address())
	srcHeader := pageAt(page)
	dstHeader := pageAt(targetPage)
	if srcHeader.generation() > dstHeader.generation() {
		b.group.parents.add(page)
		b.group.registry.MarkWritten(uintptr(page))
	}
}

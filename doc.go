// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package colgc is the memory-management core of an immutable-by-default
// data structure library: a page-based, generational, write-barriered,
// tracing garbage collector backing ropes, lists, vectors and string
// buffers. Those collection types are external collaborators of this
// package; colgc itself only knows about cells, pages, pools, roots and
// parents.
//
// A mutator thread calls Enter to join a group, AllocCells to get space
// for a new object, Preserve/Release to root a word across collections,
// and PauseGC/ResumeGC to bracket any region where it touches the heap.
// Concrete collection types are built on top by registering a TypeInfo
// with RegisterType and storing their header in the cells AllocCells
// returns.
package colgc

// CellSize is the size in bytes of one cell, the allocator's quantum.
const CellSize = cellSize

// CellsPerPage is the number of cells in one logical page.
const CellsPerPage = cellsPerPage

// PageSize is the size in bytes of one logical page.
const PageSize = Bytes(CellsPerPage * CellSize)

// ReservedCells is the number of cells reserved for page metadata at
// the start of every page. Cell 0 of a page is never handed out.
const ReservedCells = 1

// AvailableCells is the number of cells in a page actually available
// for allocation.
const AvailableCells = CellsPerPage - ReservedCells

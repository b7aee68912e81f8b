// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

// cellSize, cellsPerPage and bitmapWords fix colConf.h's SIZE_BIT==64
// branch: 32-byte cells, 128 cells per 4 KiB page, a 2-word (128-bit)
// per-page allocation bitmap. Go realistically only targets 64-bit
// hosts today (32-bit GOARCHes are a shrinking minority with no
// practical audience for a new data-structure library); unlike the
// original C, which has to support both in the same build, this port
// only implements the 64-bit layout and says so plainly instead of
// carrying untested, unreachable 32-bit arithmetic. See DESIGN.md.
const (
	cellSize     = 32
	cellsPerPage = 128
	bitmapWords  = cellsPerPage / 64
)

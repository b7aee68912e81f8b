// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package platform implements the page/cell allocator's machine-dependent
// layer: reserving, committing and protecting ranges of real virtual
// address space. It is the Go analogue of colUnixPlatform.c /
// colWin32Platform.c in the original colibri sources, narrowed to the
// unix mmap/mprotect primitives the rest of the pack already relies on.
package platform

import (
	"fmt"
	"os"
)

// PageSize is the size of one OS page in bytes, queried once at init
// the way colAlloc.c's systemPageSize is.
var PageSize = os.Getpagesize()

// Granularity is the address-space reservation granularity: the
// smallest size/alignment a reservation can be made at. On unix this
// is just the OS page size; colWin32Platform.c's SYSTEM_INFO
// equivalent (64 KiB allocation granularity) doesn't apply here.
var Granularity = PageSize

// Error wraps an OS failure from a page primitive with the operation
// and address that failed, so callers can report a colgc Fatal error
// with full context instead of a bare errno string.
type Error struct {
	Op   string
	Addr uintptr
	Size uintptr
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform: %s at %#x (%d bytes): %v", e.Op, e.Addr, e.Size, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

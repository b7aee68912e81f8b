// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package platform

import "unsafe"

// unsafePointer returns the address of b's backing array.
func unsafePointer(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}

// bytesAt reinterprets the real memory at addr as a []byte of length n,
// for handing to mmap syscalls that operate on byte slices. The memory
// is OS-backed, not Go-heap-backed, so this aliasing is safe: the Go
// GC never moves or scans it.
func bytesAt(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

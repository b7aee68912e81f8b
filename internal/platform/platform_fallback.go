// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package platform

import "unsafe"

// On non-unix targets (no golang.org/x/sys/unix mmap support, e.g.
// windows, wasm) address ranges fall back to plain Go-heap byte slices
// pinned for the program's lifetime. Commit/decommit are no-ops and
// ProtectPages cannot enforce anything — only the explicit Barrier.Write
// path (see SPEC_FULL.md §7) is available, which is already the default
// write-barrier mechanism on every platform.
var fallbackArenas = map[uintptr][]byte{}

func ReserveRange(n int, commit bool) (uintptr, error) {
	b := make([]byte, n)
	addr := uintptr(unsafe.Pointer(&b[0]))
	fallbackArenas[addr] = b
	return addr, nil
}

func ReleaseRange(addr uintptr, n int) error {
	delete(fallbackArenas, addr)
	return nil
}

func CommitPages(addr uintptr, n int) error   { return nil }
func DecommitPages(addr uintptr, n int) error { return nil }
func ProtectPages(addr uintptr, n int, protect bool) error {
	return nil
}

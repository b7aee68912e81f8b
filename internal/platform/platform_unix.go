// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ReserveRange reserves n bytes of contiguous virtual address space via
// mmap(2), optionally backed by real memory immediately (commit=true)
// or left PROT_NONE until CommitPages is called. Mirrors colAlloc.c's
// PageAlloc for its "ask the OS for a fresh range" path.
func ReserveRange(n int, commit bool) (uintptr, error) {
	prot := unix.PROT_NONE
	if commit {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	b, err := unix.Mmap(-1, 0, n, prot, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, &Error{Op: "reserve", Size: uintptr(n), Err: err}
	}
	return uintptr(unsafePointer(b)), nil
}

// ReleaseRange unmaps a reservation made by ReserveRange. The caller
// guarantees no live cells remain in it.
func ReleaseRange(addr uintptr, n int) error {
	b := bytesAt(addr, n)
	if err := unix.Munmap(b); err != nil {
		return &Error{Op: "release", Addr: addr, Size: uintptr(n), Err: err}
	}
	return nil
}

// CommitPages makes the sub-range [addr, addr+n) readable and writable.
func CommitPages(addr uintptr, n int) error {
	if err := unix.Mprotect(bytesAt(addr, n), unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return &Error{Op: "commit", Addr: addr, Size: uintptr(n), Err: err}
	}
	return nil
}

// DecommitPages makes the sub-range [addr, addr+n) inaccessible,
// releasing its physical backing without giving up the reservation.
func DecommitPages(addr uintptr, n int) error {
	b := bytesAt(addr, n)
	// MADV_DONTNEED drops the physical pages; PROT_NONE ensures any
	// stray access faults loudly instead of silently reading zeros.
	_ = unix.Madvise(b, unix.MADV_DONTNEED)
	if err := unix.Mprotect(b, unix.PROT_NONE); err != nil {
		return &Error{Op: "decommit", Addr: addr, Size: uintptr(n), Err: err}
	}
	return nil
}

// ProtectPages sets the sub-range read-only (protect=true) or
// read-write (protect=false). This is the mechanism generation ≥ 2
// pages use as a debug-only write-barrier assertion; see REDESIGN NOTE
// in SPEC_FULL.md §7 for why it isn't the primary barrier mechanism.
func ProtectPages(addr uintptr, n int, protect bool) error {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if protect {
		prot = unix.PROT_READ
	}
	if err := unix.Mprotect(bytesAt(addr, n), prot); err != nil {
		return &Error{Op: fmt.Sprintf("protect(%v)", protect), Addr: addr, Size: uintptr(n), Err: err}
	}
	return nil
}

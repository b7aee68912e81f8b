// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

// Bytes is an amount of memory expressed in bytes.
type Bytes uintptr

// AlignUp rounds b up to align, which must be a power of two.
func (b Bytes) AlignUp(align Bytes) Bytes {
	if align&(align-1) != 0 {
		panic("colgc: alignment must be a power of two")
	}
	return (b + align - 1) &^ (align - 1)
}

// AlignDown rounds b down to align, which must be a power of two.
func (b Bytes) AlignDown(align Bytes) Bytes {
	if align&(align-1) != 0 {
		panic("colgc: alignment must be a power of two")
	}
	return b &^ (align - 1)
}

// Pages returns the number of perPage-sized pages needed to hold b bytes.
func (b Bytes) Pages(perPage Bytes) Pages {
	return Pages(b.AlignUp(perPage) / perPage)
}

// Address is a cell, page or range base address within the heap's
// address space. Low bit 0 means "base address of a cell";
// colgc never hands out an Address pointing into the middle of an
// object (invariant 1 of spec.md §3).
type Address uintptr

// Add returns a+b.
func (a Address) Add(b Bytes) Address {
	return a + Address(b)
}

// Diff returns the absolute difference between a and b.
func (a Address) Diff(b Address) Bytes {
	if a < b {
		return Bytes(b - a)
	}
	return Bytes(a - b)
}

// AlignDown rounds a down to align, which must be a power of two.
func (a Address) AlignDown(align Bytes) Address {
	return Address(Bytes(a).AlignDown(align))
}

// Pages is a count of pages. How many bytes that represents depends on
// the page size in effect, which is always PageSize for logical pages
// in this package.
type Pages uint64

// Bytes returns the number of bytes p pages occupy at perPage bytes each.
func (p Pages) Bytes(perPage Bytes) Bytes {
	return Bytes(p) * perPage
}

// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rangeset implements the address-range registry of spec.md
// §4.2: general address ranges that grow geometrically and hold
// single- or small-multi-page allocations, plus one dedicated range
// per large allocation. It tracks, per page, which pages are free and
// which have been written to since the registry last cleared that bit
// — the bookkeeping the generational write barrier rides on.
//
// rangeset knows nothing about cells, words or generations; it is pure
// page bookkeeping, the same separation of concerns the teacher keeps
// between toolbox.AddressSpace (hands out raw ranges) and the page/
// object allocators built on top of it.
package rangeset

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fredericbonnet/colibri-sub002/internal/platform"
)

// Reserver is the subset of internal/platform this package drives; a
// small interface so tests can swap in a fake instead of real mmap.
type Reserver interface {
	ReserveRange(n int, commit bool) (uintptr, error)
	ReleaseRange(addr uintptr, n int) error
	CommitPages(addr uintptr, n int) error
	DecommitPages(addr uintptr, n int) error
	ProtectPages(addr uintptr, n int, protect bool) error
}

// realReserver adapts the package-level platform functions to Reserver.
type realReserver struct{}

func (realReserver) ReserveRange(n int, commit bool) (uintptr, error) {
	return platform.ReserveRange(n, commit)
}
func (realReserver) ReleaseRange(addr uintptr, n int) error {
	return platform.ReleaseRange(addr, n)
}
func (realReserver) CommitPages(addr uintptr, n int) error {
	return platform.CommitPages(addr, n)
}
func (realReserver) DecommitPages(addr uintptr, n int) error {
	return platform.DecommitPages(addr, n)
}
func (realReserver) ProtectPages(addr uintptr, n int, protect bool) error {
	return platform.ProtectPages(addr, n, protect)
}

// generalRangeMinPages and generalRangeMaxPages bound the geometric
// growth of general ranges (colAlloc.c grows each new range to double
// the previous one, up to a cap).
const (
	generalRangeMinPages = 16
	generalRangeMaxPages = 1 << 16
)

// rangeDesc is one general address range: a contiguous run of system
// pages subdivided into allocation groups, tracked by allocInfo
// (spec.md §3 "Address range"):
//
//	0            free
//	-n           first page of an n-page group
//	k (k>0)      k-th page of a group that started k pages earlier
type rangeDesc struct {
	base      uintptr
	size      int // pages
	free      int
	first     int // hint: index to resume scanning from
	allocInfo []int32
	written   []bool
}

// dedicatedRange is one large allocation with its own range and no
// group management — a single scalar tracks its write-tracking bit.
type dedicatedRange struct {
	base    uintptr
	size    int // pages
	written bool
}

// Config parametrises a Registry.
type Config struct {
	PageSize           int
	LargePageThreshold int // pages; allocations >= this get a dedicated range
	Reserver           Reserver
}

// Registry is the address-range registry for one memory-management
// core instance.
type Registry struct {
	mu                 sync.Mutex
	pageSize           int
	largePageThreshold int
	r                  Reserver
	ranges             []*rangeDesc
	dedicated          []*dedicatedRange
	nextRangeSize      int
}

// New creates a Registry. If cfg.Reserver is nil, real OS mmap/mprotect
// (internal/platform) is used.
func New(cfg Config) *Registry {
	r := cfg.Reserver
	if r == nil {
		r = realReserver{}
	}
	return &Registry{
		pageSize:           cfg.PageSize,
		largePageThreshold: cfg.LargePageThreshold,
		r:                  r,
		nextRangeSize:      generalRangeMinPages,
	}
}

// AllocPages allocates n contiguous pages and returns their base
// address. dirty seeds the write-tracking bit(s) for the new pages
// (set for generation ≥ 2 pools, since a freshly-promoted page full of
// survivors is conservatively treated as already dirty until the next
// GC proves otherwise).
func (reg *Registry) AllocPages(n int, dirty bool) (uintptr, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.isLarge(n) {
		return reg.allocDedicated(n, dirty)
	}
	for _, rg := range reg.ranges {
		if rg.free < n {
			continue
		}
		if idx, ok := reg.findRun(rg, n); ok {
			return reg.commitRun(rg, idx, n, dirty)
		}
	}
	if err := reg.growGeneral(n); err != nil {
		return 0, err
	}
	rg := reg.ranges[len(reg.ranges)-1]
	idx, ok := reg.findRun(rg, n)
	if !ok {
		return 0, fmt.Errorf("rangeset: freshly grown range cannot satisfy %d pages", n)
	}
	return reg.commitRun(rg, idx, n, dirty)
}

func (reg *Registry) isLarge(n int) bool {
	return n >= reg.largePageThreshold
}

// findRun scans allocInfo from rg.first for n consecutive free pages.
// The n==1 fast path matches the reference's single-page shortcut.
func (reg *Registry) findRun(rg *rangeDesc, n int) (int, bool) {
	if n == 1 && rg.allocInfo[rg.first] == 0 {
		return rg.first, true
	}
	run := 0
	start := 0
	for i := rg.first; i < len(rg.allocInfo); i++ {
		if rg.allocInfo[i] == 0 {
			if run == 0 {
				start = i
			}
			run++
			if run >= n {
				return start, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

func (reg *Registry) commitRun(rg *rangeDesc, first, n int, dirty bool) (uintptr, error) {
	base := rg.base + uintptr(first*reg.pageSize)
	if err := reg.r.CommitPages(base, n*reg.pageSize); err != nil {
		return 0, err
	}
	rg.allocInfo[first] = -int32(n)
	for k := 1; k < n; k++ {
		rg.allocInfo[first+k] = int32(k)
	}
	rg.written[first] = dirty
	rg.free -= n
	if first == rg.first {
		for rg.first < len(rg.allocInfo) && rg.allocInfo[rg.first] != 0 {
			rg.first++
		}
	}
	return base, nil
}

func (reg *Registry) growGeneral(n int) error {
	size := reg.nextRangeSize
	if size < n {
		size = n
	}
	if size > generalRangeMaxPages {
		size = generalRangeMaxPages
		if size < n {
			size = n
		}
	}
	base, err := reg.r.ReserveRange(size*reg.pageSize, false)
	if err != nil {
		return err
	}
	reg.ranges = append(reg.ranges, &rangeDesc{
		base:      base,
		size:      size,
		free:      size,
		allocInfo: make([]int32, size),
		written:   make([]bool, size),
	})
	if reg.nextRangeSize < generalRangeMaxPages {
		reg.nextRangeSize *= 2
	}
	return nil
}

func (reg *Registry) allocDedicated(n int, dirty bool) (uintptr, error) {
	base, err := reg.r.ReserveRange(n*reg.pageSize, true)
	if err != nil {
		return 0, err
	}
	reg.dedicated = append(reg.dedicated, &dedicatedRange{base: base, size: n, written: dirty})
	return base, nil
}

// FreePages releases the page group starting at base, previously
// returned by AllocPages.
func (reg *Registry) FreePages(base uintptr) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if i, ok := reg.findDedicated(base); ok {
		d := reg.dedicated[i]
		if err := reg.r.ReleaseRange(d.base, d.size*reg.pageSize); err != nil {
			return err
		}
		reg.dedicated = append(reg.dedicated[:i], reg.dedicated[i+1:]...)
		return nil
	}
	rg, idx, err := reg.findGeneral(base)
	if err != nil {
		return err
	}
	n := int(-rg.allocInfo[idx])
	if err := reg.r.DecommitPages(rg.base+uintptr(idx*reg.pageSize), n*reg.pageSize); err != nil {
		return err
	}
	for k := 0; k < n; k++ {
		rg.allocInfo[idx+k] = 0
		rg.written[idx+k] = false
	}
	rg.free += n
	if idx < rg.first {
		rg.first = idx
	}
	return nil
}

// TrimPages keeps the first page of the group starting at base and
// decommits the rest, recording a group of size 1 in its place
// (spec.md §4.2 trim_pages, used when a large allocation's trailing
// pages become empty but the head cell is still in use).
func (reg *Registry) TrimPages(base uintptr) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if i, ok := reg.findDedicated(base); ok {
		// A dedicated range keeps its full reservation (FreePages
		// releases all of it); only the trailing pages are decommitted.
		d := reg.dedicated[i]
		if d.size <= 1 {
			return nil
		}
		return reg.r.DecommitPages(d.base+uintptr(reg.pageSize), (d.size-1)*reg.pageSize)
	}
	rg, idx, err := reg.findGeneral(base)
	if err != nil {
		return err
	}
	n := int(-rg.allocInfo[idx])
	if n <= 1 {
		return nil
	}
	if err := reg.r.DecommitPages(rg.base+uintptr((idx+1)*reg.pageSize), (n-1)*reg.pageSize); err != nil {
		return err
	}
	for k := 1; k < n; k++ {
		rg.allocInfo[idx+k] = 0
		rg.written[idx+k] = false
	}
	rg.allocInfo[idx] = -1
	rg.free += n - 1
	if idx+1 < rg.first {
		rg.first = idx + 1
	}
	return nil
}

// Protect sets the page group containing addr read-only (protect) or
// read-write, and updates its write-tracking bit: cleared when
// protecting (a freshly reprotected page has seen no writes yet),
// preserved when unprotecting explicitly via MarkWritten instead.
func (reg *Registry) Protect(addr uintptr, protect bool) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if i, ok := reg.findDedicated(addr); ok {
		d := reg.dedicated[i]
		if err := reg.r.ProtectPages(d.base, d.size*reg.pageSize, protect); err != nil {
			return err
		}
		if protect {
			d.written = false
		}
		return nil
	}
	rg, idx, err := reg.findGeneral(addr)
	if err != nil {
		return err
	}
	groupStart, n := reg.groupBounds(rg, idx)
	if err := reg.r.ProtectPages(rg.base+uintptr(groupStart*reg.pageSize), n*reg.pageSize, protect); err != nil {
		return err
	}
	if protect {
		rg.written[groupStart] = false
	}
	return nil
}

// MarkWritten records that the page group containing addr has been
// written to since the last time it was protected. This is the hook
// the explicit write barrier (see SPEC_FULL.md §7) calls instead of
// relying on an OS fault handler.
func (reg *Registry) MarkWritten(addr uintptr) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if i, ok := reg.findDedicated(addr); ok {
		reg.dedicated[i].written = true
		return
	}
	rg, idx, err := reg.findGeneral(addr)
	if err != nil {
		return
	}
	groupStart, _ := reg.groupBounds(rg, idx)
	rg.written[groupStart] = true
}

// DirtyPages returns the base address of every page group (general or
// dedicated) whose write-tracking bit is currently set.
func (reg *Registry) DirtyPages() []uintptr {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var out []uintptr
	for _, rg := range reg.ranges {
		for i := 0; i < len(rg.allocInfo); i++ {
			if rg.allocInfo[i] < 0 && rg.written[i] {
				out = append(out, rg.base+uintptr(i*reg.pageSize))
			}
		}
	}
	for _, d := range reg.dedicated {
		if d.written {
			out = append(out, d.base)
		}
	}
	return out
}

func (reg *Registry) groupBounds(rg *rangeDesc, idx int) (start, n int) {
	v := rg.allocInfo[idx]
	if v < 0 {
		return idx, int(-v)
	}
	start = idx - int(v)
	return start, int(-rg.allocInfo[start])
}

func (reg *Registry) findGeneral(addr uintptr) (*rangeDesc, int, error) {
	for _, rg := range reg.ranges {
		if addr >= rg.base && addr < rg.base+uintptr(rg.size*reg.pageSize) {
			idx := int((addr - rg.base) / uintptr(reg.pageSize))
			return rg, idx, nil
		}
	}
	return nil, 0, fmt.Errorf("rangeset: address %#x not found in any general range", addr)
}

// Close releases every range this registry has ever reserved, general
// and dedicated alike. Ranges are independent of one another, so they
// are released concurrently via errgroup the same way the teacher
// parallelises independent batch work in parse.go — shutdown of a
// heap with many large ranges is otherwise dominated by munmap(2)
// syscall latency done one at a time.
func (reg *Registry) Close() error {
	reg.mu.Lock()
	ranges := reg.ranges
	dedicated := reg.dedicated
	reg.ranges = nil
	reg.dedicated = nil
	reg.mu.Unlock()

	var eg errgroup.Group
	for _, rg := range ranges {
		rg := rg
		eg.Go(func() error {
			return reg.r.ReleaseRange(rg.base, rg.size*reg.pageSize)
		})
	}
	for _, d := range dedicated {
		d := d
		eg.Go(func() error {
			return reg.r.ReleaseRange(d.base, d.size*reg.pageSize)
		})
	}
	return eg.Wait()
}

func (reg *Registry) findDedicated(addr uintptr) (int, bool) {
	for i, d := range reg.dedicated {
		if addr == d.base {
			return i, true
		}
	}
	return 0, false
}

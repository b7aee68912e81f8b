// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"fmt"
	"sync"

	"github.com/fredericbonnet/colibri-sub002/internal/cellbits"
	"github.com/fredericbonnet/colibri-sub002/internal/rangeset"
)

// poolFreeHints is the number of run-length buckets a pool keeps a
// search-resume hint for: runs of exactly 1, 2, 3, 4 cells, and a
// catch-all bucket for everything longer. A hit in the right bucket
// turns a full page scan into an O(1) check most of the time, the same
// trick as the reference's lastFreeCell array.
const poolFreeHints = 5

// pool is one generation's arena: a linked list of pages threaded
// through their pageHeader.next links, plus bookkeeping used to decide
// when to grow, promote or compact (spec.md §4.1, §4.6).
type pool struct {
	mu sync.Mutex

	group    *groupData
	gen      generation
	registry *rangeset.Registry

	pages    Address // head of the page list, 0 if empty
	lastPage Address // tail, where new pages are appended

	nbPages    int
	nbAlloc    int // cells currently allocated
	nbSetCells int // cells marked live by the last collection of this pool

	hints [poolFreeHints]Address // page to resume FindRun from, by bucket
}

func newPool(group *groupData, gen generation, registry *rangeset.Registry) *pool {
	return &pool{group: group, gen: gen, registry: registry}
}

func hintBucket(n int) int {
	if n >= poolFreeHints {
		return poolFreeHints - 1
	}
	return n - 1
}

// allocCells returns the address of n contiguous free cells, growing
// the pool by one or more pages if none of its existing pages have
// room. Requests larger than a single page's capacity are satisfied by
// allocSpanningCells instead (spec.md §4.4 pool_alloc_cells).
func (p *pool) allocCells(n int) (Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n <= 0 {
		return 0, fmt.Errorf("colgc: cannot allocate %d cells", n)
	}
	if n > AvailableCells {
		return p.allocSpanningCells(n)
	}

	bucket := hintBucket(n)
	if start := p.hints[bucket]; start != 0 {
		if addr, ok := p.tryAllocFrom(start, n); ok {
			return addr, nil
		}
	}
	for page := p.pages; page != 0; page = pageAt(page).next() {
		if addr, ok := p.tryAllocFrom(page, n); ok {
			p.hints[bucket] = page
			return addr, nil
		}
	}
	if err := p.growByOnePage(); err != nil {
		return 0, err
	}
	if addr, ok := p.tryAllocFrom(p.lastPage, n); ok {
		return addr, nil
	}
	return 0, fmt.Errorf("colgc: freshly grown page cannot satisfy %d cells", n)
}

func (p *pool) tryAllocFrom(page Address, n int) (Address, bool) {
	h := pageAt(page)
	idx, ok := h.bitmap.FindRun(cellbits.Reserved, n)
	if !ok {
		return 0, false
	}
	h.bitmap.Set(idx, n)
	p.nbAlloc += n
	return cellAt(page, idx), true
}

// freeCells marks n cells starting at addr as free again. addr and n
// may span more than one page: a run allocated by allocSpanningCells
// always resumes each later page at cellbits.Reserved, the same
// address a physically contiguous walk from addr lands on once the
// current page's remaining cells are exhausted.
func (p *pool) freeCells(addr Address, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := n
	page := pageOf(addr)
	idx := cellIndex(addr)
	for remaining > 0 {
		h := pageAt(page)
		count := cellbits.Bits - idx
		if count > remaining {
			count = remaining
		}
		h.bitmap.Clear(idx, count)
		remaining -= count
		page = page.Add(PageSize)
		idx = cellbits.Reserved
	}
	p.nbAlloc -= n
}

func (p *pool) growByOnePage() error {
	base, err := p.registry.AllocPages(1, p.gen >= genOldStart)
	if err != nil {
		return err
	}
	addr := Address(base)
	h := pageAt(addr)
	h.init(p.gen, p.group)
	h.setFlags(pageFlagFirst | pageFlagLast)

	if p.lastPage != 0 {
		pageAt(p.lastPage).setNext(addr)
	} else {
		p.pages = addr
	}
	p.lastPage = addr
	p.nbPages++
	return nil
}

// allocSpanningCells satisfies a request for more cells than fit on a
// single page. It reserves enough pages end-to-end in one registry
// call — which itself decides whether that run is large enough to
// need its own dedicated range — and fills them front to back, every
// page but the last packed completely (spec.md §4.4 pool_alloc_cells,
// §8 scenario 3). The pages are linked onto the pool's own page list
// exactly like single-page growth, with FIRST set only on the first
// page and LAST only on the last, so forEachPage, sweep and
// recycleEmptyPages all keep working unmodified; recycleEmptyPages
// additionally groups pages sharing a FIRST..LAST run to reclaim or
// trim them as the one registry allocation they came from.
func (p *pool) allocSpanningCells(n int) (Address, error) {
	nPages := (n + AvailableCells - 1) / AvailableCells
	base, err := p.registry.AllocPages(nPages, p.gen >= genOldStart)
	if err != nil {
		return 0, err
	}

	first := Address(base)
	remaining := n
	var addr, prevPage Address
	for i := 0; i < nPages; i++ {
		page := first.Add(Bytes(i) * PageSize)
		h := pageAt(page)
		h.init(p.gen, p.group)

		count := AvailableCells
		if remaining < count {
			count = remaining
		}
		h.bitmap.Set(cellbits.Reserved, count)
		remaining -= count

		if i == 0 {
			h.setFlags(pageFlagFirst)
			addr = cellAt(page, cellbits.Reserved)
		} else {
			pageAt(prevPage).setNext(page)
		}
		if i == nPages-1 {
			h.setFlags(pageFlagLast)
		}
		prevPage = page
	}

	if p.lastPage != 0 {
		pageAt(p.lastPage).setNext(first)
	} else {
		p.pages = first
	}
	p.lastPage = prevPage
	p.nbPages += nPages
	p.nbAlloc += n
	return addr, nil
}

// recycleEmptyPages walks the page list once, grouping consecutive
// pages that were allocated together in a single registry call
// (FIRST..LAST, see allocSpanningCells/growByOnePage) and reclaiming
// each such group that has gone entirely empty (only the reserved
// header cell still set on every one of its pages). A group whose
// first page is still in use but whose later pages have all emptied
// out is trimmed back to just that first page instead of being left
// in place forever (spec.md §4.4 pool_free_empty_pages).
func (p *pool) recycleEmptyPages() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var prev Address
	page := p.pages
	for page != 0 {
		members, last, after := p.groupMembers(page)

		if p.allEmpty(members) {
			p.unlinkGroup(prev, after, last)
			if err := p.registry.FreePages(uintptr(page)); err != nil {
				return err
			}
			p.nbPages -= len(members)
			p.clearHints(members)
			page = after
			continue
		}

		if len(members) > 1 && p.allEmpty(members[1:]) {
			if err := p.registry.TrimPages(uintptr(page)); err != nil {
				return err
			}
			h := pageAt(page)
			h.setFlags(pageFlagLast)
			h.setNext(after)
			if p.lastPage == last {
				p.lastPage = page
			}
			p.nbPages -= len(members) - 1
			p.clearHints(members[1:])
		}

		prev = page
		page = after
	}
	return nil
}

// groupMembers returns every page belonging to the same registry
// allocation as first, in list order, followed by that group's last
// page and the page that follows the group in the pool's list (0 if
// none). Pages within one group are always consecutive in the pool's
// list, since allocSpanningCells and growByOnePage only ever append a
// whole group at a time.
func (p *pool) groupMembers(first Address) (members []Address, last, after Address) {
	page := first
	for {
		members = append(members, page)
		h := pageAt(page)
		if h.flag(pageFlagLast) {
			return members, page, h.next()
		}
		page = h.next()
	}
}

func (p *pool) allEmpty(pages []Address) bool {
	for _, page := range pages {
		if pageAt(page).bitmap.Count() != cellbits.Reserved {
			return false
		}
	}
	return true
}

func (p *pool) unlinkGroup(prev, after, last Address) {
	if prev != 0 {
		pageAt(prev).setNext(after)
	} else {
		p.pages = after
	}
	if p.lastPage == last {
		p.lastPage = prev
	}
}

func (p *pool) clearHints(pages []Address) {
	for i := range p.hints {
		for _, page := range pages {
			if p.hints[i] == page {
				p.hints[i] = 0
			}
		}
	}
}

// fillRatio returns the fraction of this pool's available cells that
// were live as of the last collection, used to decide whether this
// pool's pages are full enough to promote to the next generation
// (spec.md §4.6, PromotePageFillRatio).
func (p *pool) fillRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := p.nbPages * AvailableCells
	if total == 0 {
		return 0
	}
	return float64(p.nbSetCells) / float64(total)
}

// forEachPage invokes f for every page in the pool's list, in list
// order. f must not mutate the list itself.
func (p *pool) forEachPage(f func(Address, *pageHeader)) {
	for page := p.pages; page != 0; {
		h := pageAt(page)
		next := h.next()
		f(page, h)
		page = next
	}
}


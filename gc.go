// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fredericbonnet/colibri-sub002/internal/cellbits"
)

// scope decides the oldest generation a collection triggered with
// requested should actually touch (spec.md §4.1, §9 open question on
// promotion/compaction policy).
//
// The policy resolved here is conservative: generation g (g ≥
// genSurvivor) only enters scope once the next-younger generation has
// itself been collected GCGenFactor times since g was last collected.
// This is the classic generational-GC "every Nth minor collection is
// also a major collection of the next tier" schedule, and it keeps a
// single stray AllocCells call from ever walking further up the
// generation chain than the allocation pressure actually warrants.
func (g *groupData) scope(requested generation) generation {
	requested = gcThreshold(requested)
	scope := genEden
	for gen := genSurvivor; gen <= requested; gen++ {
		if g.nbCollections[gen-1] == 0 || g.nbCollections[gen-1]%GCGenFactor != 0 {
			break
		}
		scope = gen
	}
	return scope
}

// markState tracks, for the duration of one collection, which cells
// have been reached. It lives in ordinary Go memory rather than inside
// the managed heap: a page's header already uses its one reserved cell
// entirely for the allocation bitmap, generation, flags and next-page
// link (see page.go), so there is no room left in it for a second,
// mark-phase-only bitmap.
type markState struct {
	mu     sync.Mutex
	marked map[Address]*cellbits.Bitmap
}

func newMarkState() *markState {
	return &markState{marked: make(map[Address]*cellbits.Bitmap)}
}

// markIfUnmarked marks cell as reached and reports true, or reports
// false if it was already marked by a previous call.
func (m *markState) markIfUnmarked(cell Address) bool {
	page := pageOf(cell)
	idx := cellIndex(cell)
	m.mu.Lock()
	defer m.mu.Unlock()
	bm := m.marked[page]
	if bm == nil {
		bm = &cellbits.Bitmap{}
		m.marked[page] = bm
	}
	if bm.Test(idx) {
		return false
	}
	bm.Set(idx, 1)
	return true
}

func (m *markState) isMarked(cell Address) bool {
	page := pageOf(cell)
	idx := cellIndex(cell)
	m.mu.Lock()
	defer m.mu.Unlock()
	bm := m.marked[page]
	return bm != nil && bm.Test(idx)
}

// collect runs one collection, scoped to g.scope(requested). Mutators
// must not be running concurrently — requestCollection (thread.go) is
// responsible for that.
func (g *groupData) collect(requested generation) {
	scope := g.scope(requested)

	var roots []Word
	g.roots.forEach(func(addr Address) { roots = append(roots, FromAddress(addr)) })
	roots = append(roots, g.parentRoots()...)

	ms := newMarkState()
	g.mark(roots, scope, ms)
	g.sweep(scope, ms)
	g.promote(scope)
	g.parents.reset()

	for gen := genEden; gen <= scope; gen++ {
		g.nbCollections[gen]++
	}
}

// parentRoots scans every page g.parents has registered and returns the
// children of each live cell found there, not the cells themselves. A
// parent page is by construction older than any minor collection's
// scope — that is the entire reason it needs rescanning instead of
// being reached from the normal root set — so its own cells must never
// be run through markChunk's scope check, which treats "older than
// scope" as "already known live, stop here." Handing back the children
// directly lets the ones that lie inside scope get marked and traced
// like any other root, while the parent cell holding the pointer is
// never itself re-examined.
func (g *groupData) parentRoots() []Word {
	var roots []Word
	g.parents.forEach(func(page Address) {
		h := pageAt(page)
		for i := cellbits.Reserved; i < cellbits.Bits; i++ {
			if !h.bitmap.Test(i) {
				continue
			}
			cell := cellAt(page, i)
			ti := g.typeInfoFor(cell)
			if ti == nil || ti.Children == nil {
				continue
			}
			ti.Children(cell, func(child Word) {
				roots = append(roots, child)
			})
		}
	})
	return roots
}

// mark traces every cell reachable from roots that lies within scope,
// fanning the root set out across GOMAXPROCS goroutines the way
// errgroup-based batch processing elsewhere in this codebase does:
// each goroutine owns a disjoint slice of the initial roots and a
// private DFS stack, synchronizing with the others only through the
// shared markState.
func (g *groupData) mark(roots []Word, scope generation, ms *markState) {
	if len(roots) == 0 {
		return
	}
	shards := runtime.GOMAXPROCS(-1)
	if shards > len(roots) {
		shards = len(roots)
	}
	if shards < 1 {
		shards = 1
	}
	per := (len(roots) + shards - 1) / shards

	var eg errgroup.Group
	for s := 0; s < shards; s++ {
		start := s * per
		if start >= len(roots) {
			break
		}
		end := start + per
		if end > len(roots) {
			end = len(roots)
		}
		chunk := roots[start:end]
		eg.Go(func() error {
			g.markChunk(chunk, scope, ms)
			return nil
		})
	}
	_ = eg.Wait() // Children never returns an error; kept for idiom consistency with parse.go's shard fan-out.
}

func (g *groupData) markChunk(chunk []Word, scope generation, ms *markState) {
	stack := append([]Word(nil), chunk...)
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !w.IsCell() {
			continue
		}
		addr := w.Address()
		h := pageAt(pageOf(addr))
		if h.generation() > scope {
			continue // outside this collection's scope; assumed live
		}
		if !ms.markIfUnmarked(addr) {
			continue
		}
		ti := g.typeInfoFor(addr)
		if ti == nil || ti.Children == nil {
			continue
		}
		ti.Children(addr, func(child Word) {
			stack = append(stack, child)
		})
	}
}

func (g *groupData) typeInfoFor(addr Address) *TypeInfo {
	reg := g.typeReg
	if reg == nil {
		return nil
	}
	w := loadWord(addr, 0)
	if w.KindOf() != KindInt {
		return nil
	}
	id := TypeID(w.Int())
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if id == 0 || int(id) > len(reg.infos) {
		return nil
	}
	return reg.infos[id-1]
}

// sweep reclaims every unmarked cell in every generation within scope:
// it calls each cell's TypeInfo.Free hook (if any) and clears its
// allocation bit, then returns fully empty pages to the registry.
//
// Eden (spec.md §5) is split across one unshared pool per live thread
// plus the group's shared pool, which inherited the pages of any
// thread that has since Left (see Thread.Leave); every generation
// above eden still has exactly one shared pool.
func (g *groupData) sweep(scope generation, ms *markState) {
	g.sweepPool(g.pools[genEden], ms)
	for td := g.threads; td != nil; td = td.next {
		g.sweepPool(td.eden, ms)
	}
	for gen := genSurvivor; gen <= scope; gen++ {
		g.sweepPool(g.pools[gen], ms)
	}
}

func (g *groupData) sweepPool(p *pool, ms *markState) {
	p.mu.Lock()
	p.nbSetCells = 0
	p.forEachPage(func(page Address, h *pageHeader) {
		for i := cellbits.Reserved; i < cellbits.Bits; i++ {
			if !h.bitmap.Test(i) {
				continue
			}
			cell := cellAt(page, i)
			if ms.isMarked(cell) {
				p.nbSetCells++
				continue
			}
			if ti := g.typeInfoFor(cell); ti != nil && ti.Free != nil {
				ti.Free(cell)
			}
			h.bitmap.Clear(i, 1)
			p.nbAlloc--
		}
	})
	p.mu.Unlock()
	_ = p.recycleEmptyPages()
}

// promote moves every page of the oldest generation just collected
// into the next generation up, once that generation's occupancy
// crosses PromotePageFillRatio (spec.md §4.6, §9 open question on
// promotion/compaction policy). It does nothing when scope is eden or
// the oldest generation: eden pages are never promoted, and the oldest
// generation has no generation above it.
//
// The policy resolved here is conservative in the same sense as
// scope: promotion only ever relinks whole pages onto the next pool's
// list and renumbers their generation in the page header — it never
// copies cells between pages. A page's cell addresses therefore never
// change once allocated, so no other live object's Children-reachable
// pointers to it ever need fixing up, and the root trie's keys stay
// valid across a promotion. The cost is that a promoted generation can
// carry some internal fragmentation forward instead of compacting it
// away; recycleEmptyPages (pool.go) still reclaims any page that
// becomes wholly empty on a later collection.
func (g *groupData) promote(scope generation) {
	if scope == genEden || scope >= generation(GCMaxGenerations-1) {
		return
	}
	src := g.pools[scope]
	if src.fillRatio() < PromotePageFillRatio {
		return
	}
	g.relinkPages(src, g.pools[scope+1], scope+1)
	if scope+1 > g.compactGen {
		g.compactGen = scope + 1
	}
}

// relinkPages reassigns every page of src to dst's generation and
// splices src's page list onto the tail of dst's.
func (g *groupData) relinkPages(src, dst *pool, newGen generation) {
	src.mu.Lock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	defer src.mu.Unlock()

	src.forEachPage(func(_ Address, h *pageHeader) {
		h.setGeneration(newGen)
	})
	if src.pages == 0 {
		return
	}
	if dst.lastPage != 0 {
		pageAt(dst.lastPage).setNext(src.pages)
	} else {
		dst.pages = src.pages
	}
	dst.lastPage = src.lastPage
	dst.nbPages += src.nbPages
	dst.nbAlloc += src.nbAlloc

	src.pages, src.lastPage = 0, 0
	src.nbPages, src.nbAlloc, src.nbSetCells = 0, 0, 0
	src.hints = [poolFreeHints]Address{}
}


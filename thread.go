// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"fmt"
	"sync"
)

// threadData is the per-mutator state a thread accumulates while it
// holds a Thread handle into a Group.
type threadData struct {
	group      *groupData
	next       *threadData // ring link, guarded by group.mu
	eden       *pool       // this thread's own eden arena; unshared, no locking needed
	pauseDepth int         // this thread's own PauseGC nesting
}

// Thread is a mutator's handle into a Group, obtained with Enter and
// released with Leave. A Thread must not be used from more than one
// goroutine at a time.
type Thread struct {
	data *threadData
}

// Enter joins g, returning a handle the calling goroutine uses for
// allocation and collection coordination until it calls Leave. Each
// Thread gets its own eden pool (spec.md §5: eden pools are unshared,
// one per thread, so ordinary allocation never takes a lock another
// mutator could be holding); the pool draws pages from the same
// registry every other pool in the group uses.
// ThreadingSingle groups reject a second concurrent Thread.
func (g *Group) Enter() (*Thread, error) {
	gd := g.data
	gd.mu.Lock()
	defer gd.mu.Unlock()

	if gd.model == ThreadingSingle && gd.threads != nil {
		return nil, fmt.Errorf("colgc: group uses ThreadingSingle and already has a thread")
	}
	td := &threadData{
		group: gd,
		next:  gd.threads,
		eden:  newPool(gd, genEden, gd.registry),
	}
	gd.threads = td
	return &Thread{data: td}, nil
}

// Leave removes t from its group. t must hold no outstanding
// PauseGC/ResumeGC balance. Any pages t's eden pool had grown to are
// relinked onto the group's shared eden pool first, so a later
// collection still finds and sweeps whatever t allocated.
func (t *Thread) Leave() {
	gd := t.data.group
	gd.mu.Lock()
	defer gd.mu.Unlock()

	gd.relinkPages(t.data.eden, gd.pools[genEden], genEden)

	if gd.threads == t.data {
		gd.threads = t.data.next
		return
	}
	for p := gd.threads; p != nil; p = p.next {
		if p.next == t.data {
			p.next = t.data.next
			return
		}
	}
}

// gcCoordinator serializes collections against every Thread's
// PauseGC/ResumeGC bracket: a collection only runs once depth — the
// sum of all threads' outstanding PauseGC calls — reaches zero.
type gcCoordinator struct {
	mu      sync.Mutex
	cond    *sync.Cond
	depth   int
	pending bool
}

func newGCCoordinator() *gcCoordinator {
	c := &gcCoordinator{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// PauseGC marks a region of t's execution during which no collection
// may run — typically while t holds a raw, unbarriered pointer into
// the heap. Calls nest; the collector only proceeds once every nested
// PauseGC has a matching ResumeGC.
func (t *Thread) PauseGC() {
	c := t.data.group.coord
	c.mu.Lock()
	c.depth++
	t.data.pauseDepth++
	c.mu.Unlock()
}

// ResumeGC closes the innermost PauseGC region opened by t.
func (t *Thread) ResumeGC() {
	c := t.data.group.coord
	c.mu.Lock()
	c.depth--
	t.data.pauseDepth--
	if c.depth == 0 {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// TryPauseGC behaves like PauseGC but refuses to nest a new pause
// region while a collection is pending, returning false instead of
// blocking it further. Callers that can retry their work later (e.g. a
// background compaction helper) should prefer this over PauseGC.
func (t *Thread) TryPauseGC() bool {
	c := t.data.group.coord
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return false
	}
	c.depth++
	t.data.pauseDepth++
	return true
}

// requestCollection blocks until every thread's PauseGC regions have
// closed, then runs fn (typically groupData.collect) with no mutator
// holding a raw pointer into the heap.
func (c *gcCoordinator) requestCollection(fn func()) {
	c.mu.Lock()
	c.pending = true
	for c.depth > 0 {
		c.cond.Wait()
	}
	fn()
	c.pending = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import "sync"

// parentEntry is one node of the singly-linked list of pages known to
// hold a pointer from an older generation into a younger one
// (spec.md §4.5). A minor collection seeds its root set from these
// pages instead of rescanning the whole of every older generation.
type parentEntry struct {
	page Address
	next *parentEntry
}

// parentList is a group's set of parent pages, populated by the write
// barrier (see barrier.go) whenever a store crosses generations, read
// by every collection and emptied at its end (see groupData.collect).
type parentList struct {
	mu   sync.Mutex
	head *parentEntry
	seen map[Address]bool
}

func newParentList() *parentList {
	return &parentList{seen: make(map[Address]bool)}
}

// add registers page as holding a cross-generational pointer, if it
// isn't already tracked. It also sets the page's pageFlagParent so a
// sweep of the page list can recognize it without consulting this
// list directly.
func (pl *parentList) add(page Address) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.seen[page] {
		return
	}
	pl.seen[page] = true
	pl.head = &parentEntry{page: page, next: pl.head}
	pageAt(page).setFlags(pageFlagParent)
}

// forEach invokes f once for every tracked parent page. f must not
// mutate the list.
func (pl *parentList) forEach(f func(Address)) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	for e := pl.head; e != nil; e = e.next {
		f(e.page)
	}
}

// reset clears every tracked page's pageFlagParent and empties the
// list. Called after a collection has rescanned (and thereby accounted
// for) every parent page, so the next generation of cross-gen writes
// starts tracking from scratch.
func (pl *parentList) reset() {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	for e := pl.head; e != nil; e = e.next {
		pageAt(e.page).clearFlags(pageFlagParent)
	}
	pl.head = nil
	pl.seen = make(map[Address]bool)
}

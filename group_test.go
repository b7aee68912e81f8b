// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadingModelString(t *testing.T) {
	assert.Equal(t, "single", ThreadingSingle.String())
	assert.Equal(t, "async", ThreadingAsync.String())
	assert.Equal(t, "shared", ThreadingShared.String())
}

func TestEnterSingleRejectsSecondThread(t *testing.T) {
	g := NewGroup(ThreadingSingle)

	first, err := g.Enter()
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = g.Enter()
	assert.Error(t, err)

	first.Leave()

	second, err := g.Enter()
	require.NoError(t, err)
	assert.NotNil(t, second)
}

func TestEnterAsyncAllowsMultipleThreads(t *testing.T) {
	g := NewGroup(ThreadingAsync)

	t1, err := g.Enter()
	require.NoError(t, err)
	t2, err := g.Enter()
	require.NoError(t, err)

	assert.NotNil(t, t1)
	assert.NotNil(t, t2)
}

func TestLeaveUnlinksFromMiddleOfRing(t *testing.T) {
	g := NewGroup(ThreadingAsync)

	t1, err := g.Enter()
	require.NoError(t, err)
	t2, err := g.Enter()
	require.NoError(t, err)
	t3, err := g.Enter()
	require.NoError(t, err)

	t2.Leave()

	// The ring should still contain t1 and t3 after removing the middle
	// entrant; Leave must not have corrupted the remaining links.
	var found []*threadData
	for p := g.data.threads; p != nil; p = p.next {
		found = append(found, p)
	}
	assert.Len(t, found, 2)
	assert.Contains(t, found, t1.data)
	assert.Contains(t, found, t3.data)
}

func TestPoolForReturnsDistinctPoolsPerGeneration(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	for i := generation(0); i < GCMaxGenerations; i++ {
		p := g.data.poolFor(i)
		require.NotNil(t, p)
		assert.Equal(t, i, p.gen)
	}
}

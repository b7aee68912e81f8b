// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseResumeNesting(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	th, err := g.Enter()
	require.NoError(t, err)

	th.PauseGC()
	th.PauseGC()
	assert.Equal(t, 2, g.data.coord.depth)
	assert.Equal(t, 2, th.data.pauseDepth)

	th.ResumeGC()
	assert.Equal(t, 1, g.data.coord.depth)
	th.ResumeGC()
	assert.Equal(t, 0, g.data.coord.depth)
	assert.Equal(t, 0, th.data.pauseDepth)
}

func TestTryPauseGCRefusesWhilePending(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	th, err := g.Enter()
	require.NoError(t, err)

	th.PauseGC() // depth=1, blocks a pending requestCollection

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.data.coord.requestCollection(func() {})
	}()

	// Give the goroutine a chance to mark pending=true and start waiting.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		g.data.coord.mu.Lock()
		pending := g.data.coord.pending
		g.data.coord.mu.Unlock()
		if pending {
			break
		}
		time.Sleep(time.Millisecond)
	}

	assert.False(t, th.TryPauseGC(), "TryPauseGC must refuse while a collection is pending")

	th.ResumeGC() // lets the pending requestCollection proceed and finish
	wg.Wait()
}

func TestRequestCollectionWaitsForPauseToClose(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	th, err := g.Enter()
	require.NoError(t, err)

	th.PauseGC()

	ran := make(chan struct{})
	go func() {
		g.data.coord.requestCollection(func() { close(ran) })
	}()

	select {
	case <-ran:
		t.Fatal("requestCollection ran fn before the pause region closed")
	case <-time.After(50 * time.Millisecond):
	}

	th.ResumeGC()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("requestCollection did not run fn after the pause region closed")
	}
}

func TestRequestCollectionRunsImmediatelyWithNoPause(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	ran := false
	g.data.coord.requestCollection(func() { ran = true })
	assert.True(t, ran)
}

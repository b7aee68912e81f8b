// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package progress is a small terminal spinner for long-running CLI
// tools, adapted from the teacher's cmd/internal/spinner for use
// outside cmd/ as well (colgc-stress and colgc-size-dist both report
// trace replay progress through it).
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Option configures a spinner started with Start.
type Option func(cfg *spinnerCfg)

// Format sets the spinner's format string, which must have exactly one
// %f-style verb for the percent-complete value.
func Format(ft string) Option {
	return func(cfg *spinnerCfg) {
		cfg.format = ft
	}
}

// Period sets how often the spinner resamples and redraws.
func Period(p time.Duration) Option {
	return func(cfg *spinnerCfg) {
		cfg.period = p
	}
}

type spinnerCfg struct {
	period time.Duration
	format string
}

var state struct {
	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// Start starts a new global spinner writing to standard output, using
// sample to fetch a 0..1 completion fraction on each tick. Start must
// not be called again until Stop returns; the spinner is process-wide.
func Start(sample func() float64, options ...Option) {
	cfg := spinnerCfg{
		period: time.Second,
		format: "Progress: %.1f%%",
	}
	for _, opt := range options {
		opt(&cfg)
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.running {
		panic("progress: tried to start spinner twice")
	}

	state.running = true
	state.done = make(chan struct{})
	go func() {
		for {
			prog := sample()
			fmt.Printf(cfg.format+"\r", prog*100)
			select {
			case <-state.done:
				fmt.Println()
				close(state.done)
				return
			case <-time.After(cfg.period):
			}
		}
	}()
}

// Stop stops the currently running spinner, if any.
func Stop() {
	state.mu.Lock()
	if !state.running {
		state.mu.Unlock()
		return
	}
	done := state.done
	state.mu.Unlock()

	done <- struct{}{}
	<-done

	state.mu.Lock()
	state.running = false
	state.mu.Unlock()
}

// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"fmt"
	"os"
)

// ErrorLevel classifies a reported error by severity (spec.md §7),
// mirroring the original library's four-level taxonomy.
type ErrorLevel int

const (
	// ErrorLevelFatal means the heap is no longer in a usable state;
	// the default ErrorProc panics after reporting.
	ErrorLevelFatal ErrorLevel = iota
	// ErrorLevelError is a recoverable internal inconsistency, e.g. an
	// allocation request the registry could not satisfy.
	ErrorLevelError
	// ErrorLevelTypeCheck flags a caller passing a Word of the wrong
	// Kind to an operation.
	ErrorLevelTypeCheck
	// ErrorLevelValueCheck flags a caller passing an out-of-range or
	// otherwise invalid value.
	ErrorLevelValueCheck
)

func (l ErrorLevel) String() string {
	switch l {
	case ErrorLevelFatal:
		return "fatal"
	case ErrorLevelError:
		return "error"
	case ErrorLevelTypeCheck:
		return "type check"
	case ErrorLevelValueCheck:
		return "value check"
	default:
		return fmt.Sprintf("ErrorLevel(%d)", int(l))
	}
}

// ErrorProc is called whenever colgc detects an error attributable to
// the caller or its own bookkeeping. source identifies the operation
// that raised it (e.g. "AllocCells").
type ErrorProc func(level ErrorLevel, source, message string)

func defaultErrorProc(level ErrorLevel, source, message string) {
	fmt.Fprintf(os.Stderr, "colgc: %s: %s: %s\n", level, source, message)
	if level == ErrorLevelFatal {
		panic(fmt.Sprintf("colgc: fatal error in %s: %s", source, message))
	}
}

// SetErrorProc installs proc as g's error handler, replacing the
// default (which logs to stderr and panics on ErrorLevelFatal). Passing
// nil restores the default.
func (g *Group) SetErrorProc(proc ErrorProc) {
	g.data.mu.Lock()
	defer g.data.mu.Unlock()
	if proc == nil {
		proc = defaultErrorProc
	}
	g.data.errorProc = proc
}

// ErrorProc returns g's current error handler.
func (g *Group) ErrorProc() ErrorProc {
	g.data.mu.Lock()
	defer g.data.mu.Unlock()
	return g.data.errorProc
}

func (g *groupData) raise(level ErrorLevel, source, format string, args ...interface{}) {
	g.mu.Lock()
	proc := g.errorProc
	g.mu.Unlock()
	proc(level, source, fmt.Sprintf(format, args...))
}

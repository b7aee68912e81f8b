// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorLevelString(t *testing.T) {
	assert.Equal(t, "fatal", ErrorLevelFatal.String())
	assert.Equal(t, "error", ErrorLevelError.String())
	assert.Equal(t, "type check", ErrorLevelTypeCheck.String())
	assert.Equal(t, "value check", ErrorLevelValueCheck.String())
}

func TestSetErrorProcInstallsCustomHandler(t *testing.T) {
	g := NewGroup(ThreadingSingle)

	var gotLevel ErrorLevel
	var gotSource, gotMessage string
	g.SetErrorProc(func(level ErrorLevel, source, message string) {
		gotLevel, gotSource, gotMessage = level, source, message
	})

	g.data.raise(ErrorLevelValueCheck, "TestOp", "bad value %d", 7)

	assert.Equal(t, ErrorLevelValueCheck, gotLevel)
	assert.Equal(t, "TestOp", gotSource)
	assert.Equal(t, "bad value 7", gotMessage)
}

func TestSetErrorProcNilRestoresDefault(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	g.SetErrorProc(func(ErrorLevel, string, string) {})
	g.SetErrorProc(nil)

	// defaultErrorProc panics on ErrorLevelFatal; confirm it's back.
	assert.Panics(t, func() {
		g.data.raise(ErrorLevelFatal, "TestOp", "boom")
	})
}

func TestDefaultErrorProcDoesNotPanicOnNonFatal(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	assert.NotPanics(t, func() {
		g.data.raise(ErrorLevelError, "TestOp", "recoverable")
	})
}

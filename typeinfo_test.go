// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package colgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTypeAssignsIncreasingIDs(t *testing.T) {
	g := NewGroup(ThreadingSingle)

	id1 := g.RegisterType(TypeInfo{Name: "first"})
	id2 := g.RegisterType(TypeInfo{Name: "second"})

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, "first", g.TypeInfo(id1).Name)
	assert.Equal(t, "second", g.TypeInfo(id2).Name)
}

func TestTypeInfoUnregisteredIsNil(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	assert.Nil(t, g.TypeInfo(0))
	assert.Nil(t, g.TypeInfo(TypeID(999)))
}

func TestTypeInfoLazyRegistryInit(t *testing.T) {
	g := NewGroup(ThreadingSingle)
	// Calling TypeInfo before any RegisterType must not panic even
	// though the registry is created lazily.
	require.Nil(t, g.TypeInfo(TypeID(1)))
}

// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build colgc_debug_protect

package colgc

// debugProtectBuild enables the mprotect-backed assertion path: pages
// outside the current Write call are kept read-only, so any store that
// bypasses Barrier.Write faults immediately instead of silently
// corrupting the parent list. Only meant for tests and development
// builds; it serializes every write through two syscalls.
const debugProtectBuild = true

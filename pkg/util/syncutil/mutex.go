// Copyright 2016 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package syncutil provides a Mutex wrapper that the rest of the module
// locks and unlocks through, rather than sync.Mutex directly, so that a
// build tag can later swap in a deadlock-detecting implementation without
// touching call sites.
package syncutil

import "sync"

// A Mutex is a mutual exclusion lock. It embeds sync.Mutex and exists so
// that every lock acquisition in this module goes through one type,
// mirroring cockroach's pkg/util/syncutil.Mutex.
type Mutex struct {
	sync.Mutex
}

// AssertHeld is a documentation aid: callers that require the mutex to
// already be held by the calling goroutine call this at the top of an
// Unlocked helper. It does not itself enforce anything without the race
// detector or a deadlock build tag.
func (m *Mutex) AssertHeld() {}

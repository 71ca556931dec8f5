// Copyright 2024 The Docdb Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package hlc

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic timestamp source the MVCC coordinator draws new
// transaction timestamps from. Implementations must be safe for concurrent
// use: the coordinator calls into a single shared Clock from many threads.
type Clock interface {
	// Now returns the current timestamp. Successive calls never return a
	// smaller value than a previous call observed by any caller.
	Now() Timestamp
	// NowLatest returns Now() advanced by the clock's maximum error bound,
	// for callers that need an upper bound on "current time" rather than a
	// best estimate (e.g. a transaction that wants to be sure it is not
	// assigned a timestamp any other clock in the system could still
	// consider to be in the past).
	NowLatest() Timestamp
	// Update advances the clock to at least t, as happens when a thread
	// observes a timestamp originating from another clock (e.g. a
	// cross-node RPC). It never moves the clock backwards.
	Update(t Timestamp)
	// MaxOffset returns the configured maximum clock error bound used by
	// NowLatest.
	MaxOffset() time.Duration
}

// SystemClock is a Clock backed by the process wall clock plus a logical
// tiebreaker, in the style of a hybrid logical clock: Now() never returns a
// timestamp less than or equal to one it has already returned, even if the
// wall clock appears to regress or two calls land in the same wall-clock
// tick.
type SystemClock struct {
	maxOffset time.Duration
	// last is the highest Timestamp ever returned by Now, stored as a raw
	// uint64 for atomic access.
	last atomic.Uint64
	// wallNow is overridable so tests can inject a synthetic wall clock
	// without faking time.Now globally.
	wallNow func() time.Time
}

// NewSystemClock returns a SystemClock with the given maximum clock error
// bound.
func NewSystemClock(maxOffset time.Duration) *SystemClock {
	return &SystemClock{maxOffset: maxOffset, wallNow: time.Now}
}

func (c *SystemClock) Now() Timestamp {
	for {
		wall := Timestamp(c.wallNow().UnixNano())
		prev := Timestamp(c.last.Load())
		next := wall
		if next <= prev {
			next = prev.Next()
		}
		if c.last.CompareAndSwap(uint64(prev), uint64(next)) {
			return next
		}
	}
}

func (c *SystemClock) NowLatest() Timestamp {
	now := c.Now()
	return Timestamp(uint64(now) + uint64(c.maxOffset.Nanoseconds()))
}

func (c *SystemClock) Update(t Timestamp) {
	for {
		prev := Timestamp(c.last.Load())
		if t <= prev {
			return
		}
		if c.last.CompareAndSwap(uint64(prev), uint64(t)) {
			return
		}
	}
}

func (c *SystemClock) MaxOffset() time.Duration { return c.maxOffset }

// ManualClock is a Clock test double that never advances on its own. Tests
// drive it explicitly via Set/Advance, in the same spirit as the injected
// *hlc.Clock collaborator that cockroach's storage layer takes rather than
// reading a global clock.
type ManualClock struct {
	maxOffset time.Duration
	value     atomic.Uint64
}

// NewManualClock returns a ManualClock initialized to the given timestamp.
func NewManualClock(initial Timestamp) *ManualClock {
	m := &ManualClock{}
	m.value.Store(uint64(initial))
	return m
}

func (m *ManualClock) Now() Timestamp { return Timestamp(m.value.Load()) }

func (m *ManualClock) NowLatest() Timestamp {
	return Timestamp(uint64(m.Now()) + uint64(m.maxOffset.Nanoseconds()))
}

func (m *ManualClock) Update(t Timestamp) {
	for {
		prev := Timestamp(m.value.Load())
		if t <= prev {
			return
		}
		if m.value.CompareAndSwap(uint64(prev), uint64(t)) {
			return
		}
	}
}

func (m *ManualClock) MaxOffset() time.Duration { return m.maxOffset }

// SetMaxOffset configures the error bound NowLatest adds on top of Now().
func (m *ManualClock) SetMaxOffset(d time.Duration) { m.maxOffset = d }

// Set moves the clock to exactly t. It panics if t is not greater than the
// clock's current value, matching the coordinator's requirement that the
// clock never regress.
func (m *ManualClock) Set(t Timestamp) {
	for {
		prev := Timestamp(m.value.Load())
		if t <= prev {
			panic("hlc: ManualClock.Set must strictly advance the clock")
		}
		if m.value.CompareAndSwap(uint64(prev), uint64(t)) {
			return
		}
	}
}

// Advance moves the clock forward by n ordinal steps.
func (m *ManualClock) Advance(n uint64) Timestamp {
	return Timestamp(m.value.Add(n))
}

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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystemClockMonotonic(t *testing.T) {
	var wall time.Time
	c := NewSystemClock(0)
	c.wallNow = func() time.Time { return wall }

	first := c.Now()
	second := c.Now()
	require.True(t, first.Less(second), "two calls landing in the same wall-clock tick must still strictly advance")

	wall = wall.Add(-time.Hour)
	third := c.Now()
	require.True(t, second.Less(third), "a wall-clock regression must not move the timestamp backwards")
}

func TestSystemClockConcurrentNowNeverDuplicates(t *testing.T) {
	c := NewSystemClock(0)
	const n = 200
	seen := make([]Timestamp, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = c.Now()
		}(i)
	}
	wg.Wait()

	unique := make(map[Timestamp]bool, n)
	for _, ts := range seen {
		require.False(t, unique[ts], "duplicate timestamp %v handed out under concurrent Now()", ts)
		unique[ts] = true
	}
}

func TestSystemClockUpdateNeverRegresses(t *testing.T) {
	c := NewSystemClock(0)
	c.wallNow = func() time.Time { return time.Unix(0, 100) }
	first := c.Now()

	c.Update(Timestamp(uint64(first) - 1))
	require.Equal(t, first, Timestamp(c.last.Load()))

	c.Update(first + 1000)
	require.Equal(t, first+1000, Timestamp(c.last.Load()))
}

func TestSystemClockNowLatestAddsOffset(t *testing.T) {
	c := NewSystemClock(500 * time.Millisecond)
	c.wallNow = func() time.Time { return time.Unix(0, 1000) }
	now := c.Now()
	require.Equal(t, now+Timestamp(500*time.Millisecond), c.NowLatest())
}

func TestManualClockSetRejectsNonAdvancing(t *testing.T) {
	m := NewManualClock(Timestamp(10))
	require.Panics(t, func() { m.Set(Timestamp(10)) })
	require.Panics(t, func() { m.Set(Timestamp(5)) })
	require.NotPanics(t, func() { m.Set(Timestamp(11)) })
}

func TestManualClockAdvance(t *testing.T) {
	m := NewManualClock(Timestamp(10))
	require.Equal(t, Timestamp(15), m.Advance(5))
	require.Equal(t, Timestamp(15), m.Now())
}

func TestManualClockUpdateNeverRegresses(t *testing.T) {
	m := NewManualClock(Timestamp(10))
	m.Update(Timestamp(5))
	require.Equal(t, Timestamp(10), m.Now())
	m.Update(Timestamp(20))
	require.Equal(t, Timestamp(20), m.Now())
}

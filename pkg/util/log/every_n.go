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

package log

import (
	"sync/atomic"
	"time"
)

// EveryN provides a way to rate limit spammy log messages: it tracks how
// recently a given message has been emitted so that a caller can decide
// whether logging it again is worth the noise.
type EveryN struct {
	n      int64
	lastNs atomic.Int64
}

// Every is a convenience constructor for an EveryN that allows a log
// message once per n duration.
func Every(n time.Duration) EveryN {
	return EveryN{n: int64(n)}
}

// ShouldLog returns whether it's been more than N time since the last
// event that returned true.
func (e *EveryN) ShouldLog() bool {
	now := time.Now().UnixNano()
	last := e.lastNs.Load()
	if now-last < e.n {
		return false
	}
	return e.lastNs.CompareAndSwap(last, now)
}

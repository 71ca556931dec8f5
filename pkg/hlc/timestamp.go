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

// Package hlc defines the opaque, totally ordered Timestamp used to name a
// transaction's commit point, and the Clock interface the MVCC coordinator
// draws new timestamps from.
package hlc

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// Timestamp is an opaque 64-bit monotonic identifier with total order. It
// has no wall-clock semantics exposed to callers beyond "larger value means
// later"; the clock implementation is free to derive it from wall time, a
// logical counter, or a hybrid of the two.
type Timestamp uint64

const (
	// Invalid is the reserved value denoting "no timestamp". It must never
	// appear in an encoded persisted key.
	Invalid Timestamp = 0

	// Max is a distinguished placeholder used by batched writes whose real
	// timestamp is not yet known (it is assigned once log ordering is
	// fixed). It sorts after every other timestamp.
	Max Timestamp = ^Timestamp(0)

	// Min is the smallest timestamp that a real transaction can ever be
	// assigned; it is one above Invalid so that Invalid itself never
	// collides with a live value.
	Min Timestamp = 1
)

// Less reports whether t sorts strictly before other.
func (t Timestamp) Less(other Timestamp) bool { return t < other }

// LessEq reports whether t sorts at or before other.
func (t Timestamp) LessEq(other Timestamp) bool { return t <= other }

// Next returns the smallest timestamp strictly greater than t. It panics if
// that successor would be the Max sentinel (t >= Max-1), which should be
// unreachable in practice (it would require issuing 2^64-2 timestamps).
func (t Timestamp) Next() Timestamp {
	if t >= Max-1 {
		panic(fmt.Sprintf("hlc: timestamp %d has no successor below the Max sentinel", uint64(t)))
	}
	return t + 1
}

// IsValid reports whether t is not the Invalid sentinel.
func (t Timestamp) IsValid() bool { return t != Invalid }

// String implements fmt.Stringer with a debug-friendly rendering of the
// sentinel values.
func (t Timestamp) String() string {
	switch t {
	case Invalid:
		return "Timestamp(invalid)"
	case Max:
		return "Timestamp(max)"
	default:
		return fmt.Sprintf("Timestamp(%d)", uint64(t))
	}
}

// SafeFormat implements redact.SafeFormatter so that timestamps can be
// logged without being treated as sensitive payload data.
func (t Timestamp) SafeFormat(p redact.SafePrinter, _ rune) {
	p.Print(redact.SafeString(t.String()))
}

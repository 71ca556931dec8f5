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

// Package mvcc implements the concurrency core of the tablet: timestamp
// assignment, in-flight transaction tracking, the safe-time watermark, and
// the snapshot predicate that determines cell visibility during reads.
package mvcc

import (
	"fmt"

	"github.com/cockroachdb/redact"

	"github.com/tabletdb/docdb/pkg/hlc"
)

// Snapshot is an immutable visibility predicate over transaction
// timestamps: given a timestamp, IsCommitted reports whether a read taken
// at this snapshot should see it.
//
// A transaction T is committed in the snapshot if and only if:
//
//	T < allCommittedBefore  or  T ∈ extraCommitted
//
// Summary, from lowest to highest timestamp: every timestamp below
// allCommittedBefore is committed; every timestamp at or above
// noneCommittedAtOrAfter is uncommitted; timestamps in between are
// committed only if explicitly listed in extraCommitted.
type Snapshot struct {
	allCommittedBefore   hlc.Timestamp
	noneCommittedAtOrAfter hlc.Timestamp
	extraCommitted       map[hlc.Timestamp]struct{}
}

// CleanSnapshotAt returns a clean snapshot (no extraCommitted holes) that
// considers every timestamp below t committed and every timestamp at or
// above t uncommitted.
func CleanSnapshotAt(t hlc.Timestamp) Snapshot {
	return Snapshot{allCommittedBefore: t, noneCommittedAtOrAfter: t}
}

// AllCommitted returns a snapshot that considers every timestamp
// committed. Mostly useful in tests.
func AllCommitted() Snapshot {
	return CleanSnapshotAt(hlc.Max)
}

// NoneCommitted returns a snapshot that considers no timestamp committed.
func NoneCommitted() Snapshot {
	return CleanSnapshotAt(hlc.Min)
}

// IsCommitted reports whether t is committed in the snapshot. The common
// case (t strictly below the low watermark, or at/above the high
// watermark) is two integer comparisons; only a timestamp falling between
// the watermarks consults extraCommitted.
func (s Snapshot) IsCommitted(t hlc.Timestamp) bool {
	if t.Less(s.allCommittedBefore) {
		return true
	}
	if !t.Less(s.noneCommittedAtOrAfter) {
		return false
	}
	_, ok := s.extraCommitted[t]
	return ok
}

// MayHaveCommittedAtOrAfter reports whether the snapshot might consider
// any timestamp >= t committed. A false result lets a reader skip scanning
// newer versions entirely.
func (s Snapshot) MayHaveCommittedAtOrAfter(t hlc.Timestamp) bool {
	return t.Less(s.noneCommittedAtOrAfter)
}

// MayHaveUncommittedAtOrBefore reports whether the snapshot might consider
// any timestamp <= t uncommitted. A false result lets a reader skip UNDO
// processing entirely.
func (s Snapshot) MayHaveUncommittedAtOrBefore(t hlc.Timestamp) bool {
	return !t.Less(s.allCommittedBefore)
}

// IsClean reports whether the snapshot is defined solely by a watermark
// (no extraCommitted holes).
func (s Snapshot) IsClean() bool { return len(s.extraCommitted) == 0 }

// LastCommittedTimestamp returns allCommittedBefore-1, the highest
// timestamp guaranteed committed by a clean snapshot. It panics if the
// snapshot is not clean; callers that might have a dirty snapshot should
// check IsClean first.
func (s Snapshot) LastCommittedTimestamp() hlc.Timestamp {
	if !s.IsClean() {
		panic("mvcc: LastCommittedTimestamp called on a dirty snapshot")
	}
	return hlc.Timestamp(uint64(s.allCommittedBefore) - 1)
}

// AddCommittedTimestamps returns a copy of s with ts unioned into
// extraCommitted, and noneCommittedAtOrAfter recomputed as
// max(old noneCommittedAtOrAfter, max(ts)+1). It does not mutate s:
// Snapshot is a value type other than this one explicit mutator, mirroring
// the original MvccSnapshot::AddCommittedTimestamps which is itself the
// only way the type's state changes after construction.
func (s Snapshot) AddCommittedTimestamps(ts ...hlc.Timestamp) Snapshot {
	if len(ts) == 0 {
		return s
	}
	next := s
	next.extraCommitted = make(map[hlc.Timestamp]struct{}, len(s.extraCommitted)+len(ts))
	for t := range s.extraCommitted {
		next.extraCommitted[t] = struct{}{}
	}
	for _, t := range ts {
		if t.Less(s.allCommittedBefore) {
			// Already implied committed by the watermark; recording it in
			// extraCommitted would violate the "only if > allCommittedBefore"
			// invariant for no benefit.
			continue
		}
		next.extraCommitted[t] = struct{}{}
		if next.noneCommittedAtOrAfter.LessEq(t) {
			next.noneCommittedAtOrAfter = t.Next()
		}
	}
	return next
}

// AllCommittedBefore returns the snapshot's low watermark.
func (s Snapshot) AllCommittedBefore() hlc.Timestamp { return s.allCommittedBefore }

// NoneCommittedAtOrAfter returns the snapshot's high watermark.
func (s Snapshot) NoneCommittedAtOrAfter() hlc.Timestamp { return s.noneCommittedAtOrAfter }

// String renders a debug form of the snapshot.
func (s Snapshot) String() string { return redact.StringWithoutMarkers(s) }

// SafeFormat implements redact.SafeFormatter.
func (s Snapshot) SafeFormat(p redact.SafePrinter, _ rune) {
	if s.IsClean() {
		p.Printf("Snapshot[clean, allCommittedBefore=%v]", s.allCommittedBefore)
		return
	}
	extra := make([]hlc.Timestamp, 0, len(s.extraCommitted))
	for t := range s.extraCommitted {
		extra = append(extra, t)
	}
	p.Printf("Snapshot[allCommittedBefore=%v, noneCommittedAtOrAfter=%v, extraCommitted=%v]",
		s.allCommittedBefore, s.noneCommittedAtOrAfter, fmt.Sprint(extra))
}

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

package dockey

import (
	"bytes"

	"github.com/cockroachdb/redact"

	"github.com/tabletdb/docdb/pkg/docerr"
	"github.com/tabletdb/docdb/pkg/encoding"
	"github.com/tabletdb/docdb/pkg/hlc"
)

// SubDocKey is a key pointing to a sub-document: a DocKey identifying the
// owning document, a path of subkeys leading to the sub-document from the
// outermost level inward, and an optional commit timestamp.
//
// The timestamp is logically optional while a SubDocKey is being built in
// memory (a freshly-constructed SubDocKey has no timestamp until one is
// set), but any SubDocKey persisted to the store must carry one — the
// hlc.Invalid sentinel must never appear in an encoded, persisted key.
//
// SubDocKey is a value type: freely copied, with no shared mutable state.
type SubDocKey struct {
	docKey    DocKey
	subkeys   []encoding.Value
	timestamp hlc.Timestamp // hlc.Invalid means "no timestamp set"
}

// NewSubDocKey constructs a SubDocKey with no subkeys and no timestamp.
func NewSubDocKey(doc DocKey) SubDocKey {
	return SubDocKey{docKey: doc}
}

// WithSubkeys returns a copy of s with subkeys appended to its subkey path.
// It panics if s already has a timestamp set, matching the original
// codec's invariant that subkeys cannot be appended after the terminating
// timestamp (EnsureHasNoTimestampYet in the original doc_key.h).
func (s SubDocKey) WithSubkeys(subkeys ...encoding.Value) SubDocKey {
	if s.HasTimestamp() {
		panic("dockey: cannot append subkeys to a SubDocKey that already has a timestamp")
	}
	next := s
	next.subkeys = append(append([]encoding.Value(nil), s.subkeys...), subkeys...)
	return next
}

// WithTimestamp returns a copy of s with its terminating timestamp set to
// ts. ts must not be hlc.Invalid.
func (s SubDocKey) WithTimestamp(ts hlc.Timestamp) SubDocKey {
	if ts == hlc.Invalid {
		panic("dockey: WithTimestamp requires a valid timestamp; use WithoutTimestamp to clear it")
	}
	next := s
	next.timestamp = ts
	return next
}

// WithoutTimestamp returns a copy of s with no timestamp set.
func (s SubDocKey) WithoutTimestamp() SubDocKey {
	next := s
	next.timestamp = hlc.Invalid
	return next
}

// DocKey returns s's owning document key.
func (s SubDocKey) DocKey() DocKey { return s.docKey }

// Subkeys returns s's subkey path. Do not mutate the returned slice.
func (s SubDocKey) Subkeys() []encoding.Value { return s.subkeys }

// HasTimestamp reports whether s carries a timestamp.
func (s SubDocKey) HasTimestamp() bool { return s.timestamp != hlc.Invalid }

// Timestamp returns s's timestamp. It panics if !HasTimestamp().
func (s SubDocKey) Timestamp() hlc.Timestamp {
	if !s.HasTimestamp() {
		panic("dockey: Timestamp() called on a SubDocKey with no timestamp set")
	}
	return s.timestamp
}

// LastSubkey returns the final element of s's subkey path. It panics if the
// path is empty.
func (s SubDocKey) LastSubkey() encoding.Value {
	if len(s.subkeys) == 0 {
		panic("dockey: LastSubkey() called on a SubDocKey with no subkeys")
	}
	return s.subkeys[len(s.subkeys)-1]
}

// Equal reports whether s and other have identical doc keys, subkey paths,
// and timestamps.
func (s SubDocKey) Equal(other SubDocKey) bool {
	return s.docKey.Equal(other.docKey) && valuesEqual(s.subkeys, other.subkeys) && s.timestamp == other.timestamp
}

// timestampRaw encodes the descending (newest-first) wire form of a
// timestamp: the terminating timestamp of a SubDocKey is encoded as
// (math.MaxUint64 - raw), so that for a fixed subkey path, a forward scan
// over the underlying store visits the most recent version first.
func timestampRaw(ts hlc.Timestamp) uint64 {
	return ^uint64(ts)
}

func timestampFromRaw(raw uint64) hlc.Timestamp {
	return hlc.Timestamp(^raw)
}

// Encode appends s's wire encoding to buf and returns the grown buffer.
//
//	SubDocKey := DocKey Subkey* [TimestampByte Timestamp64]
//
// Unlike DocKey's internal groups, the subkey sequence is not terminated
// by GroupEnd; its boundary is given by the timestamp (if present) or the
// end of the key. includeTimestamp lets callers encode a SubDocKey's
// identity (document + subkey path) without its version, as used by
// AdvanceOutOfSubDoc.
func (s SubDocKey) Encode(buf []byte, includeTimestamp bool) []byte {
	buf = s.docKey.Encode(buf)
	for _, sk := range s.subkeys {
		buf = encoding.EncodeInto(buf, sk)
	}
	if includeTimestamp && s.HasTimestamp() {
		buf = append(buf, byte(encoding.Timestamp))
		raw := timestampRaw(s.timestamp)
		buf = append(buf, byte(raw>>56), byte(raw>>48), byte(raw>>40), byte(raw>>32),
			byte(raw>>24), byte(raw>>16), byte(raw>>8), byte(raw))
	}
	return buf
}

// EncodeNew is a convenience wrapper around Encode(nil, true).
func (s SubDocKey) EncodeNew() []byte { return s.Encode(nil, true) }

// DecodeFrom decodes a SubDocKey from the front of buf, returning the
// decoded key and the unconsumed remainder. If requireTimestamp is true, a
// trailing Timestamp byte and 8-byte payload are mandatory and their
// absence is a Corruption error; otherwise a SubDocKey with no trailing
// timestamp bytes decodes successfully with HasTimestamp() == false.
//
// Subkeys are distinguished from a following Timestamp type byte purely by
// the leading type byte: every subkey starts with a PrimitiveValue type
// other than Timestamp (an application that wants a literal Timestamp
// value as a non-terminal subkey cannot use this decoder).
func DecodeSubDocKeyFrom(buf []byte, requireTimestamp bool) (SubDocKey, []byte, error) {
	doc, rest, err := DecodeDocKeyFrom(buf)
	if err != nil {
		return SubDocKey{}, nil, err
	}
	s := SubDocKey{docKey: doc}

	for {
		if len(rest) == 0 {
			break
		}
		t, err := encoding.PeekType(rest)
		if err != nil {
			return SubDocKey{}, nil, docerr.Corruptf("subdockey: %v", err)
		}
		if t == encoding.Timestamp {
			break
		}
		v, next, err := encoding.DecodeFrom(rest)
		if err != nil {
			return SubDocKey{}, nil, err
		}
		s.subkeys = append(s.subkeys, v)
		rest = next
	}

	if len(rest) == 0 {
		if requireTimestamp {
			return SubDocKey{}, nil, docerr.Corruptf("subdockey: missing required timestamp")
		}
		return s, rest, nil
	}

	// rest[0] == Timestamp type byte at this point.
	rest = rest[1:]
	if len(rest) < 8 {
		return SubDocKey{}, nil, docerr.Corruptf("subdockey: truncated timestamp payload")
	}
	raw := uint64(rest[0])<<56 | uint64(rest[1])<<48 | uint64(rest[2])<<40 | uint64(rest[3])<<32 |
		uint64(rest[4])<<24 | uint64(rest[5])<<16 | uint64(rest[6])<<8 | uint64(rest[7])
	ts := timestampFromRaw(raw)
	if ts == hlc.Invalid {
		return SubDocKey{}, nil, docerr.Corruptf("subdockey: decoded reserved invalid timestamp sentinel")
	}
	s.timestamp = ts
	return s, rest[8:], nil
}

// FullyDecodeSubDocKeyFrom decodes a SubDocKey from buf and fails with a
// Corruption error if any bytes remain afterward.
func FullyDecodeSubDocKeyFrom(buf []byte, requireTimestamp bool) (SubDocKey, error) {
	s, rest, err := DecodeSubDocKeyFrom(buf, requireTimestamp)
	if err != nil {
		return SubDocKey{}, err
	}
	if len(rest) != 0 {
		return SubDocKey{}, docerr.Corruptf("subdockey: %d trailing bytes after SubDocKey", len(rest))
	}
	return s, nil
}

// CompareTo returns a negative, zero, or positive number as s sorts before,
// equal to, or after other, under the same order as byte-comparing their
// full (timestamp-included) encodings.
func (s SubDocKey) CompareTo(other SubDocKey) int {
	return bytes.Compare(s.EncodeNew(), other.EncodeNew())
}

// StartsWith reports whether prefix's document key equals s's, and
// prefix's subkey path is a (non-strict) prefix of s's subkey path. The
// timestamp is ignored.
func (s SubDocKey) StartsWith(prefix SubDocKey) bool {
	if !s.docKey.Equal(prefix.docKey) {
		return false
	}
	if len(prefix.subkeys) > len(s.subkeys) {
		return false
	}
	for i, v := range prefix.subkeys {
		if !v.Equal(s.subkeys[i]) {
			return false
		}
	}
	return true
}

// NumSharedPrefixComponents counts the matching leading components between
// s and other: the DocKey counts as a single unit (1 if equal, else 0, and
// no subkeys are counted past a DocKey mismatch), plus the number of
// matching leading subkeys.
func (s SubDocKey) NumSharedPrefixComponents(other SubDocKey) int {
	if !s.docKey.Equal(other.docKey) {
		return 0
	}
	n := 1
	for i := 0; i < len(s.subkeys) && i < len(other.subkeys); i++ {
		if !s.subkeys[i].Equal(other.subkeys[i]) {
			break
		}
		n++
	}
	return n
}

// ReplaceMaxTimestampWith replaces s's timestamp with ts if and only if s's
// current timestamp is the hlc.Max placeholder. This supports write
// batches that embed a placeholder timestamp until the real one is fixed
// by log ordering.
func (s SubDocKey) ReplaceMaxTimestampWith(ts hlc.Timestamp) SubDocKey {
	if s.timestamp != hlc.Max {
		return s
	}
	return s.WithTimestamp(ts)
}

// AdvanceOutOfSubDoc returns the smallest byte string strictly greater than
// the encoding of every SubDocKey that extends s's (document, subkey path)
// pair, including s itself at any timestamp. A store iterator seeked to
// this byte string lands past the entire sub-tree rooted at s's subkey
// path.
func (s SubDocKey) AdvanceOutOfSubDoc() []byte {
	buf := s.Encode(nil, false)
	return append(buf, encoding.AdvancePastAllValueTypes())
}

// AdvanceOutOfDocKeyPrefix returns the smallest byte string strictly
// greater than the encoding of every SubDocKey sharing s's DocKey (hash
// prefix plus hashed components plus range components), including
// SubDocKeys whose DocKey adds further range components on top of s's. A
// store iterator seeked to this byte string lands past every key for this
// document and every document whose DocKey extends its hashed group and
// range components.
//
// The sentinel is appended right after the last range component (or after
// the hashed group's GroupEnd when there are none), omitting the range
// group's own GroupEnd. A sibling DocKey that adds range components encodes
// a real type byte at that same position, which must sort before the
// sentinel; appending the sentinel after the range group's GroupEnd too (a
// 0x00 byte) would instead sort before that real type byte, letting the
// seek land short of the sibling.
func (s SubDocKey) AdvanceOutOfDocKeyPrefix() []byte {
	doc := s.docKey
	buf := doc.appendHashedGroup(nil)
	for _, c := range doc.rangeComps {
		buf = encoding.EncodeInto(buf, c)
	}
	return append(buf, encoding.AdvancePastAllValueTypes())
}

// String renders a debug (non-redacted) form of s.
func (s SubDocKey) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s SubDocKey) SafeFormat(p redact.SafePrinter, _ rune) {
	p.Print(s.docKey)
	p.Print(redact.SafeString(", subkeys="))
	printValues(p, s.subkeys)
	if s.HasTimestamp() {
		p.Printf(", ts=%v", s.timestamp)
	}
}

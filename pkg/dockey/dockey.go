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

// Package dockey implements the order-preserving binary encoding that
// names every logical cell in the underlying sorted key/value engine:
// DocKey identifies a document, SubDocKey extends it with a sub-document
// path and an optional commit timestamp.
package dockey

import (
	"bytes"

	"github.com/cockroachdb/redact"

	"github.com/tabletdb/docdb/pkg/docerr"
	"github.com/tabletdb/docdb/pkg/encoding"
)

// Hash is the fixed-width hash prefix of a hashed DocKey.
type Hash = uint32

// DocKey identifies a document: the prefix of every key stored for records
// inside it. It carries an optional fixed-width hash prefix (used to
// distribute documents across hash-partitioned tablets) plus the group of
// "hashed" components the hash was computed over, and a group of "range"
// components suitable for ordered scans.
//
// DocKey is a value type: freely copied, with no shared mutable state.
type DocKey struct {
	hashPresent bool
	hash        Hash
	hashed      []encoding.Value
	rangeComps  []encoding.Value
}

// New constructs a DocKey with no hash prefix, consisting only of range
// components.
func New(rangeComponents ...encoding.Value) DocKey {
	return DocKey{rangeComps: append([]encoding.Value(nil), rangeComponents...)}
}

// NewHashed constructs a DocKey with a hash prefix computed by the caller
// over hashedComponents. The caller is responsible for using a consistent
// hash function across the tablet; this codec never computes the hash
// itself except through HashComponents below.
func NewHashed(hash Hash, hashedComponents []encoding.Value, rangeComponents []encoding.Value) DocKey {
	return DocKey{
		hashPresent: true,
		hash:        hash,
		hashed:      append([]encoding.Value(nil), hashedComponents...),
		rangeComps:  append([]encoding.Value(nil), rangeComponents...),
	}
}

// HashComponents computes a DocKey hash prefix by encoding hashedComponents
// and applying hashFn to the result, mirroring the original docdb's
// pluggable-hash-function DocKey constructor: callers supply the hash
// function (e.g. CRC32C, murmur) and this helper guarantees the hash is
// computed over exactly the bytes the encoder will place in the key, not
// some other serialization of the same logical values.
func HashComponents(hashFn func([]byte) uint32, components ...encoding.Value) Hash {
	var buf []byte
	for _, c := range components {
		buf = encoding.EncodeInto(buf, c)
	}
	return hashFn(buf)
}

// HashPresent reports whether k carries a hash prefix.
func (k DocKey) HashPresent() bool { return k.hashPresent }

// HashValue returns k's hash prefix. Only meaningful if HashPresent().
func (k DocKey) HashValue() Hash { return k.hash }

// HashedComponents returns k's hashed component group. Do not mutate the
// returned slice.
func (k DocKey) HashedComponents() []encoding.Value { return k.hashed }

// RangeComponents returns k's range component group. Do not mutate the
// returned slice.
func (k DocKey) RangeComponents() []encoding.Value { return k.rangeComps }

// Equal reports whether k and other have identical hash presence, hash
// value, hashed components, and range components.
func (k DocKey) Equal(other DocKey) bool {
	if k.hashPresent != other.hashPresent || k.hash != other.hash {
		return false
	}
	return valuesEqual(k.hashed, other.hashed) && valuesEqual(k.rangeComps, other.rangeComps)
}

func valuesEqual(a, b []encoding.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Encode appends k's wire encoding to buf and returns the grown buffer.
//
//	DocKey := [HashByte Hash32 PrimitiveValue* GroupEndByte] PrimitiveValue* GroupEndByte
//
// The hashed group (including its GroupEnd terminator) is present in the
// output if and only if HashPresent() is true; a DocKey with no hash
// prefix omits it entirely rather than emitting a bare GroupEnd, so that
// the leading byte of the encoding unambiguously distinguishes the two
// DocKey shapes (Uint32Hash marks the hashed-group form; anything else
// starts the range group directly).
func (k DocKey) Encode(buf []byte) []byte {
	buf = k.appendHashedGroup(buf)
	for _, c := range k.rangeComps {
		buf = encoding.EncodeInto(buf, c)
	}
	buf = append(buf, byte(encoding.GroupEnd))
	return buf
}

// appendHashedGroup appends k's hashed group, including its GroupEnd
// terminator, if HashPresent(); otherwise it returns buf unchanged.
func (k DocKey) appendHashedGroup(buf []byte) []byte {
	if !k.hashPresent {
		return buf
	}
	buf = append(buf, byte(encoding.Uint32Hash))
	buf = append(buf, byte(k.hash>>24), byte(k.hash>>16), byte(k.hash>>8), byte(k.hash))
	for _, c := range k.hashed {
		buf = encoding.EncodeInto(buf, c)
	}
	return append(buf, byte(encoding.GroupEnd))
}

// EncodeNew is a convenience wrapper around Encode that allocates a fresh
// buffer.
func (k DocKey) EncodeNew() []byte { return k.Encode(nil)[:] }

// DecodeDocKeyFrom decodes a DocKey from the front of buf, returning the
// decoded key and the unconsumed remainder. It fails with a Corruption
// error if buf does not begin with either of the two valid DocKey shapes.
func DecodeDocKeyFrom(buf []byte) (DocKey, []byte, error) {
	var k DocKey
	rest := buf

	if len(rest) > 0 && encoding.Type(rest[0]) == encoding.Uint32Hash {
		rest = rest[1:]
		if len(rest) < 4 {
			return DocKey{}, nil, docerr.Corruptf("dockey: truncated hash prefix")
		}
		k.hashPresent = true
		k.hash = Hash(rest[0])<<24 | Hash(rest[1])<<16 | Hash(rest[2])<<8 | Hash(rest[3])
		rest = rest[4:]

		vals, next, err := consumeGroup(rest)
		if err != nil {
			return DocKey{}, nil, err
		}
		k.hashed = vals
		rest = next
	}

	vals, next, err := consumeGroup(rest)
	if err != nil {
		return DocKey{}, nil, err
	}
	k.rangeComps = vals
	rest = next

	return k, rest, nil
}

// consumeGroup decodes a sequence of PrimitiveValues terminated by
// GroupEnd, returning the decoded values and the bytes following the
// terminator.
func consumeGroup(buf []byte) ([]encoding.Value, []byte, error) {
	var vals []encoding.Value
	rest := buf
	for {
		t, err := encoding.PeekType(rest)
		if err != nil {
			return nil, nil, docerr.Corruptf("dockey: %v", err)
		}
		if t == encoding.GroupEnd {
			return vals, rest[1:], nil
		}
		v, next, err := encoding.DecodeFrom(rest)
		if err != nil {
			return nil, nil, err
		}
		vals = append(vals, v)
		rest = next
	}
}

// FullyDecodeDocKeyFrom decodes a DocKey from buf and fails with a
// Corruption error if any bytes remain afterward.
func FullyDecodeDocKeyFrom(buf []byte) (DocKey, error) {
	k, rest, err := DecodeDocKeyFrom(buf)
	if err != nil {
		return DocKey{}, err
	}
	if len(rest) != 0 {
		return DocKey{}, docerr.Corruptf("dockey: %d trailing bytes after DocKey", len(rest))
	}
	return k, nil
}

// CompareTo returns a negative, zero, or positive number as k sorts before,
// equal to, or after other, under the same order as byte-comparing their
// encodings.
func (k DocKey) CompareTo(other DocKey) int {
	return bytes.Compare(k.EncodeNew(), other.EncodeNew())
}

// String renders a debug (non-redacted) form of k.
func (k DocKey) String() string {
	return redact.StringWithoutMarkers(k)
}

// SafeFormat implements redact.SafeFormatter. The structural shape of the
// key (hash presence, component counts) is safe to log; component payloads
// are potentially user data and are redacted.
func (k DocKey) SafeFormat(p redact.SafePrinter, _ rune) {
	if k.hashPresent {
		p.Printf("DocKey(0x%08x, hashed=", k.hash)
		printValues(p, k.hashed)
		p.Print(redact.SafeString(", range="))
	} else {
		p.Print(redact.SafeString("DocKey(range="))
	}
	printValues(p, k.rangeComps)
	p.Print(redact.SafeString(")"))
}

func printValues(p redact.SafePrinter, vals []encoding.Value) {
	p.Print(redact.SafeString("["))
	for i, v := range vals {
		if i > 0 {
			p.Print(redact.SafeString(", "))
		}
		p.Print(Formatted{v})
	}
	p.Print(redact.SafeString("]"))
}

// Formatted adapts an encoding.Value for redacted printing; encoding.Value
// itself carries no SafeFormat method, to keep the codec package free of a
// redact dependency.
type Formatted struct{ encoding.Value }

// SafeFormat implements redact.SafeFormatter for an individual PrimitiveValue.
func (v Formatted) SafeFormat(p redact.SafePrinter, _ rune) { p.Print(v.Value.String()) }

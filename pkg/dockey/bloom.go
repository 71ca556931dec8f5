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

import "github.com/tabletdb/docdb/pkg/encoding"

// FilterPolicy is the interface the underlying store's pluggable bloom
// filter hook must satisfy: given the raw key bytes handed to it, it
// builds (CreateFilter) or probes (KeyMayMatch) a filter over some
// transformation of those keys. The store itself is out of scope; this
// interface only documents the shape docdb's policy plugs into.
type FilterPolicy interface {
	CreateFilter(keys [][]byte) []byte
	KeyMayMatch(key, filter []byte) bool
}

// BuiltinBloomFilter is the plain bloom filter implementation the
// DocKeyPrefixFilterPolicy delegates to after truncating each key to its
// DocKey prefix. It is out of scope for this module (the underlying store
// is a black-box collaborator per spec.md §1); callers wire in the store's
// own bloom filter implementation.
type BuiltinBloomFilter interface {
	CreateFilter(keys [][]byte) []byte
	KeyMayMatch(key, filter []byte) bool
}

// DocKeyPrefixFilterPolicy computes bloom-filter entries on the DocKey
// prefix of each encoded SubDocKey rather than on the full key (which also
// carries subkeys and a timestamp). This lets point lookups by DocKey
// benefit from bloom filtering even though stored keys are SubDocKeys.
//
// DocKeyPrefixFilterPolicy is stateless and safe for concurrent use.
type DocKeyPrefixFilterPolicy struct {
	builtin BuiltinBloomFilter
}

// NewDocKeyPrefixFilterPolicy wraps builtin so that every key it is handed
// is first truncated to its embedded DocKey prefix.
func NewDocKeyPrefixFilterPolicy(builtin BuiltinBloomFilter) *DocKeyPrefixFilterPolicy {
	return &DocKeyPrefixFilterPolicy{builtin: builtin}
}

var _ FilterPolicy = (*DocKeyPrefixFilterPolicy)(nil)

// CreateFilter truncates every key to its DocKey prefix before delegating
// to the builtin filter.
func (p *DocKeyPrefixFilterPolicy) CreateFilter(keys [][]byte) []byte {
	truncated := make([][]byte, len(keys))
	for i, k := range keys {
		truncated[i] = docKeyPrefix(k)
	}
	return p.builtin.CreateFilter(truncated)
}

// KeyMayMatch truncates key to its DocKey prefix before delegating to the
// builtin filter.
func (p *DocKeyPrefixFilterPolicy) KeyMayMatch(key, filter []byte) bool {
	return p.builtin.KeyMayMatch(docKeyPrefix(key), filter)
}

func docKeyPrefix(key []byte) []byte {
	n := GetEncodedDocKeyPrefixSize(key)
	if n > len(key) {
		n = len(key)
	}
	return key[:n]
}

// GetEncodedDocKeyPrefixSize scans the encoded SubDocKey in slice and
// returns the byte length of the embedded DocKey encoding: up to and
// including the range group's GroupEnd terminator. Callers that only have
// a malformed or truncated slice get back len(slice) (the whole thing is
// treated as the prefix) rather than an error, matching the filter
// policy's requirement to never fail a CreateFilter/KeyMayMatch call; a
// corrupt key degrades to a less selective filter rather than a panic.
func GetEncodedDocKeyPrefixSize(slice []byte) int {
	rest := slice
	consumed := 0

	if len(rest) > 0 && encoding.Type(rest[0]) == encoding.Uint32Hash {
		if len(rest) < 5 {
			return len(slice)
		}
		rest = rest[5:]
		consumed += 5
		n, ok := skipGroup(rest)
		if !ok {
			return len(slice)
		}
		rest = rest[n:]
		consumed += n
	}

	n, ok := skipGroup(rest)
	if !ok {
		return len(slice)
	}
	consumed += n
	return consumed
}

// skipGroup scans a GroupEnd-terminated sequence of PrimitiveValues without
// decoding their payloads, returning the number of bytes consumed
// (including the terminator) and whether the group was well-formed.
func skipGroup(buf []byte) (int, bool) {
	i := 0
	for {
		if i >= len(buf) {
			return 0, false
		}
		t := encoding.Type(buf[i])
		if t == encoding.GroupEnd {
			return i + 1, true
		}
		v, rest, err := encoding.DecodeFrom(buf[i:])
		if err != nil {
			return 0, false
		}
		_ = v
		i += len(buf[i:]) - len(rest)
	}
}

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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabletdb/docdb/pkg/encoding"
	"github.com/tabletdb/docdb/pkg/hlc"
)

func TestSubDocKeyEncodeDecodeRoundTrip(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	cases := []SubDocKey{
		NewSubDocKey(doc),
		NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col")),
		NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col")).WithTimestamp(hlc.Timestamp(100)),
		NewSubDocKey(doc).WithTimestamp(hlc.Timestamp(1)),
	}
	for _, s := range cases {
		buf := s.EncodeNew()
		decoded, err := FullyDecodeSubDocKeyFrom(buf, s.HasTimestamp())
		require.NoError(t, err)
		require.True(t, s.Equal(decoded), "roundtrip mismatch for %v", s)
	}
}

func TestWithSubkeysPanicsAfterTimestamp(t *testing.T) {
	s := NewSubDocKey(New()).WithTimestamp(hlc.Timestamp(1))
	require.Panics(t, func() { s.WithSubkeys(encoding.StringValue("late")) })
}

func TestWithTimestampRejectsInvalid(t *testing.T) {
	s := NewSubDocKey(New())
	require.Panics(t, func() { s.WithTimestamp(hlc.Invalid) })
}

func TestNewestVersionSortsFirst(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	older := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col")).WithTimestamp(hlc.Timestamp(100))
	newer := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col")).WithTimestamp(hlc.Timestamp(200))
	// Descending timestamp encoding: for the same document and subkey path,
	// the more recent version (larger timestamp) must sort first.
	require.Negative(t, newer.CompareTo(older))
}

func TestStartsWithIgnoresTimestamp(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	prefix := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col"))
	full := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col"), encoding.StringValue("leaf")).WithTimestamp(hlc.Timestamp(5))
	require.True(t, full.StartsWith(prefix))
	require.False(t, prefix.StartsWith(full))
}

func TestNumSharedPrefixComponents(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	a := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("x"), encoding.StringValue("y"))
	b := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("x"), encoding.StringValue("z"))
	require.Equal(t, 2, a.NumSharedPrefixComponents(b))

	otherDoc := New(encoding.StringValue("other"))
	c := NewSubDocKey(otherDoc).WithSubkeys(encoding.StringValue("x"))
	require.Equal(t, 0, a.NumSharedPrefixComponents(c))
}

func TestAdvanceOutOfSubDocSkipsEntireSubtree(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	target := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col"))
	sentinel := target.AdvanceOutOfSubDoc()

	inside := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col"), encoding.StringValue("leaf")).WithTimestamp(hlc.Timestamp(1))
	outside := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("cop")).WithTimestamp(hlc.Timestamp(1))

	require.Negative(t, bytes.Compare(inside.EncodeNew(), sentinel))
	require.True(t, bytes.Compare(outside.EncodeNew(), sentinel) >= 0)
}

func TestAdvanceOutOfDocKeyPrefixSkipsWholeDocument(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	sentinel := NewSubDocKey(doc).AdvanceOutOfDocKeyPrefix()

	sameDoc := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("anything")).WithTimestamp(hlc.Timestamp(1))
	nextDoc := NewSubDocKey(New(encoding.StringValue("doe"))).WithTimestamp(hlc.Timestamp(1))

	require.Negative(t, bytes.Compare(sameDoc.EncodeNew(), sentinel))
	require.True(t, bytes.Compare(nextDoc.EncodeNew(), sentinel) >= 0)
}

func TestAdvanceOutOfDocKeyPrefixSkipsSiblingsWithExtraRangeComponents(t *testing.T) {
	// A hash-present DocKey with no range components shares its hashed
	// prefix with DocKeys that add range components on top; the sentinel
	// must land past those siblings too, not just past same-DocKey keys.
	doc := NewHashed(42, []encoding.Value{encoding.StringValue("h")}, nil)
	sentinel := NewSubDocKey(doc).AdvanceOutOfDocKeyPrefix()

	siblingWithRange := NewSubDocKey(NewHashed(42, []encoding.Value{encoding.StringValue("h")}, []encoding.Value{encoding.StringValue("r")})).
		WithTimestamp(hlc.Timestamp(1))
	sameDoc := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("anything")).WithTimestamp(hlc.Timestamp(1))
	nextHash := NewSubDocKey(NewHashed(43, []encoding.Value{encoding.StringValue("h")}, nil)).WithTimestamp(hlc.Timestamp(1))

	require.Negative(t, bytes.Compare(sameDoc.EncodeNew(), sentinel))
	require.Negative(t, bytes.Compare(siblingWithRange.EncodeNew(), sentinel),
		"sentinel must sort after a sibling DocKey that adds range components on top of the same hashed prefix")
	require.True(t, bytes.Compare(nextHash.EncodeNew(), sentinel) >= 0)
}

func TestReplaceMaxTimestampWith(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	placeholder := NewSubDocKey(doc).WithTimestamp(hlc.Max)
	resolved := placeholder.ReplaceMaxTimestampWith(hlc.Timestamp(42))
	require.Equal(t, hlc.Timestamp(42), resolved.Timestamp())

	notPlaceholder := NewSubDocKey(doc).WithTimestamp(hlc.Timestamp(7))
	unaffected := notPlaceholder.ReplaceMaxTimestampWith(hlc.Timestamp(42))
	require.Equal(t, hlc.Timestamp(7), unaffected.Timestamp())
}

func TestDecodeSubDocKeyRequireTimestampMissing(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	s := NewSubDocKey(doc)
	_, _, err := DecodeSubDocKeyFrom(s.Encode(nil, false), true)
	require.Error(t, err)
}

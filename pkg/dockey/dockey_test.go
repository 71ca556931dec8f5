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
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabletdb/docdb/pkg/encoding"
)

func TestDocKeyEncodeDecodeRoundTrip(t *testing.T) {
	cases := []DocKey{
		New(),
		New(encoding.StringValue("a")),
		New(encoding.StringValue("a"), encoding.Int64Value(7)),
		NewHashed(0x1234abcd, []encoding.Value{encoding.StringValue("tenant")}, nil),
		NewHashed(0, []encoding.Value{encoding.StringValue("tenant")}, []encoding.Value{encoding.Int64Value(1)}),
	}
	for _, k := range cases {
		buf := k.EncodeNew()
		decoded, err := FullyDecodeDocKeyFrom(buf)
		require.NoError(t, err)
		require.True(t, k.Equal(decoded), "roundtrip mismatch for %v", k)
	}
}

func TestHashPresenceDistinguishesEncodingShape(t *testing.T) {
	withHash := NewHashed(7, []encoding.Value{encoding.StringValue("x")}, nil).EncodeNew()
	withoutHash := New(encoding.StringValue("x")).EncodeNew()
	require.NotEqual(t, withHash[0], withoutHash[0])
	require.Equal(t, byte(encoding.Uint32Hash), withHash[0])
}

func TestDocKeyOrderingMatchesComponentOrder(t *testing.T) {
	keys := []DocKey{
		New(encoding.Int64Value(1)),
		New(encoding.Int64Value(2)),
		New(encoding.Int64Value(2), encoding.StringValue("a")),
		New(encoding.Int64Value(3)),
	}
	encoded := make([][]byte, len(keys))
	for i, k := range keys {
		encoded[i] = k.EncodeNew()
	}
	sorted := append([][]byte(nil), encoded...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })
	for i := range sorted {
		require.True(t, bytes.Equal(sorted[i], encoded[i]), "byte order diverged from declared order at %d", i)
	}
}

func TestPrefixKeySortsBeforeExtension(t *testing.T) {
	prefix := New(encoding.StringValue("a"))
	extended := New(encoding.StringValue("a"), encoding.StringValue("b"))
	require.Negative(t, prefix.CompareTo(extended))
}

func TestDocKeyCorruptionOnGarbage(t *testing.T) {
	_, err := FullyDecodeDocKeyFrom([]byte{0xff})
	require.Error(t, err)
}

func TestDocKeyTrailingBytesRejected(t *testing.T) {
	buf := append(New(encoding.StringValue("a")).EncodeNew(), 0x01)
	_, err := FullyDecodeDocKeyFrom(buf)
	require.Error(t, err)
}

func TestHashComponents(t *testing.T) {
	hashFn := func(b []byte) uint32 {
		var h uint32 = 2166136261
		for _, c := range b {
			h ^= uint32(c)
			h *= 16777619
		}
		return h
	}
	h1 := HashComponents(hashFn, encoding.StringValue("tenant-1"))
	h2 := HashComponents(hashFn, encoding.StringValue("tenant-1"))
	h3 := HashComponents(hashFn, encoding.StringValue("tenant-2"))
	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, h3)
}

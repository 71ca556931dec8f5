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

package encoding

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabletdb/docdb/pkg/docerr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []Value{
		NullValue(),
		BoolValue(false),
		BoolValue(true),
		Int32Value(math.MinInt32),
		Int32Value(-1),
		Int32Value(0),
		Int32Value(math.MaxInt32),
		Int64Value(math.MinInt64),
		Int64Value(-1),
		Int64Value(0),
		Int64Value(math.MaxInt64),
		FloatValue(float32(math.Inf(-1))),
		FloatValue(-1.5),
		FloatValue(0),
		FloatValue(1.5),
		FloatValue(float32(math.Inf(1))),
		DoubleValue(math.Inf(-1)),
		DoubleValue(-1.5),
		DoubleValue(0),
		DoubleValue(1.5),
		DoubleValue(math.Inf(1)),
		StringValue(""),
		StringValue("hello"),
		StringValue("with\x00nul"),
		TimestampValue(0),
		TimestampValue(1234567890),
	}
	for _, v := range values {
		buf := EncodeInto(nil, v)
		decoded, rest, err := DecodeFrom(buf)
		require.NoError(t, err)
		require.Empty(t, rest)
		require.True(t, v.Equal(decoded), "roundtrip mismatch for %v", v.String())
	}
}

func TestTypeByteOrdering(t *testing.T) {
	require.Less(t, byte(GroupEnd), byte(Null))
	require.Less(t, byte(Null), byte(False))
	require.Less(t, byte(False), byte(True))
	require.Less(t, byte(True), byte(Int32))
	require.Less(t, byte(Int32), byte(Int64))
	require.Less(t, byte(Int64), byte(Float))
	require.Less(t, byte(Float), byte(Double))
	require.Less(t, byte(Double), byte(String))
	require.Less(t, byte(String), byte(Timestamp))
	require.Less(t, byte(Timestamp), byte(Uint32Hash))
}

func TestInt32OrderPreserved(t *testing.T) {
	ordered := []int32{math.MinInt32, -1000, -1, 0, 1, 1000, math.MaxInt32}
	checkOrderPreserved(t, ordered, func(v int32) Value { return Int32Value(v) })
}

func TestInt64OrderPreserved(t *testing.T) {
	ordered := []int64{math.MinInt64, -1000, -1, 0, 1, 1000, math.MaxInt64}
	checkOrderPreserved(t, ordered, func(v int64) Value { return Int64Value(v) })
}

func TestDoubleOrderPreserved(t *testing.T) {
	ordered := []float64{math.Inf(-1), -1e300, -1.5, -0.0001, 0, 0.0001, 1.5, 1e300, math.Inf(1)}
	checkOrderPreserved(t, ordered, func(v float64) Value { return DoubleValue(v) })
}

func TestStringOrderPreserved(t *testing.T) {
	ordered := []string{"", "a", "aa", "ab", "b", "with\x00nul", "with\x00nulzz"}
	checkOrderPreserved(t, ordered, func(v string) Value { return StringValue(v) })
}

func checkOrderPreserved[T any](t *testing.T, ordered []T, toValue func(T) Value) {
	t.Helper()
	encoded := make([][]byte, len(ordered))
	for i, v := range ordered {
		encoded[i] = EncodeInto(nil, toValue(v))
	}
	sorted := append([][]byte(nil), encoded...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })
	for i := range sorted {
		require.True(t, bytes.Equal(sorted[i], encoded[i]), "byte order diverged from input order at index %d", i)
	}
}

func TestDecodeFromUnknownTypeByte(t *testing.T) {
	_, _, err := DecodeFrom([]byte{0xff})
	require.Error(t, err)
	require.True(t, docerr.IsCorruption(err))
}

func TestDecodeFromTruncatedPayload(t *testing.T) {
	_, _, err := DecodeFrom([]byte{byte(Int64), 0x01, 0x02})
	require.Error(t, err)
}

func TestTakeEscapedStringUnterminated(t *testing.T) {
	_, _, err := DecodeFrom(append([]byte{byte(String)}, 'a', 'b'))
	require.Error(t, err)
}

func TestAdvancePastAllValueTypes(t *testing.T) {
	require.Greater(t, AdvancePastAllValueTypes(), byte(Uint32Hash))
}

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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabletdb/docdb/pkg/encoding"
)

func TestCachedEncoderMemoizes(t *testing.T) {
	var c CachedEncoder
	k := New(encoding.StringValue("a"))

	first := c.Encode(k)
	require.Equal(t, k.EncodeNew(), first)

	second := c.Encode(k)
	require.True(t, &first[0] == &second[0], "expected cached buffer to be reused for an identical key")
}

func TestCachedEncoderRecomputesOnDifferentKey(t *testing.T) {
	var c CachedEncoder
	a := New(encoding.StringValue("a"))
	b := New(encoding.StringValue("b"))

	got := c.Encode(a)
	require.Equal(t, a.EncodeNew(), got)

	got = c.Encode(b)
	require.Equal(t, b.EncodeNew(), got)
}

func TestCachedEncoderReset(t *testing.T) {
	var c CachedEncoder
	k := New(encoding.StringValue("a"))
	c.Encode(k)
	c.Reset()
	require.False(t, c.primed)
}

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
	"github.com/tabletdb/docdb/pkg/hlc"
)

// recordingFilter captures the keys it was asked to filter on, so tests can
// assert the policy truncated them before delegating.
type recordingFilter struct {
	created []byte
	probed  []byte
}

func (f *recordingFilter) CreateFilter(keys [][]byte) []byte {
	if len(keys) > 0 {
		f.created = keys[0]
	}
	return nil
}

func (f *recordingFilter) KeyMayMatch(key, filter []byte) bool {
	f.probed = key
	return true
}

func TestDocKeyPrefixFilterPolicyTruncatesToDocKey(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	full := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("col")).WithTimestamp(hlc.Timestamp(5))
	encoded := full.EncodeNew()

	rec := &recordingFilter{}
	policy := NewDocKeyPrefixFilterPolicy(rec)

	policy.CreateFilter([][]byte{encoded})
	require.Equal(t, doc.EncodeNew(), rec.created)

	policy.KeyMayMatch(encoded, nil)
	require.Equal(t, doc.EncodeNew(), rec.probed)
}

func TestDocKeyPrefixFilterPolicySameDocKeyDifferentSubkeys(t *testing.T) {
	doc := New(encoding.StringValue("doc"))
	a := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("a")).WithTimestamp(hlc.Timestamp(1)).EncodeNew()
	b := NewSubDocKey(doc).WithSubkeys(encoding.StringValue("b")).WithTimestamp(hlc.Timestamp(2)).EncodeNew()

	require.Equal(t, GetEncodedDocKeyPrefixSize(a), GetEncodedDocKeyPrefixSize(b))
	require.Equal(t, a[:GetEncodedDocKeyPrefixSize(a)], b[:GetEncodedDocKeyPrefixSize(b)])
}

func TestGetEncodedDocKeyPrefixSizeDegradesOnGarbage(t *testing.T) {
	garbage := []byte{0xff, 0xff}
	require.Equal(t, len(garbage), GetEncodedDocKeyPrefixSize(garbage))
}

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

package mvcc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabletdb/docdb/pkg/hlc"
)

func TestCleanSnapshotWatermark(t *testing.T) {
	snap := CleanSnapshotAt(hlc.Timestamp(100))
	require.True(t, snap.IsClean())
	require.True(t, snap.IsCommitted(hlc.Timestamp(99)))
	require.False(t, snap.IsCommitted(hlc.Timestamp(100)))
	require.False(t, snap.IsCommitted(hlc.Timestamp(101)))
	require.Equal(t, hlc.Timestamp(99), snap.LastCommittedTimestamp())
}

func TestAllCommittedAndNoneCommitted(t *testing.T) {
	require.True(t, AllCommitted().IsCommitted(hlc.Timestamp(1<<62)))
	require.False(t, NoneCommitted().IsCommitted(hlc.Timestamp(1)))
}

func TestAddCommittedTimestampsPunchesHole(t *testing.T) {
	base := CleanSnapshotAt(hlc.Timestamp(100))
	withHole := base.AddCommittedTimestamps(hlc.Timestamp(150))

	require.False(t, withHole.IsClean())
	require.True(t, withHole.IsCommitted(hlc.Timestamp(150)))
	require.False(t, withHole.IsCommitted(hlc.Timestamp(140)))
	require.False(t, withHole.IsCommitted(hlc.Timestamp(151)))
	require.True(t, withHole.MayHaveCommittedAtOrAfter(hlc.Timestamp(150)))
}

func TestAddCommittedTimestampsDoesNotMutateReceiver(t *testing.T) {
	base := CleanSnapshotAt(hlc.Timestamp(100))
	_ = base.AddCommittedTimestamps(hlc.Timestamp(150))
	require.True(t, base.IsClean())
	require.False(t, base.IsCommitted(hlc.Timestamp(150)))
}

func TestMayHaveUncommittedAtOrBefore(t *testing.T) {
	snap := CleanSnapshotAt(hlc.Timestamp(100))
	require.True(t, snap.MayHaveUncommittedAtOrBefore(hlc.Timestamp(100)))
	require.False(t, snap.MayHaveUncommittedAtOrBefore(hlc.Timestamp(98)))
}

func TestLastCommittedTimestampPanicsOnDirtySnapshot(t *testing.T) {
	dirty := CleanSnapshotAt(hlc.Timestamp(100)).AddCommittedTimestamps(hlc.Timestamp(150))
	require.Panics(t, func() { dirty.LastCommittedTimestamp() })
}

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
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/tabletdb/docdb/pkg/hlc"
)

// finalState tracks whether a ScopedTransaction has already been resolved,
// so a second Commit/Abort call is caught rather than silently corrupting
// the manager's in-flight set.
type finalState int32

const (
	notFinal  finalState = 0
	committed finalState = 1
	aborted   finalState = 2
)

// ScopedTransaction is a single RESERVED-or-later transaction tracked by a
// Manager. It is returned by Manager.StartTransaction and friends and must
// be resolved exactly once, by calling Commit or Abort (StartApplying is
// optional and may be called at most once before resolution; a second call
// panics), or by deferring Close, which performs that
// resolution automatically.
//
// A ScopedTransaction is not safe for concurrent use by multiple
// goroutines; a transaction has one owner.
type ScopedTransaction struct {
	mgr             *Manager
	ts              hlc.Timestamp
	final           atomic.Int32
	startedApplying atomic.Bool
}

// Timestamp returns the timestamp this transaction was reserved at.
func (s *ScopedTransaction) Timestamp() hlc.Timestamp { return s.ts }

// StartApplying transitions the transaction from RESERVED to APPLYING,
// marking that its write batch is now being applied to the underlying
// store. It panics if the transaction has already been resolved or is not
// currently RESERVED.
func (s *ScopedTransaction) StartApplying(ctx context.Context) {
	if finalState(s.final.Load()) != notFinal {
		panic(errors.AssertionFailedf("mvcc: StartApplying called on a transaction at %v that is already resolved", s.ts))
	}
	s.mgr.startApplyingTransaction(ctx, s.ts)
	s.startedApplying.Store(true)
}

// Commit finalizes the transaction as committed, removing it from the
// manager's in-flight set and potentially advancing the clean watermark.
// It panics if the transaction has already been resolved.
func (s *ScopedTransaction) Commit(ctx context.Context) {
	if !s.final.CompareAndSwap(int32(notFinal), int32(committed)) {
		panic(errors.AssertionFailedf("mvcc: Commit called twice on the transaction at %v", s.ts))
	}
	s.mgr.commitTransaction(ctx, s.ts)
}

// Abort finalizes the transaction as aborted, removing it from the
// manager's in-flight set without ever considering it committed. It
// panics if the transaction has already been resolved.
func (s *ScopedTransaction) Abort(ctx context.Context) {
	if !s.final.CompareAndSwap(int32(notFinal), int32(aborted)) {
		panic(errors.AssertionFailedf("mvcc: Abort called twice on the transaction at %v", s.ts))
	}
	s.mgr.abortTransaction(ctx, s.ts)
}

// Close resolves the transaction if it has not already been resolved: it
// commits if StartApplying was ever invoked, and aborts otherwise. Unlike
// Commit and Abort, Close is idempotent and safe to call on an
// already-resolved transaction, which makes it safe to defer immediately
// after a transaction is reserved:
//
//	txn := mgr.StartTransaction(ctx)
//	defer txn.Close(ctx)
//	...
//	txn.Commit(ctx)
//
// so that a panic, an early return, or any other path that skips the
// explicit Commit/Abort call still resolves the transaction rather than
// leaking it in the manager's in-flight set forever.
func (s *ScopedTransaction) Close(ctx context.Context) {
	if finalState(s.final.Load()) != notFinal {
		return
	}
	if s.startedApplying.Load() {
		if !s.final.CompareAndSwap(int32(notFinal), int32(committed)) {
			return
		}
		s.mgr.commitTransaction(ctx, s.ts)
		return
	}
	if !s.final.CompareAndSwap(int32(notFinal), int32(aborted)) {
		return
	}
	s.mgr.abortTransaction(ctx, s.ts)
}

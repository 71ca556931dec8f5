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
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"

	"github.com/tabletdb/docdb/pkg/docerr"
	"github.com/tabletdb/docdb/pkg/hlc"
	"github.com/tabletdb/docdb/pkg/util/log"
	"github.com/tabletdb/docdb/pkg/util/metric"
	"github.com/tabletdb/docdb/pkg/util/syncutil"
)

// txnState is the lifecycle stage of an in-flight transaction tracked by a
// Manager: RESERVED means a timestamp has been handed out but the
// transaction's write batch has not yet been applied to the underlying
// store; APPLYING means the write batch is being applied (or has been
// applied) but the commit has not yet been announced.
type txnState int

const (
	reserved txnState = iota
	applying
)

// waitFor names the condition a Waiter is blocked on.
type waitFor int

const (
	// waitForAllCommitted blocks until every in-flight transaction at or
	// below the waiter's target timestamp has committed or aborted.
	waitForAllCommitted waitFor = iota
	// waitForNoneApplying blocks until none of the transactions that were
	// applying when the wait began is still applying; transactions that
	// start applying later are not waited for.
	waitForNoneApplying
)

// inFlightItem is the btree.Item stored in Manager's ordered in-flight set,
// keyed by timestamp.
type inFlightItem struct {
	ts    hlc.Timestamp
	state txnState
}

func (a inFlightItem) Less(than btree.Item) bool { return a.ts < than.(inFlightItem).ts }

func lookupKey(ts hlc.Timestamp) inFlightItem { return inFlightItem{ts: ts} }

// waiter is a blocked caller of WaitForCleanSnapshotAtTimestamp or
// WaitForApplyingTransactionsToCommit. done is closed by the manager once
// the waiter's condition is satisfied; it is the channel-based analogue of
// the quota pool's per-waiter notification channel.
type waiter struct {
	target hlc.Timestamp
	kind   waitFor
	done   chan struct{}

	// capturedApplying is the set of timestamps that were APPLYING at the
	// moment this waiter was created, for kind == waitForNoneApplying. The
	// waiter is released once none of exactly these timestamps remain
	// APPLYING, regardless of transactions that start applying afterward;
	// those are not part of the obligation the caller asked to wait for.
	capturedApplying map[hlc.Timestamp]struct{}
}

const defaultBTreeDegree = 16

// Manager is the per-tablet MVCC coordinator: it hands out timestamps to
// new transactions, tracks which ones are in flight (reserved or
// applying), maintains the "clean" watermark below which every transaction
// is known to have either committed or aborted, and lets readers take a
// consistent Snapshot or block until one becomes available.
//
// A single Manager instance is shared by every transaction and reader
// against one tablet. All exported methods are safe for concurrent use.
type Manager struct {
	clock   hlc.Clock
	metrics *metric.Registry

	mu struct {
		syncutil.Mutex

		// inFlight holds one inFlightItem per RESERVED or APPLYING
		// transaction, ordered by timestamp so the earliest in-flight
		// timestamp (the new floor for curSnap.allCommittedBefore) is a
		// single Min() call.
		inFlight *btree.BTree

		// curSnap is the manager's live snapshot: allCommittedBefore is the
		// low watermark below which every timestamp is known committed or
		// aborted (it never regresses), and extraCommitted holds timestamps
		// committed out of order, ahead of an earlier still-in-flight
		// transaction, so they are visible immediately rather than waiting
		// for the watermark to reach them.
		curSnap Snapshot

		// noNewBelowOrEq is the floor below or at which no new transaction
		// may ever be started, since a transaction has already resolved
		// there. Unlike curSnap.allCommittedBefore, it advances on every
		// commit (not just commits of the earliest in-flight transaction),
		// so it can run ahead of the watermark.
		noNewBelowOrEq hlc.Timestamp

		// waiters is the set of callers blocked on a condition over
		// inFlight/curSnap. Evaluated linearly on every state change,
		// mirroring mvcc.h's waiters_ vector; tablets are not expected to
		// have enough concurrent waiters for this to matter.
		waiters []*waiter
	}
}

// NewManager constructs a Manager that draws new transaction timestamps
// from clock. metrics may be nil, in which case metric updates are
// skipped.
func NewManager(clock hlc.Clock, metrics *metric.Registry) *Manager {
	m := &Manager{clock: clock, metrics: metrics}
	m.mu.inFlight = btree.New(defaultBTreeDegree)
	m.mu.curSnap = CleanSnapshotAt(hlc.Min)
	m.mu.noNewBelowOrEq = hlc.Invalid
	return m
}

// StartTransaction reserves a new transaction at a timestamp strictly
// greater than any previously assigned, and returns a ScopedTransaction
// the caller uses to drive it through APPLYING to COMMITTED or ABORTED.
func (m *Manager) StartTransaction(ctx context.Context) *ScopedTransaction {
	return m.startAt(ctx, m.clock.Now())
}

// StartTransactionAtLatest is like StartTransaction but reserves a
// timestamp at the clock's latest bound (Now() plus the clock's maximum
// error), for callers that must not be assigned a timestamp any other
// clock in the system could still consider to be in the past.
func (m *Manager) StartTransactionAtLatest(ctx context.Context) *ScopedTransaction {
	return m.startAt(ctx, m.clock.NowLatest())
}

// StartTransactionAtTimestamp reserves a transaction at a caller-chosen
// timestamp, as used when replaying a write whose timestamp was already
// fixed by log ordering. It fails with docerr.IllegalState if ts is
// invalid, at or below the no-new-transactions floor, already tracked in
// flight, or already committed in the current snapshot.
func (m *Manager) StartTransactionAtTimestamp(ctx context.Context, ts hlc.Timestamp) (*ScopedTransaction, error) {
	if !ts.IsValid() {
		return nil, docerr.IllegalStatef("mvcc: cannot start a transaction at the invalid timestamp")
	}
	m.mu.Lock()
	if ts.LessEq(m.mu.noNewBelowOrEq) {
		m.mu.Unlock()
		return nil, docerr.IllegalStatef("mvcc: timestamp %v is at or below the no-new-transactions floor %v", ts, m.mu.noNewBelowOrEq)
	}
	if m.mu.inFlight.Has(lookupKey(ts)) {
		m.mu.Unlock()
		return nil, docerr.IllegalStatef("mvcc: timestamp %v is already in flight", ts)
	}
	if m.mu.curSnap.IsCommitted(ts) {
		m.mu.Unlock()
		return nil, docerr.IllegalStatef("mvcc: timestamp %v is already committed", ts)
	}
	m.insertInFlightLocked(ts, reserved)
	m.mu.Unlock()
	m.clock.Update(ts)
	log.VEventf(ctx, 2, "mvcc: reserved transaction at %v (pre-assigned)", ts)
	return &ScopedTransaction{mgr: m, ts: ts}, nil
}

func (m *Manager) startAt(ctx context.Context, ts hlc.Timestamp) *ScopedTransaction {
	m.mu.Lock()
	m.insertInFlightLocked(ts, reserved)
	m.mu.Unlock()
	log.VEventf(ctx, 2, "mvcc: reserved transaction at %v", ts)
	return &ScopedTransaction{mgr: m, ts: ts}
}

func (m *Manager) insertInFlightLocked(ts hlc.Timestamp, state txnState) {
	m.mu.inFlight.ReplaceOrInsert(inFlightItem{ts: ts, state: state})
	if m.metrics != nil {
		m.metrics.InFlightTransactions.Set(float64(m.mu.inFlight.Len()))
	}
}

// startApplyingTransaction transitions ts from RESERVED to APPLYING. It
// panics (as an assertion failure) if ts is not currently tracked as
// RESERVED; that indicates a caller bug (double-apply, or applying a
// timestamp this manager never reserved), not a recoverable condition.
func (m *Manager) startApplyingTransaction(ctx context.Context, ts hlc.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.mu.inFlight.Get(lookupKey(ts)).(inFlightItem)
	if !ok || item.state != reserved {
		panic(errors.AssertionFailedf("mvcc: StartApplyingTransaction called for %v, which is not RESERVED", ts))
	}
	m.mu.inFlight.ReplaceOrInsert(inFlightItem{ts: ts, state: applying})
	log.VEventf(ctx, 2, "mvcc: transaction at %v now applying", ts)
}

// commitTransaction removes ts from the in-flight set. If ts was the
// earliest in-flight transaction, the watermark advances past it (and past
// any now-contiguous run of previously out-of-order commits); otherwise ts
// is folded into curSnap.extraCommitted so it is visible immediately
// without waiting for the still-earlier in-flight transactions to resolve.
// Either way, ts is added to noNewBelowOrEq since no new transaction may
// ever be started at or below a timestamp that has already committed. It
// panics if ts is not tracked.
func (m *Manager) commitTransaction(ctx context.Context, ts hlc.Timestamp) {
	m.mu.Lock()
	min, hadMin := m.mu.inFlight.Min().(inFlightItem)
	if _, ok := m.mu.inFlight.Delete(lookupKey(ts)).(inFlightItem); !ok {
		m.mu.Unlock()
		panic(errors.AssertionFailedf("mvcc: CommitTransaction called for %v, which is not in flight", ts))
	}
	if m.mu.noNewBelowOrEq.Less(ts) {
		m.mu.noNewBelowOrEq = ts
	}
	if hadMin && min.ts == ts {
		m.advanceCleanTimeLocked()
	} else {
		m.mu.curSnap = m.mu.curSnap.AddCommittedTimestamps(ts)
		m.notifyWaitersLocked()
	}
	if m.metrics != nil {
		m.metrics.InFlightTransactions.Set(float64(m.mu.inFlight.Len()))
		m.metrics.CommitsTotal.Inc()
	}
	m.mu.Unlock()
	log.VEventf(ctx, 2, "mvcc: transaction at %v committed", ts)
}

// abortTransaction removes ts from the in-flight set without treating it
// as committed for any purpose. It panics if ts is not tracked.
func (m *Manager) abortTransaction(ctx context.Context, ts hlc.Timestamp) {
	m.mu.Lock()
	if _, ok := m.mu.inFlight.Delete(lookupKey(ts)).(inFlightItem); !ok {
		m.mu.Unlock()
		panic(errors.AssertionFailedf("mvcc: AbortTransaction called for %v, which is not in flight", ts))
	}
	m.advanceCleanTimeLocked()
	if m.metrics != nil {
		m.metrics.InFlightTransactions.Set(float64(m.mu.inFlight.Len()))
		m.metrics.AbortsTotal.Inc()
	}
	m.mu.Unlock()
	log.VEventf(ctx, 2, "mvcc: transaction at %v aborted", ts)
}

// OfflineCommitTransaction records ts as committed without having gone
// through StartTransaction/StartApplyingTransaction on this Manager
// instance, as happens when a follower replica replays a write whose
// commit it observed only via the replicated log. Unlike commitTransaction,
// it never advances curSnap.allCommittedBefore (the follower has no
// in-flight bookkeeping to tell it whether ts was the earliest pending
// transaction): ts is folded into extraCommitted only. It is only valid
// while ts is not itself already tracked in flight.
func (m *Manager) OfflineCommitTransaction(ctx context.Context, ts hlc.Timestamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.inFlight.Has(lookupKey(ts)) {
		return docerr.IllegalStatef("mvcc: cannot offline-commit %v: it is tracked in flight on this manager", ts)
	}
	m.mu.curSnap = m.mu.curSnap.AddCommittedTimestamps(ts)
	if m.metrics != nil {
		m.metrics.CommitsTotal.Inc()
	}
	m.notifyWaitersLocked()
	return nil
}

// OfflineAdjustSafeTime advances both watermarks directly to safeTime,
// bypassing the in-flight bookkeeping entirely: everything at or below
// safeTime is trusted, by the caller, to have already resolved, so
// curSnap.allCommittedBefore and noNewBelowOrEq both advance to it. It is a
// no-op on whichever watermark safeTime does not advance. Used by a
// follower replica applying a safe-time update propagated from the leader
// rather than derived locally.
func (m *Manager) OfflineAdjustSafeTime(safeTime hlc.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.curSnap.allCommittedBefore.Less(safeTime) {
		m.raiseAllCommittedBeforeLocked(safeTime)
		m.notifyWaitersLocked()
	}
	if m.mu.noNewBelowOrEq.Less(safeTime) {
		m.mu.noNewBelowOrEq = safeTime
	}
}

// advanceCleanTimeLocked recomputes curSnap.allCommittedBefore after the
// in-flight set has shrunk. While any transaction is in flight it advances
// to the earliest remaining in-flight timestamp, since nothing below it can
// still be pending (noNewBelowOrEq does not bound it in that case). If no
// transaction is in flight, earliest_in_flight is effectively +infinity, so
// the watermark is bounded only by noNewBelowOrEq: the highest timestamp
// any transaction has ever resolved at is the only thing this manager can
// vouch for, not whatever the clock happens to read right now.
func (m *Manager) advanceCleanTimeLocked() {
	var newFloor hlc.Timestamp
	if min, ok := m.mu.inFlight.Min().(inFlightItem); ok {
		newFloor = min.ts
	} else {
		newFloor = m.mu.noNewBelowOrEq.Next()
	}
	m.raiseAllCommittedBeforeLocked(newFloor)
	m.notifyWaitersLocked()
}

// raiseAllCommittedBeforeLocked advances curSnap's allCommittedBefore
// watermark to newFloor, carrying forward any extraCommitted timestamps at
// or above the new floor (those below it are already implied committed by
// the watermark itself, so keeping them around would only waste memory).
// It is a no-op if newFloor does not advance the current watermark.
func (m *Manager) raiseAllCommittedBeforeLocked(newFloor hlc.Timestamp) {
	if !m.mu.curSnap.allCommittedBefore.Less(newFloor) {
		return
	}
	next := CleanSnapshotAt(newFloor)
	var surviving []hlc.Timestamp
	for t := range m.mu.curSnap.extraCommitted {
		if newFloor.LessEq(t) {
			surviving = append(surviving, t)
		}
	}
	m.mu.curSnap = next.AddCommittedTimestamps(surviving...)
}

// notifyWaitersLocked re-evaluates every blocked waiter and releases the
// ones whose condition now holds. Called with mu held.
func (m *Manager) notifyWaitersLocked() {
	remaining := m.mu.waiters[:0]
	for _, w := range m.mu.waiters {
		if m.conditionHoldsLocked(w) {
			close(w.done)
			continue
		}
		remaining = append(remaining, w)
	}
	m.mu.waiters = remaining
	if m.metrics != nil {
		m.metrics.WaitersBlocked.Set(float64(len(m.mu.waiters)))
	}
}

func (m *Manager) conditionHoldsLocked(w *waiter) bool {
	switch w.kind {
	case waitForAllCommitted:
		return w.target.Less(m.mu.curSnap.allCommittedBefore)
	case waitForNoneApplying:
		for ts := range w.capturedApplying {
			if item, ok := m.mu.inFlight.Get(lookupKey(ts)).(inFlightItem); ok && item.state == applying {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// TakeSnapshot returns the manager's current live Snapshot: every
// transaction below the watermark is committed, every transaction at or
// above it is committed only if it was folded into extraCommitted by an
// out-of-order commit, and otherwise not yet known committed.
func (m *Manager) TakeSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.curSnap
}

// GetCleanTimestamp returns the manager's current clean watermark
// (curSnap.allCommittedBefore).
func (m *Manager) GetCleanTimestamp() hlc.Timestamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.curSnap.allCommittedBefore
}

// GetApplyingTransactionsTimestamps returns the timestamps of every
// transaction currently in the APPLYING state, in ascending order.
func (m *Manager) GetApplyingTransactionsTimestamps() []hlc.Timestamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyingTimestampsLocked()
}

func (m *Manager) applyingTimestampsLocked() []hlc.Timestamp {
	var out []hlc.Timestamp
	m.mu.inFlight.Ascend(func(i btree.Item) bool {
		if item := i.(inFlightItem); item.state == applying {
			out = append(out, item.ts)
		}
		return true
	})
	return out
}

// AreAllTransactionsCommitted reports whether no in-flight timestamp
// (RESERVED or APPLYING) is at or below t. Since inFlight is ordered by
// timestamp, the earliest entry (if any) is the only one that can be at or
// below t.
func (m *Manager) AreAllTransactionsCommitted(t hlc.Timestamp) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	min, ok := m.mu.inFlight.Min().(inFlightItem)
	return !ok || t.Less(min.ts)
}

// IsInFlight reports whether t is currently tracked as RESERVED or
// APPLYING.
func (m *Manager) IsInFlight(t hlc.Timestamp) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.inFlight.Has(lookupKey(t))
}

// SafeTimeForFollower clamps proposedSafeTime to a value this manager can
// actually vouch for: it never exceeds the earliest currently in-flight
// timestamp (publishing a higher safe time could let a follower's reads
// see a gap where an in-flight transaction later commits below it), and it
// never regresses below the manager's own clean watermark.
func (m *Manager) SafeTimeForFollower(proposedSafeTime hlc.Timestamp) hlc.Timestamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	safe := proposedSafeTime
	if min, ok := m.mu.inFlight.Min().(inFlightItem); ok && min.ts.Less(safe) {
		safe = min.ts
	}
	if safe.Less(m.mu.curSnap.allCommittedBefore) {
		safe = m.mu.curSnap.allCommittedBefore
	}
	return safe
}

// WaitForCleanSnapshotAtTimestamp blocks until every transaction at or
// below ts has committed or aborted, then returns a clean Snapshot at the
// (possibly later) resulting watermark. It returns docerr.TimedOut if ctx
// is done first.
func (m *Manager) WaitForCleanSnapshotAtTimestamp(ctx context.Context, ts hlc.Timestamp) (Snapshot, error) {
	start := time.Now()
	if err := m.wait(ctx, waitForAllCommitted, ts); err != nil {
		return Snapshot{}, err
	}
	snap := CleanSnapshotAt(m.GetCleanTimestamp())
	if m.metrics != nil {
		m.metrics.CleanSnapshotWait.Observe(time.Since(start).Seconds())
	}
	return snap, nil
}

// WaitForApplyingTransactionsToCommit captures the set of timestamps
// currently APPLYING and blocks until every one of them has committed or
// aborted. Transactions that start applying after this call is made are
// not part of that obligation and cannot block or extend the wait. It
// returns docerr.TimedOut if ctx is done first.
func (m *Manager) WaitForApplyingTransactionsToCommit(ctx context.Context) error {
	return m.wait(ctx, waitForNoneApplying, hlc.Invalid)
}

func (m *Manager) wait(ctx context.Context, kind waitFor, target hlc.Timestamp) error {
	m.mu.Lock()
	w := &waiter{target: target, kind: kind, done: make(chan struct{})}
	if kind == waitForNoneApplying {
		for _, ts := range m.applyingTimestampsLocked() {
			if w.capturedApplying == nil {
				w.capturedApplying = make(map[hlc.Timestamp]struct{})
			}
			w.capturedApplying[ts] = struct{}{}
		}
	}
	if m.conditionHoldsLocked(w) {
		m.mu.Unlock()
		return nil
	}
	m.mu.waiters = append(m.mu.waiters, w)
	if m.metrics != nil {
		m.metrics.WaitersBlocked.Set(float64(len(m.mu.waiters)))
	}
	m.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		m.removeWaiter(w)
		return docerr.TimedOutf("mvcc: wait cancelled: %v", ctx.Err())
	}
}

func (m *Manager) removeWaiter(target *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.mu.waiters {
		if w == target {
			m.mu.waiters = append(m.mu.waiters[:i], m.mu.waiters[i+1:]...)
			break
		}
	}
	if m.metrics != nil {
		m.metrics.WaitersBlocked.Set(float64(len(m.mu.waiters)))
	}
}

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

// Package docerr defines the recoverable error kinds shared by the key
// codec and the MVCC coordinator: Corruption, IllegalState, and TimedOut.
// Fatal/assertion conditions are not modeled here; callers that hit a
// programming-bug invariant violation use errors.AssertionFailedf and panic
// directly, matching pkg/kv/kvserver/concurrency's
// panic(errors.AssertionFailedf(...)) idiom.
package docerr

import "github.com/cockroachdb/errors"

// Sentinel markers. Use errors.Is(err, docerr.Corruption) etc. to classify
// an error returned from this module; the concrete error always carries
// additional context via errors.Wrapf/Newf and is marked with one of these
// via errors.Mark.
var (
	// Corruption marks a malformed encoded key: unknown type byte,
	// truncated payload, unterminated escaped string, or trailing bytes
	// left over after a FullyDecode* call.
	Corruption = errors.New("docdb: corruption")

	// IllegalState marks an MVCC precondition violation that is
	// recoverable from the caller's point of view (e.g.
	// StartTransactionAtTimestamp naming an already-committed timestamp).
	IllegalState = errors.New("docdb: illegal state")

	// TimedOut marks an expired wait deadline.
	TimedOut = errors.New("docdb: timed out")
)

// Corruptf builds a Corruption-marked error with a formatted message.
func Corruptf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), Corruption)
}

// IllegalStatef builds an IllegalState-marked error with a formatted
// message.
func IllegalStatef(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), IllegalState)
}

// TimedOutf builds a TimedOut-marked error with a formatted message.
func TimedOutf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), TimedOut)
}

// IsCorruption reports whether err (or any error it wraps) is a Corruption
// error.
func IsCorruption(err error) bool { return errors.Is(err, Corruption) }

// IsIllegalState reports whether err (or any error it wraps) is an
// IllegalState error.
func IsIllegalState(err error) bool { return errors.Is(err, IllegalState) }

// IsTimedOut reports whether err (or any error it wraps) is a TimedOut
// error.
func IsTimedOut(err error) bool { return errors.Is(err, TimedOut) }

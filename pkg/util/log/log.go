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

// Package log provides the context-first, printf-style logging surface
// used throughout this module, in the shape of cockroach's pkg/util/log:
// Infof/Warningf/Errorf/Fatalf take a context.Context first so that
// logtags attached to the context (tablet ID, component) are rendered with
// every line, and VEventf gates verbose tracing behind a verbosity level.
package log

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/logtags"
)

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// verbosity is the global V-level threshold; VEventf only emits when its
// level is <= verbosity. Callers such as tests raise it via SetVerbosity.
var verbosity atomic.Int32

// SetVerbosity sets the global V-level threshold used by VEventf.
func SetVerbosity(level int32) { verbosity.Store(level) }

func tagsPrefix(ctx context.Context) string {
	if b := logtags.FromContext(ctx); b != nil && len(b.Get()) > 0 {
		return "[" + b.String() + "] "
	}
	return ""
}

// Infof logs an informational message, annotated with any logtags attached
// to ctx.
func Infof(ctx context.Context, format string, args ...interface{}) {
	std.Output(2, "INFO  "+tagsPrefix(ctx)+fmt.Sprintf(format, args...))
}

// Warningf logs a warning, annotated with any logtags attached to ctx.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	std.Output(2, "WARN  "+tagsPrefix(ctx)+fmt.Sprintf(format, args...))
}

// Errorf logs an error, annotated with any logtags attached to ctx.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	std.Output(2, "ERROR "+tagsPrefix(ctx)+fmt.Sprintf(format, args...))
}

// Fatalf logs a fatal message and terminates the process. It is reserved
// for violations of a program invariant that indicate a bug, not for
// conditions a caller can recover from.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	std.Output(2, "FATAL "+tagsPrefix(ctx)+fmt.Sprintf(format, args...))
	os.Exit(255)
}

// VEventf logs a verbose tracing message if level is at or below the
// configured verbosity threshold.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if level > verbosity.Load() {
		return
	}
	std.Output(2, fmt.Sprintf("V%d   ", level)+tagsPrefix(ctx)+fmt.Sprintf(format, args...))
}

// V reports whether level is at or below the configured verbosity
// threshold, for callers that want to guard an expensive format argument
// without building the string first.
func V(level int32) bool { return level <= verbosity.Load() }

// WithTablet annotates ctx with a tablet-id log tag, so every subsequent
// Infof/Warningf/Fatalf/VEventf call against the returned context is
// prefixed with it. Mirrors how cockroach annotates a replica's context
// with its range ID.
func WithTablet(ctx context.Context, tabletID string) context.Context {
	return logtags.AddTag(ctx, "t", tabletID)
}

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import "log/slog"

// logger is the package-level structured logger, wrapping
// log/slog rather than a third-party logger. Recovered backend
// errors (allocation and event-creation failures) log at Warn;
// failed command buffer submissions log at Error. Frame
// lifecycle events are not logged. Fatal programmer errors are
// never logged — they panic.
var logger = slog.Default()

// SetLogger overrides the package-level logger. Passing nil
// resets it to slog.Default().
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l
}

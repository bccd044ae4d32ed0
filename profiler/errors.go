package profiler

import "errors"

// Panic values for misuse of the span API. A report is only correct for a
// fully closed call tree, so these are never returned as errors.
var (
	// ErrUnbalancedClose is raised when a span is closed while one of its
	// children is still open.
	ErrUnbalancedClose = errors.New("perfaware/profiler: unbalanced span close")

	// ErrUnknownSpan is raised when closing a handle that does not refer to an
	// open span of this profiler.
	ErrUnknownSpan = errors.New("perfaware/profiler: unknown span")

	// ErrOpenSpans is raised when the profile ends with spans still open.
	ErrOpenSpans = errors.New("perfaware/profiler: spans still open")
)

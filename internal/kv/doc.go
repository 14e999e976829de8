// Package kv defines the ordered key-value scan primitive that plans execute
// against, and the cursor machinery shared by every backend.
//
// A backend implements Store. Its Scan narrows the requested range with
// ResumeRange, opens a bounded Iterator over that range, and returns
// NewCursor(it, continuation, props, clock). The cursor enforces row, byte and
// time limits and produces continuations, so backends only iterate.
//
// Continuation tokens are opaque to callers. A token captured from a cursor
// resumes a later scan of the same range immediately after the last entry
// returned, in the same direction. A cursor that ran to the end of its range
// has a nil continuation.
package kv

// Package descriptor holds the annotated transcript input consumed by the
// compiler: ordered segments, their paragraph children, timed tokens and
// effects, each with timing in whichever notation the markup used.
//
// Documents load from JSON or YAML. Timing is resolved lazily through
// Range.Resolve so the compiler can decide how to recover from a single bad
// value instead of rejecting the whole document.
package descriptor

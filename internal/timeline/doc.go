// Package timeline defines the compiled timeline model and the lookups that
// run against it.
//
// A Track is an ordered list of top-level items (segments and synthesized
// gaps) laid end to end on a gapless virtual axis. Each segment keeps its own
// native timing on the resource that backs it; the Track records the virtual
// offset of every top-level item so callers can translate between the two
// axes without walking the list.
//
// Tracks are produced by the compiler and are read-only afterwards. The
// index helpers (ClipAt, SegmentAt, ActiveEffects) binary-search the
// compiled structure and return an explicit "not found" result instead of
// failing, so playback code can treat "nothing here" as a normal outcome.
package timeline

// Package compiler builds timelines from segment descriptors.
//
// A compile pass resolves descriptor timing (repairing malformed entries with
// zero-length ranges), segments each child's transcript into caption cues,
// inserts gaps where adjacent native ranges are not contiguous, stores one
// WebVTT artifact per segment and lays the result out as a timeline.Track.
// Each pass replaces the previous one wholesale; its caption artifacts are
// released once the new Track exists.
package compiler

// Package captionstore keeps compiled WebVTT caption artifacts in SQLite.
//
// Each compile pass stores one artifact per top-level clip and the compiler
// releases the previous pass's artifacts once the new timeline is installed.
// An empty path opens a private in-memory database; a file path is guarded by
// an advisory lock so only one process writes it at a time. Rows left behind
// by an earlier process are purged on open since their timelines no longer
// exist.
package captionstore

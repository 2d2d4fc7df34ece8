// Package logging assembles structured slog loggers and formatting helpers used
// across timedtext.
//
// It owns the console and JSON handlers, level and output plumbing, and a
// fan-out that mirrors console output into a JSON log file. Context helpers
// tag lines with the segment being compiled, and every logger built for one
// CLI run carries the same session_id. A no-op logger serves tests and wiring
// code that cannot fail.
package logging

// Package session is the host-facing facade over the compiler and the
// playback controller. The host reports source changes and deep links; the
// session recompiles, swaps the Track and keeps the playhead where the user
// left it.
package session

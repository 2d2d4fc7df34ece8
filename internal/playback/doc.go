// Package playback drives a compiled timeline.Track as if it were a single
// media resource.
//
// A Controller opens one Handle per top-level item (plus one per distinct
// nested resource) through a Provider, keeps at most one of them playing, and
// maps each handle's native time onto the Track's virtual axis. All work runs
// on a single goroutine: public calls and native events are serialized, and
// native events raised while a call is in progress are handled after it
// completes.
//
// Loop supplies that goroutine for real programs. SimProvider offers
// in-memory resources with configurable buffering and seek latency.
package playback

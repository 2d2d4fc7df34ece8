package playback

import (
	"errors"

	"timedtext/internal/timeline"
)

// ErrNotReady reports an action that needs a handle with more buffered data.
var ErrNotReady = errors.New("resource not ready")

// ReadyState mirrors the media element readiness ladder.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

func (r ReadyState) String() string {
	switch r {
	case HaveMetadata:
		return "have_metadata"
	case HaveCurrentData:
		return "have_current_data"
	case HaveFutureData:
		return "have_future_data"
	case HaveEnoughData:
		return "have_enough_data"
	default:
		return "have_nothing"
	}
}

// NetworkState mirrors the media element network states.
type NetworkState int

const (
	NetworkEmpty NetworkState = iota
	NetworkIdle
	NetworkLoading
	NetworkNoSource
)

func (n NetworkState) String() string {
	switch n {
	case NetworkIdle:
		return "idle"
	case NetworkLoading:
		return "loading"
	case NetworkNoSource:
		return "no_source"
	default:
		return "empty"
	}
}

// NativeEvent is something a resource reports about itself.
type NativeEvent int

const (
	NativePlay NativeEvent = iota
	NativePause
	NativeTimeUpdate
	NativeSeeking
	NativeSeeked
	NativeReadyStateChange
	NativeWaiting
)

func (e NativeEvent) String() string {
	switch e {
	case NativePlay:
		return "play"
	case NativePause:
		return "pause"
	case NativeTimeUpdate:
		return "timeupdate"
	case NativeSeeking:
		return "seeking"
	case NativeSeeked:
		return "seeked"
	case NativeReadyStateChange:
		return "readystatechange"
	case NativeWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Handle is one independently buffered resource. Implementations report
// state changes through the notify function passed to Provider.Open and must
// call it on the controller's loop.
type Handle interface {
	Play() error
	Pause()
	// Load restarts buffering from scratch.
	Load()
	SetCurrentTime(native float64)
	CurrentTime() float64
	Paused() bool
	Seeking() bool
	ReadyState() ReadyState
	NetworkState() NetworkState
	SetMuted(muted bool)
	SetVolume(volume float64)
	SetPlaybackRate(rate float64)
	SetLoop(loop bool)
	Close() error
}

// Unit describes the playable piece a handle is opened for.
type Unit struct {
	// Index is the position of the owning top-level item in the Track.
	Index int
	// Primary is false for nested handles that back child clips on a
	// different resource than their segment.
	Primary bool
	Item    timeline.Item
	Media   timeline.MediaReference
	// Range is the native interval the unit plays.
	Range timeline.TimeRange
	// Offset is the virtual time at which Range.Start plays.
	Offset float64
}

// Provider opens handles for units.
type Provider interface {
	Open(unit Unit, notify func(NativeEvent)) (Handle, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(unit Unit, notify func(NativeEvent)) (Handle, error)

// Open calls f.
func (f ProviderFunc) Open(unit Unit, notify func(NativeEvent)) (Handle, error) {
	return f(unit, notify)
}

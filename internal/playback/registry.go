package playback

import (
	"github.com/samber/lo"

	"timedtext/internal/timeline"
)

// binding ties a unit to the handle opened for it. The registry never owns
// the handles' lifecycle beyond Close on detach.
type binding struct {
	Unit
	handle Handle
	// next is the following primary binding in timeline order.
	next *binding
	// nested are the bindings for child clips on other resources.
	nested []*binding

	detached    bool
	expectPause bool
	ending      bool
	prerolled   bool
}

func (b *binding) readyState() ReadyState {
	if b.handle == nil {
		return HaveNothing
	}
	return b.handle.ReadyState()
}

func (b *binding) networkState() NetworkState {
	if b.handle == nil {
		return NetworkNoSource
	}
	return b.handle.NetworkState()
}

func (b *binding) playing() bool {
	return b.handle != nil && !b.handle.Paused()
}

func (b *binding) seeking() bool {
	return b.handle != nil && b.handle.Seeking()
}

// pause pauses the handle and remembers that the resulting native pause
// event was requested.
func (b *binding) pause() {
	if b.handle == nil || b.handle.Paused() {
		return
	}
	b.expectPause = true
	b.handle.Pause()
}

// registry is the set of bindings for one compiled Track.
type registry struct {
	primaries []*binding
	all       []*binding
}

func buildUnits(track *timeline.Track) [][]Unit {
	units := make([][]Unit, 0, track.Len())
	for i, it := range track.Items {
		group := []Unit{{
			Index:   i,
			Primary: true,
			Item:    it,
			Media:   it.Media(),
			Range:   it.Range(),
			Offset:  track.Offsets[i],
		}}
		if clip, ok := it.(*timeline.Clip); ok {
			seen := map[string]bool{clip.MediaReference.Target: true}
			for _, child := range clip.Children {
				target := child.Media().Target
				if target == "" || seen[target] {
					continue
				}
				seen[target] = true
				group = append(group, Unit{
					Index:  i,
					Item:   child,
					Media:  child.Media(),
					Range:  child.Range(),
					Offset: track.Offsets[i] + child.Range().Start - clip.SourceRange.Start,
				})
			}
		}
		units = append(units, group)
	}
	return units
}

func (r *registry) primary(i int) *binding {
	if r == nil || i < 0 || i >= len(r.primaries) {
		return nil
	}
	return r.primaries[i]
}

func (r *registry) anySeeking() bool {
	return lo.SomeBy(r.all, (*binding).seeking)
}

func (r *registry) playingCount() int {
	return lo.CountBy(r.all, (*binding).playing)
}

// readyState is the lowest readiness across every handle.
func (r *registry) readyState() ReadyState {
	if len(r.all) == 0 {
		return HaveNothing
	}
	return lo.MinBy(r.all, func(a, b *binding) bool {
		return a.readyState() < b.readyState()
	}).readyState()
}

// networkState is Loading while anything loads, otherwise the highest state.
func (r *registry) networkState() NetworkState {
	if len(r.all) == 0 {
		return NetworkEmpty
	}
	if lo.SomeBy(r.all, func(b *binding) bool { return b.networkState() == NetworkLoading }) {
		return NetworkLoading
	}
	return lo.MaxBy(r.all, func(a, b *binding) bool {
		return a.networkState() > b.networkState()
	}).networkState()
}

func (r *registry) canPlay() bool {
	return len(r.all) > 0 && lo.EveryBy(r.all, func(b *binding) bool { return b.readyState() >= HaveFutureData })
}

func (r *registry) canPlayThrough() bool {
	return len(r.all) > 0 && lo.EveryBy(r.all, func(b *binding) bool { return b.readyState() >= HaveEnoughData })
}

func (r *registry) each(fn func(Handle)) {
	for _, b := range r.all {
		if b.handle != nil {
			fn(b.handle)
		}
	}
}

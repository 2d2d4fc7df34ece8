package timeline

import (
	"math"
	"sort"
)

// Position is the result of a virtual-time lookup.
type Position struct {
	// SegmentIndex is the index of Segment within Track.Items.
	SegmentIndex int
	Segment      Item
	// Clip is the child item containing the native time, nil when the
	// segment has no child covering it.
	Clip      Item
	TimedText *TimedText
	// Offset is the virtual offset of Segment.
	Offset float64
	// Native is the queried time on the segment's own resource.
	Native float64
}

// SegmentAt returns the index of the top-level item whose virtual window
// contains v.
func (t *Track) SegmentAt(v float64) (int, bool) {
	if t == nil || len(t.Items) == 0 || math.IsNaN(v) {
		return -1, false
	}
	n := len(t.Items)
	i := sort.Search(n, func(i int) bool {
		return t.Offsets[i]+t.Items[i].Range().Duration > v
	})
	if i >= n || v < t.Offsets[i] {
		return -1, false
	}
	return i, true
}

// ClipAt resolves a virtual time to the segment, child clip and token that
// cover it. Between tokens the nearest preceding token is returned so a
// caption stays visible through pauses.
func (t *Track) ClipAt(v float64) (Position, bool) {
	i, ok := t.SegmentAt(v)
	if !ok {
		return Position{}, false
	}
	seg := t.Items[i]
	pos := Position{
		SegmentIndex: i,
		Segment:      seg,
		Offset:       t.Offsets[i],
		Native:       v - t.Offsets[i] + seg.Range().Start,
	}
	clip, ok := seg.(*Clip)
	if !ok {
		return pos, true
	}
	child := FindChild(clip.Children, pos.Native)
	if child == nil {
		return pos, true
	}
	pos.Clip = child
	if c, ok := child.(*Clip); ok {
		pos.TimedText = FindTimedText(c.TimedTexts, pos.Native)
	}
	return pos, true
}

// FindChild returns the child whose native range contains native. Children
// are expected in ascending start order.
func FindChild(children []Item, native float64) Item {
	n := len(children)
	i := sort.Search(n, func(i int) bool {
		return children[i].Range().Start > native
	}) - 1
	if i < 0 {
		return nil
	}
	if children[i].Range().Contains(native) {
		return children[i]
	}
	return nil
}

// FindTimedText returns the token containing native, or the nearest token
// starting before it. It returns nil when native precedes every token.
func FindTimedText(tokens []*TimedText, native float64) *TimedText {
	n := len(tokens)
	i := sort.Search(n, func(i int) bool {
		return tokens[i].MarkedRange.Start > native
	}) - 1
	if i < 0 {
		return nil
	}
	return tokens[i]
}

// VirtualTime maps a native time on segment i to the virtual axis.
func (t *Track) VirtualTime(i int, native float64) (float64, bool) {
	if t == nil || i < 0 || i >= len(t.Items) {
		return 0, false
	}
	return native - t.Items[i].Range().Start + t.Offsets[i], true
}

// TokenSeekTime returns the virtual time to seek to when a token starting at
// tokenStart is selected in segment i. A token that starts exactly at the
// segment start is nudged forward so the lookup lands inside the segment
// rather than on the boundary shared with its predecessor.
func (t *Track) TokenSeekTime(i int, tokenStart, nudge float64) (float64, bool) {
	v, ok := t.VirtualTime(i, tokenStart)
	if !ok {
		return 0, false
	}
	if tokenStart == t.Items[i].Range().Start {
		v += nudge
	}
	return v, true
}

// ActiveEffect is an effect whose virtual window contains the queried time.
type ActiveEffect struct {
	SegmentIndex int
	Effect       Effect
	Start        float64
	End          float64
	// Progress runs from 0 to 1 across the effect window.
	Progress float64
	// FadeIn ramps from 0 to 1 over the first two seconds.
	FadeIn float64
}

const effectFadeSeconds = 2.0

// ActiveEffects lists the effects of the segment at v that are active at v.
func (t *Track) ActiveEffects(v float64) []ActiveEffect {
	i, ok := t.SegmentAt(v)
	if !ok {
		return nil
	}
	clip, ok := t.Items[i].(*Clip)
	if !ok || len(clip.Effects) == 0 {
		return nil
	}
	var out []ActiveEffect
	for _, eff := range clip.Effects {
		start := eff.SourceRange.Start - clip.SourceRange.Start + t.Offsets[i]
		end := start + eff.SourceRange.Duration
		if v < start || v >= end {
			continue
		}
		elapsed := v - start
		fade := 1.0
		if elapsed <= effectFadeSeconds {
			fade = elapsed / effectFadeSeconds
		}
		out = append(out, ActiveEffect{
			SegmentIndex: i,
			Effect:       eff,
			Start:        start,
			End:          end,
			Progress:     elapsed / eff.SourceRange.Duration,
			FadeIn:       fade,
		})
	}
	return out
}

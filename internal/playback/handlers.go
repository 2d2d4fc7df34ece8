package playback

import (
	"errors"
	"fmt"
	"math"

	"timedtext/internal/logging"
)

// Play starts playback at the current logical time. Within LoopBackGuard of
// the end it restarts from zero. It returns ErrNotReady when the handle to
// start has not buffered enough; nothing changes in that case.
func (c *Controller) Play() error {
	var err error
	c.do(func() { err = c.play() })
	return err
}

func (c *Controller) play() error {
	if c.closed || c.reg == nil || c.track.Len() == 0 {
		return nil
	}
	if c.track.Duration > 0 && c.currentTime >= c.track.Duration-c.opts.LoopBackGuard {
		c.seekTo(0)
	}
	if w := c.window; w != nil && c.currentTime >= w.end {
		c.window = nil
	}
	if c.active == nil && !c.seekTo(c.currentTime) {
		return nil
	}

	b := c.active
	c.pauseOthers(b)
	if b.handle == nil || b.readyState() < HaveFutureData {
		c.emit(EventWaiting)
		return fmt.Errorf("%w: segment %d is %s", ErrNotReady, b.Index, b.readyState())
	}
	if err := b.handle.Play(); err != nil {
		return fmt.Errorf("play segment %d: %w", b.Index, err)
	}
	wasPlaying := c.state == StatePlaying
	c.state = StatePlaying
	c.pendingPlay = false
	c.startTick()
	if !wasPlaying {
		c.emit(EventPlay)
	}
	return nil
}

// Pause stops playback and pauses every handle. Pausing during the last
// segment also publishes ended.
func (c *Controller) Pause() {
	c.do(c.pause)
}

func (c *Controller) pause() {
	c.cancelTick()
	c.pendingPlay = false
	if c.reg != nil {
		for _, b := range c.reg.all {
			b.pause()
		}
	}
	if c.state == StatePlaying || c.state == StateSeeking {
		c.state = StatePaused
		c.emit(EventPause)
		if c.onLastSegment() {
			c.emit(EventEnded)
		}
	}
}

func (c *Controller) onLastSegment() bool {
	return c.active != nil && c.active.next == nil
}

// SetCurrentTime seeks the logical playhead. It cancels a pending or active
// deep-link window. Times that resolve to no item are ignored.
func (c *Controller) SetCurrentTime(t float64) {
	c.do(func() {
		if c.closed {
			return
		}
		c.window = nil
		c.seekTo(t)
	})
}

// SeekToToken seeks to a token start on the native axis of segment i.
func (c *Controller) SeekToToken(i int, tokenStart float64) bool {
	var ok bool
	c.do(func() {
		if c.closed || c.track == nil {
			return
		}
		var t float64
		if t, ok = c.track.TokenSeekTime(i, tokenStart, c.opts.SeekNudge); ok {
			c.window = nil
			ok = c.seekTo(t)
		}
	})
	return ok
}

// SetWindow restricts playback to [start, end). Once every handle can play
// the controller seeks to start and plays; playback pauses at end.
func (c *Controller) SetWindow(start, end float64) error {
	if math.IsNaN(start) || math.IsNaN(end) || start < 0 || end <= start {
		return fmt.Errorf("invalid window [%g, %g)", start, end)
	}
	c.do(func() {
		c.window = &window{start: start, end: end}
		if c.canPlay {
			c.applyWindow()
		}
	})
	return nil
}

// Preview publishes a pseudo playhead event for t without moving playback.
func (c *Controller) Preview(t float64) {
	c.do(func() { c.publishPlayhead(t, true) })
}

func (c *Controller) seekTo(t float64) bool {
	if c.track == nil || c.reg == nil || math.IsNaN(t) {
		return false
	}
	idx, ok := c.track.SegmentAt(t)
	if !ok {
		return false
	}
	target := c.reg.primary(idx)
	wasPlaying := c.state == StatePlaying || (c.state == StateSeeking && c.resumeState == StatePlaying)

	c.cancelTick()
	if prev := c.active; prev != nil && prev != target {
		prev.pause()
		for _, n := range prev.nested {
			n.pause()
		}
	}

	c.currentTime = t
	c.active = target
	target.prerolled = false
	target.ending = false
	c.emit(EventSeeking)

	native := t - target.Offset + target.Range.Start
	if target.handle != nil {
		target.handle.SetCurrentTime(native)
	}
	for _, n := range target.nested {
		if n.handle != nil && n.Range.Contains(native) {
			n.handle.SetCurrentTime(native)
		}
	}

	switch {
	case wasPlaying:
		c.state = StatePlaying
		c.resume()
	case target.seeking():
		if c.state != StateSeeking {
			c.resumeState = c.state
			if c.resumeState == StateEnded {
				c.resumeState = StatePaused
			}
		}
		c.state = StateSeeking
	case c.state == StateEnded:
		c.state = StatePaused
	}

	c.emit(EventTimeUpdate)
	c.publishPlayhead(t, false)
	return true
}

// resume starts the active handle as part of continuing playback. A handle
// that is not ready leaves the controller waiting; readiness changes retry.
func (c *Controller) resume() {
	b := c.active
	if b == nil {
		return
	}
	c.pauseOthers(b)
	if b.handle == nil || b.readyState() < HaveFutureData {
		c.cancelTick()
		if !c.pendingPlay {
			c.pendingPlay = true
			c.emit(EventWaiting)
		}
		return
	}
	if err := b.handle.Play(); err != nil {
		if !errors.Is(err, ErrNotReady) {
			logging.WarnWithContext(c.logger, "resource refused to play", "playback_play_failed",
				logging.Int("segment_index", b.Index),
				logging.Error(err),
				logging.String(logging.FieldImpact, "playback waits for the next readiness change"),
			)
		}
		c.pendingPlay = true
		return
	}
	c.pendingPlay = false
	c.state = StatePlaying
	c.startTick()
}

func (c *Controller) pauseOthers(keep *binding) {
	for _, b := range c.reg.all {
		if b != keep {
			b.pause()
		}
	}
}

func (c *Controller) onNative(b *binding, ev NativeEvent) {
	if b.detached || c.closed {
		return
	}
	switch ev {
	case NativeReadyStateChange, NativeWaiting:
		c.updateReadiness()
	case NativeSeeked:
		if b != c.active {
			return
		}
		if c.state == StateSeeking {
			c.state = c.resumeState
		}
		c.emit(EventSeeked)
	case NativeTimeUpdate:
		if c.reg.anySeeking() {
			return
		}
		if b != c.active && !b.playing() {
			return
		}
		c.progress(b)
	case NativePause:
		c.onPause(b)
	case NativePlay:
		if b != c.active || !b.Primary {
			b.pause()
			return
		}
		if c.state != StatePlaying && b.playing() {
			c.state = StatePlaying
			c.pendingPlay = false
			c.startTick()
			c.emit(EventPlay)
		}
	}
}

func (c *Controller) onPause(b *binding) {
	if b.expectPause {
		b.expectPause = false
		if b.ending {
			b.ending = false
			if b == c.active {
				c.finish()
			}
		}
		return
	}
	if b != c.active || c.state != StatePlaying {
		return
	}
	c.cancelTick()
	c.state = StatePaused
	c.emit(EventPause)
	if c.onLastSegment() {
		c.emit(EventEnded)
	}
}

// progress maps the native time of a primary handle onto the logical
// timeline.
func (c *Controller) progress(b *binding) {
	if b.handle == nil || !b.Primary {
		return
	}
	native := b.handle.CurrentTime()
	r := b.Range
	switch {
	case native < r.Start-timeEpsilon:
		b.pause()
		if b == c.active && c.state == StatePlaying {
			c.cancelTick()
			c.state = StatePaused
			c.emit(EventPause)
		}
	case native < r.End():
		if b != c.active {
			b.pause()
			return
		}
		logical := native - r.Start + b.Offset
		if w := c.window; w != nil && w.started && logical >= w.end {
			c.currentTime = w.end
			c.window = nil
			c.pause()
			c.emit(EventTimeUpdate)
			return
		}
		c.currentTime = logical
		c.preroll(b.next)
		c.emit(EventTimeUpdate)
		c.publishPlayhead(logical, false)
	default:
		if b != c.active {
			b.pause()
			return
		}
		c.advance(b)
	}
}

// advance hands playback from b to the next primary handle.
func (c *Controller) advance(b *binding) {
	if b.next == nil {
		c.currentTime = c.track.Duration
		if b.playing() {
			b.ending = true
			b.pause()
			return
		}
		c.finish()
		return
	}
	next := b.next
	b.pause()
	for _, n := range b.nested {
		n.pause()
	}
	c.active = next
	c.currentTime = next.Offset
	next.ending = false
	if next.handle != nil && !next.prerolled {
		next.handle.SetCurrentTime(next.Range.Start)
	}
	next.prerolled = false
	c.emit(EventTimeUpdate)
	c.publishPlayhead(c.currentTime, false)
	c.resume()
}

func (c *Controller) preroll(next *binding) {
	if next == nil || next.prerolled || next.handle == nil {
		return
	}
	next.prerolled = true
	if math.Abs(next.handle.CurrentTime()-next.Range.Start) > timeEpsilon {
		next.handle.SetCurrentTime(next.Range.Start)
	}
}

func (c *Controller) finish() {
	c.cancelTick()
	c.pendingPlay = false
	c.currentTime = c.track.Duration
	c.state = StateEnded
	c.emit(EventPause)
	c.emit(EventEnded)
	if c.loop {
		c.seekTo(0)
		if err := c.play(); err != nil {
			c.logger.Debug("loop restart deferred", logging.Error(err))
		}
	}
}

func (c *Controller) updateReadiness() {
	if c.reg == nil {
		return
	}
	canPlay := c.reg.canPlay()
	through := c.reg.canPlayThrough()
	switch {
	case canPlay && !c.canPlay:
		c.canPlay = true
		c.buffering = false
		c.emit(EventCanPlay)
	case !canPlay && c.canPlay:
		c.canPlay = false
		c.buffering = true
		c.emit(EventWaiting)
	}
	if through && !c.canThrough {
		c.canThrough = true
		c.emit(EventCanPlayThrough)
	} else if !through {
		c.canThrough = false
	}

	if !canPlay {
		return
	}
	if w := c.window; w != nil && !w.started {
		c.applyWindow()
		return
	}
	if c.pendingPlay && c.active != nil && c.active.readyState() >= HaveFutureData {
		c.resume()
	}
}

func (c *Controller) applyWindow() {
	w := c.window
	w.started = true
	if !c.seekTo(w.start) {
		c.window = nil
		return
	}
	if err := c.play(); err != nil {
		c.logger.Debug("deep link playback deferred", logging.Error(err))
	}
}

func (c *Controller) publishPlayhead(t float64, pseudo bool) {
	if c.track == nil {
		return
	}
	pos, ok := c.track.ClipAt(t)
	if !ok {
		return
	}
	c.publish(Event{
		Type: EventPlayhead,
		Time: t,
		Playhead: &Playhead{
			Time:         t,
			Offset:       pos.Offset,
			SegmentIndex: pos.SegmentIndex,
			Segment:      pos.Segment,
			Clip:         pos.Clip,
			TimedText:    pos.TimedText,
			Pseudo:       pseudo,
			Effects:      c.track.ActiveEffects(t),
		},
	})
}

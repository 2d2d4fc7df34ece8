package playback

import (
	"log/slog"
	"math"
	"time"

	"timedtext/internal/logging"
	"timedtext/internal/timeline"
)

// State is the controller's playback state. Buffering is tracked separately.
type State int

const (
	StateIdle State = iota
	StateSeeking
	StatePlaying
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateSeeking:
		return "seeking"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "idle"
	}
}

// Options tune the controller.
type Options struct {
	// TickHz is the rate of the synthetic progress tick while playing.
	TickHz float64
	// LoopBackGuard is the distance from the end within which Play restarts
	// from zero.
	LoopBackGuard float64
	// SeekNudge is added to a token seek that lands exactly on a segment
	// start so the lookup resolves inside the segment.
	SeekNudge float64
}

// DefaultOptions returns the stock controller settings.
func DefaultOptions() Options {
	return Options{TickHz: 15, LoopBackGuard: 0.4, SeekNudge: 0.02}
}

func (o Options) sanitized() Options {
	def := DefaultOptions()
	if o.TickHz <= 0 {
		o.TickHz = def.TickHz
	}
	if o.LoopBackGuard < 0 {
		o.LoopBackGuard = def.LoopBackGuard
	}
	if o.SeekNudge < 0 {
		o.SeekNudge = def.SeekNudge
	}
	return o
}

const timeEpsilon = timeline.Epsilon

type window struct {
	start, end float64
	started    bool
}

// Controller presents one play/pause/seek surface over the handles backing a
// compiled Track. It is not safe for concurrent use: every call, and every
// native event, must arrive on the scheduler's loop.
type Controller struct {
	logger   *slog.Logger
	sched    Scheduler
	provider Provider
	opts     Options

	track  *timeline.Track
	reg    *registry
	active *binding

	state       State
	resumeState State
	buffering   bool
	pendingPlay bool
	canPlay     bool
	canThrough  bool
	currentTime float64

	muted  bool
	volume float64
	rate   float64
	loop   bool

	window *window
	tick   Task

	subscribers []subscriber
	nextSubID   int

	queue       []func()
	dispatching bool
	closed      bool
}

// New returns a controller with no Track loaded.
func New(logger *slog.Logger, sched Scheduler, provider Provider, opts Options) *Controller {
	return &Controller{
		logger:   logging.NewComponentLogger(logger, "playback"),
		sched:    sched,
		provider: provider,
		opts:     opts.sanitized(),
		volume:   1,
		rate:     1,
	}
}

// do runs a public operation. Native events raised while it runs are queued
// and handled before it returns.
func (c *Controller) do(fn func()) {
	if c.dispatching {
		fn()
		return
	}
	c.dispatching = true
	defer func() { c.dispatching = false }()
	fn()
	c.drain()
}

// post runs fn now, or after the operation currently in progress.
func (c *Controller) post(fn func()) {
	if c.dispatching {
		c.queue = append(c.queue, fn)
		return
	}
	c.do(fn)
}

func (c *Controller) drain() {
	for len(c.queue) > 0 {
		fn := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		fn()
	}
}

// Load installs track, replacing and detaching every handle of the previous
// one, and positions the playhead at the given virtual time.
func (c *Controller) Load(track *timeline.Track, at float64) {
	c.do(func() {
		if c.closed {
			return
		}
		c.detach()
		c.track = track
		c.reg = &registry{}
		c.state = StateIdle
		c.canPlay, c.canThrough = false, false
		c.buffering = true
		c.currentTime = 0
		if track.Len() == 0 {
			c.emit(EventDurationChange)
			return
		}

		var prev *binding
		for _, group := range buildUnits(track) {
			var primary *binding
			for _, u := range group {
				b := c.open(u)
				c.reg.all = append(c.reg.all, b)
				if u.Primary {
					primary = b
					c.reg.primaries = append(c.reg.primaries, b)
					if prev != nil {
						prev.next = b
					}
					prev = b
					continue
				}
				primary.nested = append(primary.nested, b)
			}
		}
		c.logger.Debug("track loaded",
			logging.Int("items", track.Len()),
			logging.Int("handles", len(c.reg.all)),
			logging.Float64("duration", track.Duration),
		)

		c.emit(EventDurationChange)
		at = clamp(at, 0, track.Duration)
		if !c.seekTo(at) {
			c.seekTo(0)
		}
		c.updateReadiness()
	})
}

func (c *Controller) open(u Unit) *binding {
	b := &binding{Unit: u}
	if c.provider == nil {
		return b
	}
	h, err := c.provider.Open(u, func(ev NativeEvent) {
		c.post(func() { c.onNative(b, ev) })
	})
	if err != nil {
		logging.WarnWithContext(c.logger, "resource handle unavailable", "playback_handle_open_failed",
			logging.Int("segment_index", u.Index),
			logging.String("media", u.Media.Target),
			logging.Error(err),
			logging.String(logging.FieldImpact, "playback stays buffering until the track is reloaded"),
		)
		return b
	}
	b.handle = h
	h.SetMuted(c.muted)
	h.SetVolume(c.volume)
	h.SetPlaybackRate(c.rate)
	h.SetLoop(c.loop)
	return b
}

// detach disconnects every handle of the current Track.
func (c *Controller) detach() {
	c.cancelTick()
	c.pendingPlay = false
	c.active = nil
	if c.reg == nil {
		return
	}
	for _, b := range c.reg.all {
		b.detached = true
		if b.handle == nil {
			continue
		}
		if err := b.handle.Close(); err != nil {
			c.logger.Debug("handle close failed", logging.Int("segment_index", b.Index), logging.Error(err))
		}
	}
	c.reg = nil
}

// Close detaches every handle and drops subscribers. The controller ignores
// all later calls.
func (c *Controller) Close() {
	c.do(func() {
		c.detach()
		c.track = nil
		c.window = nil
		c.subscribers = nil
		c.queue = nil
		c.closed = true
	})
}

// Track returns the loaded Track.
func (c *Controller) Track() *timeline.Track { return c.track }

// CurrentTime returns the logical playhead.
func (c *Controller) CurrentTime() float64 { return c.currentTime }

// Duration returns the Track duration, zero when nothing is loaded.
func (c *Controller) Duration() float64 {
	if c.track == nil {
		return 0
	}
	return c.track.Duration
}

// State returns the playback state.
func (c *Controller) State() State { return c.state }

// Playing reports whether playback is active.
func (c *Controller) Playing() bool { return c.state == StatePlaying }

// Paused is the negation of Playing.
func (c *Controller) Paused() bool { return c.state != StatePlaying }

// Buffering reports whether playback waits on data.
func (c *Controller) Buffering() bool { return c.buffering || c.pendingPlay }

// ReadyState is the lowest readiness across all handles.
func (c *Controller) ReadyState() ReadyState {
	if c.reg == nil {
		return HaveNothing
	}
	return c.reg.readyState()
}

// NetworkState aggregates the handles' network states.
func (c *Controller) NetworkState() NetworkState {
	if c.reg == nil {
		return NetworkEmpty
	}
	return c.reg.networkState()
}

// ActiveIndex returns the Track index of the active primary handle.
func (c *Controller) ActiveIndex() (int, bool) {
	if c.active == nil {
		return -1, false
	}
	return c.active.Index, true
}

// PlayingHandles counts handles that report themselves playing.
func (c *Controller) PlayingHandles() int {
	if c.reg == nil {
		return 0
	}
	return c.reg.playingCount()
}

func (c *Controller) Muted() bool           { return c.muted }
func (c *Controller) Volume() float64       { return c.volume }
func (c *Controller) PlaybackRate() float64 { return c.rate }
func (c *Controller) Loop() bool            { return c.loop }

// SetMuted fans the mute flag out to every handle.
func (c *Controller) SetMuted(muted bool) {
	c.do(func() {
		c.muted = muted
		c.fanOut(func(h Handle) { h.SetMuted(muted) })
		c.emit(EventVolumeChange)
	})
}

// SetVolume sets the volume, clamped to [0, 1], on every handle.
func (c *Controller) SetVolume(volume float64) {
	c.do(func() {
		if math.IsNaN(volume) {
			return
		}
		c.volume = clamp(volume, 0, 1)
		c.fanOut(func(h Handle) { h.SetVolume(c.volume) })
		c.emit(EventVolumeChange)
	})
}

// SetPlaybackRate sets the rate on every handle. Non-positive rates are
// ignored.
func (c *Controller) SetPlaybackRate(rate float64) {
	c.do(func() {
		if !(rate > 0) || math.IsInf(rate, 0) {
			return
		}
		c.rate = rate
		c.fanOut(func(h Handle) { h.SetPlaybackRate(rate) })
		c.emit(EventRateChange)
	})
}

// SetLoop makes playback restart from zero when the Track ends.
func (c *Controller) SetLoop(loop bool) {
	c.do(func() {
		c.loop = loop
		c.fanOut(func(h Handle) { h.SetLoop(loop) })
	})
}

func (c *Controller) fanOut(fn func(Handle)) {
	if c.reg != nil {
		c.reg.each(fn)
	}
}

// LoadMedia asks every handle to restart buffering.
func (c *Controller) LoadMedia() {
	c.do(func() {
		if c.reg == nil {
			return
		}
		c.pause()
		c.reg.each(func(h Handle) { h.Load() })
		c.updateReadiness()
	})
}

func (c *Controller) startTick() {
	c.cancelTick()
	if c.sched == nil {
		return
	}
	interval := time.Duration(float64(time.Second) / c.opts.TickHz)
	var fire func()
	fire = func() {
		c.tick = nil
		c.do(func() {
			if c.closed || c.state != StatePlaying || c.active == nil {
				return
			}
			if !c.reg.anySeeking() {
				c.progress(c.active)
			}
			if c.state == StatePlaying && c.tick == nil {
				c.tick = c.sched.Schedule(interval, fire)
			}
		})
	}
	c.tick = c.sched.Schedule(interval, fire)
}

func (c *Controller) cancelTick() {
	if c.tick != nil {
		c.tick.Cancel()
		c.tick = nil
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package playback

import (
	"errors"
	"time"
)

// SimOptions shape the behaviour of simulated resources.
type SimOptions struct {
	// BufferDelay is the time from open (or Load) to HaveEnoughData.
	// Metadata arrives halfway through.
	BufferDelay time.Duration
	// SeekDelay is how long a seek keeps the handle in the seeking state.
	SeekDelay time.Duration
	// UpdateInterval is the native timeupdate cadence.
	UpdateInterval time.Duration
	// Speed scales how much media time passes per update.
	Speed float64
}

// DefaultSimOptions approximates a local media element.
func DefaultSimOptions() SimOptions {
	return SimOptions{
		BufferDelay:    200 * time.Millisecond,
		SeekDelay:      30 * time.Millisecond,
		UpdateInterval: 250 * time.Millisecond,
		Speed:          1,
	}
}

var errHandleClosed = errors.New("handle closed")

// SimProvider opens simulated handles driven by a Scheduler.
type SimProvider struct {
	sched   Scheduler
	opts    SimOptions
	handles []*SimHandle
}

// NewSimProvider returns a provider whose handles buffer, seek and advance on
// sched.
func NewSimProvider(sched Scheduler, opts SimOptions) *SimProvider {
	def := DefaultSimOptions()
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = def.UpdateInterval
	}
	if opts.Speed <= 0 {
		opts.Speed = def.Speed
	}
	if opts.BufferDelay < 0 {
		opts.BufferDelay = 0
	}
	if opts.SeekDelay < 0 {
		opts.SeekDelay = 0
	}
	return &SimProvider{sched: sched, opts: opts}
}

// Open implements Provider.
func (p *SimProvider) Open(unit Unit, notify func(NativeEvent)) (Handle, error) {
	h := &SimHandle{
		unit:    unit,
		sched:   p.sched,
		opts:    p.opts,
		notify:  notify,
		current: unit.Range.Start,
		paused:  true,
		rate:    1,
		volume:  1,
	}
	h.Load()
	p.handles = append(p.handles, h)
	return h, nil
}

// Handles returns every handle opened so far, closed ones included.
func (p *SimProvider) Handles() []*SimHandle {
	return p.handles
}

// SimHandle is an in-memory resource with configurable latency. Its media
// has no end of its own; the controller stops it at the unit boundary.
type SimHandle struct {
	unit   Unit
	sched  Scheduler
	opts   SimOptions
	notify func(NativeEvent)

	current float64
	paused  bool
	seeking bool
	ready   ReadyState
	network NetworkState
	muted   bool
	volume  float64
	rate    float64
	loop    bool
	closed  bool

	bufferTask Task
	seekTask   Task
	updateTask Task
}

// Unit returns the unit the handle was opened for.
func (h *SimHandle) Unit() Unit { return h.unit }

// Closed reports whether Close was called.
func (h *SimHandle) Closed() bool { return h.closed }

func (h *SimHandle) emit(ev NativeEvent) {
	if !h.closed && h.notify != nil {
		h.notify(ev)
	}
}

func cancelTask(t *Task) {
	if *t != nil {
		(*t).Cancel()
		*t = nil
	}
}

// Load restarts buffering.
func (h *SimHandle) Load() {
	if h.closed {
		return
	}
	cancelTask(&h.bufferTask)
	h.ready = HaveNothing
	h.network = NetworkLoading
	half := h.opts.BufferDelay / 2
	h.bufferTask = h.sched.Schedule(half, func() {
		h.ready = HaveMetadata
		h.emit(NativeReadyStateChange)
		h.bufferTask = h.sched.Schedule(h.opts.BufferDelay-half, func() {
			h.bufferTask = nil
			h.ready = HaveEnoughData
			h.network = NetworkIdle
			h.emit(NativeReadyStateChange)
		})
	})
}

func (h *SimHandle) Play() error {
	if h.closed {
		return errHandleClosed
	}
	if h.ready < HaveFutureData {
		return ErrNotReady
	}
	if !h.paused {
		return nil
	}
	h.paused = false
	h.emit(NativePlay)
	h.scheduleUpdate()
	return nil
}

func (h *SimHandle) scheduleUpdate() {
	cancelTask(&h.updateTask)
	h.updateTask = h.sched.Schedule(h.opts.UpdateInterval, func() {
		h.updateTask = nil
		if h.closed || h.paused {
			return
		}
		if !h.seeking {
			h.current += h.opts.UpdateInterval.Seconds() * h.rate * h.opts.Speed
			h.emit(NativeTimeUpdate)
		}
		if !h.paused && !h.closed {
			h.scheduleUpdate()
		}
	})
}

func (h *SimHandle) Pause() {
	if h.closed || h.paused {
		return
	}
	h.paused = true
	cancelTask(&h.updateTask)
	h.emit(NativePause)
}

func (h *SimHandle) SetCurrentTime(native float64) {
	if h.closed {
		return
	}
	h.current = native
	h.seeking = true
	h.emit(NativeSeeking)
	cancelTask(&h.seekTask)
	h.seekTask = h.sched.Schedule(h.opts.SeekDelay, func() {
		h.seekTask = nil
		h.seeking = false
		h.emit(NativeSeeked)
		h.emit(NativeTimeUpdate)
	})
}

func (h *SimHandle) CurrentTime() float64       { return h.current }
func (h *SimHandle) Paused() bool               { return h.paused }
func (h *SimHandle) Seeking() bool              { return h.seeking }
func (h *SimHandle) ReadyState() ReadyState     { return h.ready }
func (h *SimHandle) NetworkState() NetworkState { return h.network }
func (h *SimHandle) SetMuted(muted bool)        { h.muted = muted }
func (h *SimHandle) SetVolume(volume float64)   { h.volume = volume }
func (h *SimHandle) SetPlaybackRate(rate float64) {
	if rate > 0 {
		h.rate = rate
	}
}
func (h *SimHandle) SetLoop(loop bool) { h.loop = loop }

func (h *SimHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.paused = true
	cancelTask(&h.bufferTask)
	cancelTask(&h.seekTask)
	cancelTask(&h.updateTask)
	return nil
}

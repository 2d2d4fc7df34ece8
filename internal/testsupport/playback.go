package testsupport

import (
	"errors"
	"sort"
	"time"

	"timedtext/internal/playback"
)

// ManualScheduler is a deterministic playback.Scheduler. Nothing runs until
// the test calls Flush or Advance.
type ManualScheduler struct {
	now    time.Duration
	seq    int
	tasks  []*manualTask
	posted []func()
}

type manualTask struct {
	due       time.Duration
	seq       int
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() { t.cancelled = true }

// Post queues fn for the next Flush or Advance.
func (s *ManualScheduler) Post(fn func()) {
	s.posted = append(s.posted, fn)
}

// Schedule runs fn once the scheduler clock passes d from now.
func (s *ManualScheduler) Schedule(d time.Duration, fn func()) playback.Task {
	s.seq++
	t := &manualTask{due: s.now + max(d, 0), seq: s.seq, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// Now returns the elapsed scheduler time.
func (s *ManualScheduler) Now() time.Duration { return s.now }

// Pending counts scheduled tasks that have not run or been cancelled.
func (s *ManualScheduler) Pending() int {
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Flush runs posted callbacks, including ones posted while flushing.
func (s *ManualScheduler) Flush() {
	for len(s.posted) > 0 {
		fn := s.posted[0]
		s.posted = s.posted[1:]
		fn()
	}
}

// Advance moves the clock forward by d, running every task that falls due in
// time order.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.now + d
	s.Flush()
	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		s.now = t.due
		t.cancelled = true
		t.fn()
		s.Flush()
	}
	s.now = target
}

func (s *ManualScheduler) nextDue(target time.Duration) *manualTask {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	s.tasks = live
	sort.Slice(s.tasks, func(i, j int) bool {
		if s.tasks[i].due != s.tasks[j].due {
			return s.tasks[i].due < s.tasks[j].due
		}
		return s.tasks[i].seq < s.tasks[j].seq
	})
	if len(s.tasks) == 0 || s.tasks[0].due > target {
		return nil
	}
	return s.tasks[0]
}

// FakeHandle is a synchronous playback.Handle. Every state change notifies
// immediately; seeks complete inside SetCurrentTime.
type FakeHandle struct {
	Unit playback.Unit

	Current float64
	Ready   playback.ReadyState
	Network playback.NetworkState
	Muted   bool
	Volume  float64
	Rate    float64
	Looping bool
	Closed  bool
	Loads   int
	Seeks   []float64

	paused  bool
	seeking bool
	notify  func(playback.NativeEvent)
}

func (h *FakeHandle) emit(ev playback.NativeEvent) {
	if !h.Closed && h.notify != nil {
		h.notify(ev)
	}
}

func (h *FakeHandle) Play() error {
	if h.Closed {
		return errors.New("closed")
	}
	if h.Ready < playback.HaveFutureData {
		return playback.ErrNotReady
	}
	if h.paused {
		h.paused = false
		h.emit(playback.NativePlay)
	}
	return nil
}

func (h *FakeHandle) Pause() {
	if h.paused {
		return
	}
	h.paused = true
	h.emit(playback.NativePause)
}

func (h *FakeHandle) Load() {
	h.Loads++
}

func (h *FakeHandle) SetCurrentTime(native float64) {
	h.Current = native
	h.Seeks = append(h.Seeks, native)
	h.emit(playback.NativeSeeking)
	h.emit(playback.NativeSeeked)
}

func (h *FakeHandle) CurrentTime() float64                { return h.Current }
func (h *FakeHandle) Paused() bool                        { return h.paused }
func (h *FakeHandle) Seeking() bool                       { return h.seeking }
func (h *FakeHandle) ReadyState() playback.ReadyState     { return h.Ready }
func (h *FakeHandle) NetworkState() playback.NetworkState { return h.Network }
func (h *FakeHandle) SetMuted(muted bool)                 { h.Muted = muted }
func (h *FakeHandle) SetVolume(volume float64)            { h.Volume = volume }
func (h *FakeHandle) SetPlaybackRate(rate float64)        { h.Rate = rate }
func (h *FakeHandle) SetLoop(loop bool)                   { h.Looping = loop }

func (h *FakeHandle) Close() error {
	h.Closed = true
	return nil
}

// SetReady changes readiness and reports it.
func (h *FakeHandle) SetReady(state playback.ReadyState) {
	h.Ready = state
	if state >= playback.HaveFutureData {
		h.Network = playback.NetworkIdle
	}
	h.emit(playback.NativeReadyStateChange)
}

// SetSeeking holds the handle in (or releases it from) the seeking state.
func (h *FakeHandle) SetSeeking(seeking bool) {
	h.seeking = seeking
	if seeking {
		h.emit(playback.NativeSeeking)
		return
	}
	h.emit(playback.NativeSeeked)
}

// Progress moves native time to t and reports a timeupdate.
func (h *FakeHandle) Progress(t float64) {
	h.Current = t
	h.emit(playback.NativeTimeUpdate)
}

// ExternalPause pauses the handle as if the user paused the resource itself.
func (h *FakeHandle) ExternalPause() {
	h.Pause()
}

// FakeProvider opens FakeHandles starting at a fixed readiness.
type FakeProvider struct {
	// InitialReady is the readiness of newly opened handles.
	InitialReady playback.ReadyState
	// Fail makes Open fail for the listed media targets.
	Fail map[string]bool

	Handles []*FakeHandle
}

// NewFakeProvider returns a provider whose handles start fully buffered.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{InitialReady: playback.HaveEnoughData}
}

// Open implements playback.Provider.
func (p *FakeProvider) Open(unit playback.Unit, notify func(playback.NativeEvent)) (playback.Handle, error) {
	if p.Fail[unit.Media.Target] {
		return nil, errors.New("open failed")
	}
	network := playback.NetworkLoading
	if p.InitialReady >= playback.HaveFutureData {
		network = playback.NetworkIdle
	}
	h := &FakeHandle{
		Unit:    unit,
		Current: unit.Range.Start,
		Ready:   p.InitialReady,
		Network: network,
		Volume:  1,
		Rate:    1,
		paused:  true,
		notify:  notify,
	}
	p.Handles = append(p.Handles, h)
	return h, nil
}

// Primary returns the newest open primary handle for Track index i.
func (p *FakeProvider) Primary(i int) *FakeHandle {
	for j := len(p.Handles) - 1; j >= 0; j-- {
		h := p.Handles[j]
		if h.Unit.Primary && h.Unit.Index == i && !h.Closed {
			return h
		}
	}
	return nil
}

// Live returns every handle that has not been closed.
func (p *FakeProvider) Live() []*FakeHandle {
	var out []*FakeHandle
	for _, h := range p.Handles {
		if !h.Closed {
			out = append(out, h)
		}
	}
	return out
}

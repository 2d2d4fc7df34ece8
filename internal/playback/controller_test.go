package playback_test

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"timedtext/internal/logging"
	"timedtext/internal/playback"
	"timedtext/internal/testsupport"
	"timedtext/internal/timeline"
)

func threeClipTrack() *timeline.Track {
	return timeline.NewTrack([]timeline.Item{
		&timeline.Clip{ClipID: "A", SourceRange: timeline.TimeRange{Start: 0, Duration: 10}, MediaReference: timeline.MediaReference{Target: "a.mp4"}},
		&timeline.Clip{ClipID: "B", SourceRange: timeline.TimeRange{Start: 100, Duration: 10}, MediaReference: timeline.MediaReference{Target: "b.mp4"}},
		&timeline.Clip{ClipID: "C", SourceRange: timeline.TimeRange{Start: 5, Duration: 10}, MediaReference: timeline.MediaReference{Target: "c.mp4"}},
	})
}

type harness struct {
	sched    *testsupport.ManualScheduler
	provider *testsupport.FakeProvider
	ctrl     *playback.Controller
	events   []playback.Event
}

func newHarness(t *testing.T, ready playback.ReadyState) *harness {
	t.Helper()
	h := &harness{
		sched:    &testsupport.ManualScheduler{},
		provider: testsupport.NewFakeProvider(),
	}
	h.provider.InitialReady = ready
	h.ctrl = playback.New(logging.NewNop(), h.sched, h.provider, playback.DefaultOptions())
	h.ctrl.Subscribe(func(ev playback.Event) { h.events = append(h.events, ev) })
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) types() []playback.EventType {
	out := make([]playback.EventType, len(h.events))
	for i, ev := range h.events {
		out[i] = ev.Type
	}
	return out
}

func (h *harness) has(typ playback.EventType) bool {
	return slices.Contains(h.types(), typ)
}

func (h *harness) reset() { h.events = nil }

func TestLoadOpensOneHandlePerItemAndReportsReadiness(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)

	if got := len(h.provider.Live()); got != 3 {
		t.Fatalf("handles: got %d want 3", got)
	}
	if h.ctrl.Duration() != 30 {
		t.Fatalf("duration: got %v want 30", h.ctrl.Duration())
	}
	for _, typ := range []playback.EventType{playback.EventDurationChange, playback.EventCanPlay, playback.EventCanPlayThrough} {
		if !h.has(typ) {
			t.Fatalf("missing %s in %v", typ, h.types())
		}
	}
	if h.ctrl.Buffering() {
		t.Fatal("expected not buffering")
	}
	if h.ctrl.ReadyState() != playback.HaveEnoughData {
		t.Fatalf("ready state: got %s", h.ctrl.ReadyState())
	}
}

func TestPlayRejectedUntilReady(t *testing.T) {
	h := newHarness(t, playback.HaveMetadata)
	h.ctrl.Load(threeClipTrack(), 0)

	if err := h.ctrl.Play(); !errors.Is(err, playback.ErrNotReady) {
		t.Fatalf("Play: got %v want ErrNotReady", err)
	}
	if h.ctrl.Playing() || h.has(playback.EventPlay) {
		t.Fatal("controller must not play while not ready")
	}
	if !h.ctrl.Buffering() {
		t.Fatal("expected buffering")
	}

	for _, fh := range h.provider.Live() {
		if h.has(playback.EventCanPlay) {
			t.Fatal("canplay before every handle is ready")
		}
		fh.SetReady(playback.HaveFutureData)
	}
	if !h.has(playback.EventCanPlay) {
		t.Fatal("expected canplay once every handle is ready")
	}
	if h.has(playback.EventCanPlayThrough) {
		t.Fatal("canplaythrough needs enough data")
	}
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !h.ctrl.Playing() {
		t.Fatal("expected playing")
	}
}

func TestHandleThatNeverOpensKeepsBuffering(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.provider.Fail = map[string]bool{"b.mp4": true}
	h.ctrl.Load(threeClipTrack(), 0)

	if h.has(playback.EventCanPlay) {
		t.Fatal("canplay with a missing handle")
	}
	if !h.ctrl.Buffering() {
		t.Fatal("expected buffering")
	}
	if h.ctrl.ReadyState() != playback.HaveNothing {
		t.Fatalf("ready state: got %s", h.ctrl.ReadyState())
	}
}

func TestAtMostOneHandlePlayingAcrossSeeks(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	tests := []struct {
		at     float64
		index  int
		native float64
	}{
		{at: 12, index: 1, native: 102},
		{at: 25, index: 2, native: 10},
		{at: 3, index: 0, native: 3},
		{at: 21, index: 2, native: 6},
		{at: 15, index: 1, native: 105},
	}
	for _, tc := range tests {
		h.ctrl.SetCurrentTime(tc.at)
		if got := h.ctrl.PlayingHandles(); got != 1 {
			t.Fatalf("seek %v: %d handles playing", tc.at, got)
		}
		idx, ok := h.ctrl.ActiveIndex()
		if !ok || idx != tc.index {
			t.Fatalf("seek %v: active %d want %d", tc.at, idx, tc.index)
		}
		fh := h.provider.Primary(tc.index)
		if fh.Paused() {
			t.Fatalf("seek %v: target handle paused", tc.at)
		}
		if fh.Current != tc.native {
			t.Fatalf("seek %v: native %v want %v", tc.at, fh.Current, tc.native)
		}
		if !h.ctrl.Playing() {
			t.Fatalf("seek %v: controller stopped playing", tc.at)
		}
	}
}

func TestSeekWhilePlayingPausesPreviousHandle(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	h.ctrl.SetCurrentTime(15)

	if !h.provider.Primary(0).Paused() {
		t.Fatal("previous handle still playing")
	}
	if h.provider.Primary(1).Paused() {
		t.Fatal("target handle not playing")
	}
	if h.ctrl.PlayingHandles() != 1 {
		t.Fatalf("playing handles: %d", h.ctrl.PlayingHandles())
	}
	if h.has(playback.EventPause) {
		t.Fatal("seek must not publish pause")
	}
}

func TestSeekWhilePausedDoesNotPlay(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	h.ctrl.SetCurrentTime(22)

	if h.ctrl.PlayingHandles() != 0 {
		t.Fatal("seek while paused started a handle")
	}
	if h.ctrl.CurrentTime() != 22 {
		t.Fatalf("current time: got %v", h.ctrl.CurrentTime())
	}
	if !h.has(playback.EventSeeking) || !h.has(playback.EventSeeked) {
		t.Fatalf("expected seeking and seeked, got %v", h.types())
	}
}

func TestSeekOutOfRangeIsNoop(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 5)
	h.reset()

	h.ctrl.SetCurrentTime(31)
	h.ctrl.SetCurrentTime(-1)

	if h.ctrl.CurrentTime() != 5 {
		t.Fatalf("current time: got %v want 5", h.ctrl.CurrentTime())
	}
	if len(h.events) != 0 {
		t.Fatalf("unexpected events %v", h.types())
	}
}

func TestProgressPublishesLogicalTimeAndHandsOff(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	h.provider.Primary(0).Progress(4.5)
	if h.ctrl.CurrentTime() != 4.5 {
		t.Fatalf("current time: got %v want 4.5", h.ctrl.CurrentTime())
	}

	h.provider.Primary(0).Progress(10)
	idx, _ := h.ctrl.ActiveIndex()
	if idx != 1 {
		t.Fatalf("active: got %d want 1", idx)
	}
	if h.ctrl.CurrentTime() != 10 {
		t.Fatalf("current time after handoff: got %v want 10", h.ctrl.CurrentTime())
	}
	if !h.provider.Primary(0).Paused() || h.provider.Primary(1).Paused() {
		t.Fatal("handoff did not switch playing handle")
	}
	if h.provider.Primary(1).Current != 100 {
		t.Fatalf("next handle native: got %v want 100", h.provider.Primary(1).Current)
	}

	h.provider.Primary(1).Progress(107)
	if h.ctrl.CurrentTime() != 17 {
		t.Fatalf("current time: got %v want 17", h.ctrl.CurrentTime())
	}
	if !h.ctrl.Playing() || h.has(playback.EventPause) {
		t.Fatal("handoff must keep playing without pause events")
	}
}

func TestProgressBeforeStartPausesHandle(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 12)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	h.provider.Primary(1).Progress(99)
	if !h.provider.Primary(1).Paused() {
		t.Fatal("handle before its start should be paused")
	}
	if h.ctrl.Playing() {
		t.Fatal("controller should stop")
	}
}

func TestLastHandleEndPublishesEnded(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 25)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	h.reset()

	h.provider.Primary(2).Progress(15)

	if h.ctrl.State() != playback.StateEnded {
		t.Fatalf("state: got %s want ended", h.ctrl.State())
	}
	got := h.types()
	i := slices.Index(got, playback.EventPause)
	if i < 0 || i+1 >= len(got) || got[i+1] != playback.EventEnded {
		t.Fatalf("expected pause then ended, got %v", got)
	}
	if h.ctrl.CurrentTime() != 30 {
		t.Fatalf("current time: got %v want 30", h.ctrl.CurrentTime())
	}

	// Loop-back guard: playing at the end restarts from zero.
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if h.ctrl.CurrentTime() != 0 {
		t.Fatalf("current time after restart: got %v want 0", h.ctrl.CurrentTime())
	}
	if idx, _ := h.ctrl.ActiveIndex(); idx != 0 || h.provider.Primary(0).Paused() {
		t.Fatal("restart should play the first handle")
	}
}

func TestLoopBackGuardNearEnd(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 29.7)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if h.ctrl.CurrentTime() != 0 {
		t.Fatalf("current time: got %v want 0", h.ctrl.CurrentTime())
	}
}

func TestTimeUpdatesIgnoredWhileSeeking(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	h.provider.Primary(1).SetSeeking(true)
	h.provider.Primary(0).Progress(5)
	if h.ctrl.CurrentTime() != 0 {
		t.Fatalf("update applied while seeking: %v", h.ctrl.CurrentTime())
	}

	h.provider.Primary(1).SetSeeking(false)
	h.provider.Primary(0).Progress(5)
	if h.ctrl.CurrentTime() != 5 {
		t.Fatalf("current time: got %v want 5", h.ctrl.CurrentTime())
	}
}

func TestRoguePlayIsPaused(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := h.provider.Primary(2).Play(); err != nil {
		t.Fatalf("rogue play: %v", err)
	}
	if !h.provider.Primary(2).Paused() {
		t.Fatal("non-active handle left playing")
	}
	if h.ctrl.PlayingHandles() != 1 {
		t.Fatalf("playing handles: %d", h.ctrl.PlayingHandles())
	}
}

func TestExternalPausePublishesPause(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	h.reset()
	h.provider.Primary(0).ExternalPause()
	if h.ctrl.Playing() || !h.has(playback.EventPause) {
		t.Fatalf("expected pause, got %v", h.types())
	}
	if h.sched.Pending() != 0 {
		t.Fatal("tick still scheduled after pause")
	}
}

func TestPauseOnLastSegmentPublishesEnded(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 3)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	h.reset()
	h.ctrl.Pause()
	if h.has(playback.EventEnded) {
		t.Fatalf("pause on the first segment ended playback: %v", h.types())
	}

	h.ctrl.SetCurrentTime(25)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	h.reset()
	h.ctrl.Pause()
	got := h.types()
	i := slices.Index(got, playback.EventPause)
	if i < 0 || i+1 >= len(got) || got[i+1] != playback.EventEnded {
		t.Fatalf("expected pause then ended, got %v", got)
	}
	if h.ctrl.State() != playback.StatePaused || h.ctrl.CurrentTime() != 25 {
		t.Fatalf("state after pause: %s at %v", h.ctrl.State(), h.ctrl.CurrentTime())
	}
}

func TestTickRunsWhilePlayingAndStopsOnPause(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if h.sched.Pending() != 1 {
		t.Fatalf("pending tasks: got %d want 1", h.sched.Pending())
	}

	h.provider.Primary(0).Current = 2
	h.reset()
	h.sched.Advance(70 * time.Millisecond)
	if h.ctrl.CurrentTime() != 2 {
		t.Fatalf("tick did not sample native time: %v", h.ctrl.CurrentTime())
	}
	if !h.has(playback.EventPlayhead) {
		t.Fatal("tick should publish the playhead")
	}
	if h.sched.Pending() != 1 {
		t.Fatalf("tick not rescheduled: %d", h.sched.Pending())
	}

	h.ctrl.Pause()
	if h.sched.Pending() != 0 {
		t.Fatalf("tick survived pause: %d", h.sched.Pending())
	}
	h.ctrl.Play()
	h.ctrl.SetCurrentTime(14)
	if h.sched.Pending() != 1 {
		t.Fatalf("pending after seek: got %d want 1", h.sched.Pending())
	}
}

func TestDeepLinkWindow(t *testing.T) {
	h := newHarness(t, playback.HaveMetadata)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.SetWindow(12, 14); err != nil {
		t.Fatalf("SetWindow: %v", err)
	}
	if h.ctrl.Playing() {
		t.Fatal("window applied before ready")
	}

	for _, fh := range h.provider.Live() {
		fh.SetReady(playback.HaveEnoughData)
	}
	if !h.ctrl.Playing() || h.ctrl.CurrentTime() != 12 {
		t.Fatalf("expected playing at 12, got playing=%v at %v", h.ctrl.Playing(), h.ctrl.CurrentTime())
	}

	h.provider.Primary(1).Progress(103)
	if h.ctrl.CurrentTime() != 13 || !h.ctrl.Playing() {
		t.Fatalf("inside window: playing=%v at %v", h.ctrl.Playing(), h.ctrl.CurrentTime())
	}
	h.provider.Primary(1).Progress(104.2)
	if h.ctrl.Playing() {
		t.Fatal("playback should stop at the window end")
	}
	if h.ctrl.CurrentTime() != 14 {
		t.Fatalf("clamped time: got %v want 14", h.ctrl.CurrentTime())
	}
}

func TestSetCurrentTimeCancelsWindow(t *testing.T) {
	h := newHarness(t, playback.HaveMetadata)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.SetWindow(12, 14); err != nil {
		t.Fatalf("SetWindow: %v", err)
	}
	h.ctrl.SetCurrentTime(3)
	for _, fh := range h.provider.Live() {
		fh.SetReady(playback.HaveEnoughData)
	}
	if h.ctrl.Playing() || h.ctrl.CurrentTime() != 3 {
		t.Fatalf("cancelled window still applied: playing=%v at %v", h.ctrl.Playing(), h.ctrl.CurrentTime())
	}
	if err := h.ctrl.SetWindow(5, 5); err == nil {
		t.Fatal("expected empty window to be rejected")
	}
}

func TestLoadDetachesPreviousHandles(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if err := h.ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	old := slices.Clone(h.provider.Live())

	h.ctrl.Load(threeClipTrack(), 4)

	for _, fh := range old {
		if !fh.Closed {
			t.Fatal("previous handle not closed")
		}
	}
	if h.ctrl.State() != playback.StateIdle || h.ctrl.CurrentTime() != 4 {
		t.Fatalf("state after reload: %s at %v", h.ctrl.State(), h.ctrl.CurrentTime())
	}
	if h.sched.Pending() != 0 {
		t.Fatal("tick survived reload")
	}
}

func TestSettingsFanOut(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	h.ctrl.SetMuted(true)
	h.ctrl.SetVolume(2)
	h.ctrl.SetPlaybackRate(1.5)
	h.ctrl.SetPlaybackRate(-1)
	h.ctrl.SetLoop(true)

	for _, fh := range h.provider.Live() {
		if !fh.Muted || fh.Volume != 1 || fh.Rate != 1.5 || !fh.Looping {
			t.Fatalf("handle settings: %+v", fh)
		}
	}
	if h.ctrl.Volume() != 1 || h.ctrl.PlaybackRate() != 1.5 {
		t.Fatalf("controller settings: volume %v rate %v", h.ctrl.Volume(), h.ctrl.PlaybackRate())
	}
	if !h.has(playback.EventVolumeChange) || !h.has(playback.EventRateChange) {
		t.Fatalf("missing change events: %v", h.types())
	}
}

func TestPreviewPublishesPseudoPlayhead(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	h.reset()

	h.ctrl.Preview(15)

	if len(h.events) != 1 || h.events[0].Type != playback.EventPlayhead {
		t.Fatalf("events: %v", h.types())
	}
	ph := h.events[0].Playhead
	if !ph.Pseudo || ph.SegmentIndex != 1 || ph.Segment.ID() != "B" {
		t.Fatalf("playhead: %+v", ph)
	}
	if h.ctrl.CurrentTime() != 0 {
		t.Fatal("preview moved the playhead")
	}
}

func TestSeekToTokenNudgesSegmentStart(t *testing.T) {
	h := newHarness(t, playback.HaveEnoughData)
	h.ctrl.Load(threeClipTrack(), 0)
	if !h.ctrl.SeekToToken(1, 100) {
		t.Fatal("SeekToToken failed")
	}
	if got := h.ctrl.CurrentTime(); math.Abs(got-10.02) > 1e-9 {
		t.Fatalf("current time: got %v want 10.02", got)
	}
}

func TestSimulatedPlaythrough(t *testing.T) {
	sched := &testsupport.ManualScheduler{}
	provider := playback.NewSimProvider(sched, playback.DefaultSimOptions())
	ctrl := playback.New(logging.NewNop(), sched, provider, playback.DefaultOptions())
	defer ctrl.Close()

	var ended bool
	maxPlaying := 0
	ctrl.Subscribe(func(ev playback.Event) {
		if ev.Type == playback.EventEnded {
			ended = true
		}
		maxPlaying = max(maxPlaying, ctrl.PlayingHandles())
	})

	ctrl.Load(threeClipTrack(), 0)
	if err := ctrl.Play(); !errors.Is(err, playback.ErrNotReady) {
		t.Fatalf("Play before buffering: got %v", err)
	}
	sched.Advance(250 * time.Millisecond)
	if err := ctrl.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	sched.Advance(40 * time.Second)

	if !ended {
		t.Fatalf("playback did not end; state %s at %v", ctrl.State(), ctrl.CurrentTime())
	}
	if maxPlaying > 1 {
		t.Fatalf("%d handles played at once", maxPlaying)
	}
	if ctrl.State() != playback.StateEnded {
		t.Fatalf("state: %s", ctrl.State())
	}
}

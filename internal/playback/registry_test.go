package playback

import (
	"testing"

	"timedtext/internal/timeline"
)

type stubHandle struct {
	ready   ReadyState
	network NetworkState
	paused  bool
	seeking bool
}

func (h *stubHandle) Play() error                { h.paused = false; return nil }
func (h *stubHandle) Pause()                     { h.paused = true }
func (h *stubHandle) Load()                      {}
func (h *stubHandle) SetCurrentTime(float64)     {}
func (h *stubHandle) CurrentTime() float64       { return 0 }
func (h *stubHandle) Paused() bool               { return h.paused }
func (h *stubHandle) Seeking() bool              { return h.seeking }
func (h *stubHandle) ReadyState() ReadyState     { return h.ready }
func (h *stubHandle) NetworkState() NetworkState { return h.network }
func (h *stubHandle) SetMuted(bool)              {}
func (h *stubHandle) SetVolume(float64)          {}
func (h *stubHandle) SetPlaybackRate(float64)    {}
func (h *stubHandle) SetLoop(bool)               {}
func (h *stubHandle) Close() error               { return nil }

func TestRegistryReducers(t *testing.T) {
	tests := []struct {
		name       string
		handles    []Handle
		ready      ReadyState
		network    NetworkState
		canPlay    bool
		through    bool
		playing    int
		anySeeking bool
	}{
		{
			name:    "all buffered",
			handles: []Handle{&stubHandle{ready: HaveEnoughData, network: NetworkIdle, paused: true}, &stubHandle{ready: HaveEnoughData, network: NetworkIdle}},
			ready:   HaveEnoughData,
			network: NetworkIdle,
			canPlay: true,
			through: true,
			playing: 1,
		},
		{
			name:    "lowest readiness wins",
			handles: []Handle{&stubHandle{ready: HaveEnoughData, network: NetworkIdle, paused: true}, &stubHandle{ready: HaveFutureData, network: NetworkIdle, paused: true}},
			ready:   HaveFutureData,
			network: NetworkIdle,
			canPlay: true,
		},
		{
			name:       "loading dominates",
			handles:    []Handle{&stubHandle{ready: HaveMetadata, network: NetworkLoading, paused: true}, &stubHandle{ready: HaveEnoughData, network: NetworkNoSource, paused: true, seeking: true}},
			ready:      HaveMetadata,
			network:    NetworkLoading,
			anySeeking: true,
		},
		{
			name:    "missing handle",
			handles: []Handle{&stubHandle{ready: HaveEnoughData, network: NetworkIdle, paused: true}, nil},
			ready:   HaveNothing,
			network: NetworkNoSource,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &registry{}
			for _, h := range tc.handles {
				b := &binding{}
				if h != nil {
					b.handle = h
				}
				r.all = append(r.all, b)
			}
			if got := r.readyState(); got != tc.ready {
				t.Fatalf("readyState: got %s want %s", got, tc.ready)
			}
			if got := r.networkState(); got != tc.network {
				t.Fatalf("networkState: got %d want %d", got, tc.network)
			}
			if got := r.canPlay(); got != tc.canPlay {
				t.Fatalf("canPlay: got %v want %v", got, tc.canPlay)
			}
			if got := r.canPlayThrough(); got != tc.through {
				t.Fatalf("canPlayThrough: got %v want %v", got, tc.through)
			}
			if got := r.playingCount(); got != tc.playing {
				t.Fatalf("playingCount: got %d want %d", got, tc.playing)
			}
			if got := r.anySeeking(); got != tc.anySeeking {
				t.Fatalf("anySeeking: got %v want %v", got, tc.anySeeking)
			}
		})
	}
}

func TestRegistryEmpty(t *testing.T) {
	r := &registry{}
	if r.readyState() != HaveNothing || r.networkState() != NetworkEmpty || r.canPlay() {
		t.Fatal("empty registry should report nothing")
	}
}

func TestBindingPauseMarksExpectedPause(t *testing.T) {
	h := &stubHandle{}
	b := &binding{handle: h}
	b.pause()
	if !h.paused || !b.expectPause {
		t.Fatal("pause should pause the handle and expect the native event")
	}
	b.expectPause = false
	b.pause()
	if b.expectPause {
		t.Fatal("pausing a paused handle must not expect an event")
	}
}

func TestBuildUnitsAddsNestedResources(t *testing.T) {
	seg := &timeline.Clip{
		ClipID:         "s",
		SourceRange:    timeline.TimeRange{Start: 10, Duration: 10},
		MediaReference: timeline.MediaReference{Target: "main.mp4"},
		Children: []timeline.Item{
			&timeline.Clip{ClipID: "c1", SourceRange: timeline.TimeRange{Start: 10, Duration: 4}, MediaReference: timeline.MediaReference{Target: "main.mp4"}},
			&timeline.Clip{ClipID: "c2", SourceRange: timeline.TimeRange{Start: 14, Duration: 3}, MediaReference: timeline.MediaReference{Target: "broll.mp4"}},
			&timeline.Clip{ClipID: "c3", SourceRange: timeline.TimeRange{Start: 17, Duration: 3}, MediaReference: timeline.MediaReference{Target: "broll.mp4"}},
		},
	}
	track := timeline.NewTrack([]timeline.Item{
		&timeline.Clip{ClipID: "a", SourceRange: timeline.TimeRange{Start: 0, Duration: 5}, MediaReference: timeline.MediaReference{Target: "a.mp4"}},
		seg,
	})

	groups := buildUnits(track)
	if len(groups) != 2 {
		t.Fatalf("groups: got %d want 2", len(groups))
	}
	if len(groups[0]) != 1 || !groups[0][0].Primary {
		t.Fatalf("first group: %+v", groups[0])
	}
	if len(groups[1]) != 2 {
		t.Fatalf("second group: got %d units want 2", len(groups[1]))
	}
	nested := groups[1][1]
	if nested.Primary || nested.Media.Target != "broll.mp4" {
		t.Fatalf("nested unit: %+v", nested)
	}
	if nested.Offset != 9 {
		t.Fatalf("nested offset: got %v want 9", nested.Offset)
	}
}

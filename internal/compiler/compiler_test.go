package compiler

import (
	"context"
	"math"
	"strings"
	"testing"

	"timedtext/internal/captions"
	"timedtext/internal/captionstore"
	"timedtext/internal/descriptor"
	"timedtext/internal/logging"
	"timedtext/internal/testsupport"
	"timedtext/internal/timeline"
)

func newCompiler(t *testing.T) (*Compiler, *captionstore.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t)
	return New(logging.NewNop(), store, Options{Captions: captions.DefaultOptions()}), store
}

func TestCompileContiguousSegments(t *testing.T) {
	c, _ := newCompiler(t)
	segs := []descriptor.Segment{
		testsupport.Segment("A", "video.mp4", 0, 10),
		testsupport.Segment("B", "video.mp4", 10, 16),
	}

	track, duration := c.Compile(context.Background(), segs)

	if duration != 16 || track.Duration != 16 {
		t.Fatalf("duration: got %v / %v want 16", duration, track.Duration)
	}
	if len(track.Items) != 2 {
		t.Fatalf("items: got %d want 2", len(track.Items))
	}
	for _, it := range track.Items {
		if it.Kind() == timeline.KindGap {
			t.Fatalf("unexpected gap %+v", it)
		}
	}

	pos, ok := track.ClipAt(12)
	if !ok {
		t.Fatal("ClipAt(12) found nothing")
	}
	if pos.Segment.ID() != "B" {
		t.Fatalf("segment: got %q want B", pos.Segment.ID())
	}
	if pos.Native != 12 {
		t.Fatalf("native: got %v want 12", pos.Native)
	}
}

func TestCompileSynthesizesSegmentGap(t *testing.T) {
	c, _ := newCompiler(t)
	segs := []descriptor.Segment{
		testsupport.Segment("A", "video.mp4", 0, 10),
		testsupport.Segment("B", "video.mp4", 12, 18),
	}

	track, duration := c.Compile(context.Background(), segs)

	if duration != 18 {
		t.Fatalf("duration: got %v want 18", duration)
	}
	if len(track.Items) != 3 {
		t.Fatalf("items: got %d want 3", len(track.Items))
	}
	gap, ok := track.Items[1].(*timeline.Gap)
	if !ok {
		t.Fatalf("item 1: got %T want *timeline.Gap", track.Items[1])
	}
	if gap.SourceRange.Start != 10 || gap.SourceRange.Duration != 2 {
		t.Fatalf("gap range: got %+v", gap.SourceRange)
	}
	if track.Offsets[2] != 12 {
		t.Fatalf("offset of B: got %v want 12", track.Offsets[2])
	}
}

func TestCompileNoGapAcrossDifferentMedia(t *testing.T) {
	c, _ := newCompiler(t)
	segs := []descriptor.Segment{
		testsupport.Segment("A", "one.mp4", 0, 10),
		testsupport.Segment("B", "two.mp4", 30, 35),
	}
	track, duration := c.Compile(context.Background(), segs)
	if len(track.Items) != 2 || duration != 15 {
		t.Fatalf("got %d items duration %v, want 2 items duration 15", len(track.Items), duration)
	}
}

func TestCompileChildGaps(t *testing.T) {
	c, _ := newCompiler(t)
	seg := testsupport.Segment("A", "video.mp4", 0, 10,
		testsupport.Child("a1", 0, 4, "first words here"),
		testsupport.Child("a2", 6, 10, "second words here"),
		testsupport.Child("a3", 10, 10, ""),
	)

	track, _ := c.Compile(context.Background(), []descriptor.Segment{seg})

	clip := track.Items[0].(*timeline.Clip)
	kinds := make([]timeline.Kind, len(clip.Children))
	for i, child := range clip.Children {
		kinds[i] = child.Kind()
	}
	want := []timeline.Kind{timeline.KindClip, timeline.KindGap, timeline.KindClip, timeline.KindClip}
	if len(kinds) != len(want) {
		t.Fatalf("children: got %v want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("children: got %v want %v", kinds, want)
		}
	}
	gap := clip.Children[1].Range()
	if gap.Start != 4 || gap.Duration != 2 {
		t.Fatalf("gap: got %+v want start 4 duration 2", gap)
	}
	if len(clip.TimedTexts) != 6 {
		t.Fatalf("tokens: got %d want 6", len(clip.TimedTexts))
	}
	if len(clip.Cues) != 2 {
		t.Fatalf("cues: got %d want 2", len(clip.Cues))
	}
}

func TestCompileIgnoresRoundOffBetweenPairRanges(t *testing.T) {
	c, _ := newCompiler(t)
	seg := descriptor.Segment{
		ID:    "A",
		Media: "other.mp4",
		Range: descriptor.Pair(0.2, 1.6),
		Children: []descriptor.Child{
			{ID: "a1", Range: descriptor.Pair(0.2, 0.9)},
			{ID: "a2", Range: descriptor.Pair(0.9, 1.5)},
			{ID: "a3", Range: descriptor.Pair(1.55, 1.6)},
		},
	}
	segs := []descriptor.Segment{
		{ID: "S1", Media: "video.mp4", Range: descriptor.Pair(0.2, 0.9)},
		{ID: "S2", Media: "video.mp4", Range: descriptor.Pair(0.9, 1.5)},
		seg,
	}

	track, _ := c.Compile(context.Background(), segs)

	kinds := make([]timeline.Kind, len(track.Items))
	for i, it := range track.Items {
		kinds[i] = it.Kind()
	}
	if len(kinds) != 3 || kinds[1] != timeline.KindClip {
		t.Fatalf("top-level items: got %v want three clips", kinds)
	}

	clip := track.Items[2].(*timeline.Clip)
	children := make([]timeline.Kind, len(clip.Children))
	for i, child := range clip.Children {
		children[i] = child.Kind()
	}
	want := []timeline.Kind{timeline.KindClip, timeline.KindClip, timeline.KindGap, timeline.KindClip}
	if len(children) != len(want) {
		t.Fatalf("children: got %v want %v", children, want)
	}
	for i := range want {
		if children[i] != want[i] {
			t.Fatalf("children: got %v want %v", children, want)
		}
	}
	if gap := clip.Children[2].Range(); math.Abs(gap.Start-1.5) > 1e-9 || math.Abs(gap.Duration-0.05) > 1e-9 {
		t.Fatalf("gap: got %+v want start 1.5 duration 0.05", gap)
	}
}

func TestCompileZeroChildSegmentKeepsDuration(t *testing.T) {
	c, _ := newCompiler(t)
	segs := []descriptor.Segment{
		testsupport.Segment("A", "a.mp4", 0, 5),
		{ID: "B", Media: "b.mp4", Range: descriptor.Millis(1000, 2500)},
	}
	track, duration := c.Compile(context.Background(), segs)
	if duration != 7.5 {
		t.Fatalf("duration: got %v want 7.5", duration)
	}
	clip := track.Items[1].(*timeline.Clip)
	if len(clip.Children) != 0 || len(clip.Cues) != 0 {
		t.Fatalf("expected empty segment, got %d children %d cues", len(clip.Children), len(clip.Cues))
	}
}

func TestCompileRecoversMalformedTiming(t *testing.T) {
	c, _ := newCompiler(t)
	child := descriptor.Child{
		ID:   "c",
		Text: "one two three",
		Tokens: []descriptor.Token{
			{Text: "one", Range: descriptor.Seconds(1, 0.5)},
			{Text: "two", Range: descriptor.Range{T: "garbage"}},
			{Text: "three", Range: descriptor.Seconds(2, 0.5)},
		},
	}
	seg := descriptor.Segment{ID: "S", Media: "m.mp4", Children: []descriptor.Child{child}}

	track, duration := c.Compile(context.Background(), []descriptor.Segment{seg})

	clip := track.Items[0].(*timeline.Clip)
	if len(clip.TimedTexts) != 3 {
		t.Fatalf("tokens: got %d want 3", len(clip.TimedTexts))
	}
	bad := clip.TimedTexts[1].MarkedRange
	if bad.Start != 1.5 || bad.Duration != 0 {
		t.Fatalf("recovered token: got %+v want start 1.5 duration 0", bad)
	}
	// Child and segment timing come from the token span.
	if clip.SourceRange.Start != 1 || duration != 1.5 {
		t.Fatalf("segment range: got %+v duration %v", clip.SourceRange, duration)
	}
}

func TestCompileDeterministic(t *testing.T) {
	segs := []descriptor.Segment{
		testsupport.Segment("A", "video.mp4", 0, 10,
			testsupport.Child("a1", 0, 5, "Some words. And then a few more words that keep going along"),
			testsupport.Child("a2", 7, 10, testsupport.Words(30, 5)),
		),
		testsupport.Segment("B", "video.mp4", 12, 18),
		testsupport.Segment("C", "other.mp4", 3, 4),
	}

	c, _ := newCompiler(t)
	first, _ := c.Compile(context.Background(), segs)
	second, _ := c.Compile(context.Background(), segs)

	if first.Duration != second.Duration || len(first.Items) != len(second.Items) {
		t.Fatalf("shape differs: %v/%d vs %v/%d", first.Duration, len(first.Items), second.Duration, len(second.Items))
	}
	for i := range first.Offsets {
		if first.Offsets[i] != second.Offsets[i] {
			t.Fatalf("offset %d differs", i)
		}
	}
	a, b := first.Segments(), second.Segments()
	for i := range a {
		if len(a[i].Cues) != len(b[i].Cues) {
			t.Fatalf("segment %d cue count differs", i)
		}
		for j := range a[i].Cues {
			if a[i].Cues[j].Text != b[i].Cues[j].Text || a[i].Cues[j].Start != b[i].Cues[j].Start {
				t.Fatalf("segment %d cue %d differs", i, j)
			}
		}
	}
}

func TestCompileDurationIsSumOfItems(t *testing.T) {
	c, _ := newCompiler(t)
	segs := []descriptor.Segment{
		testsupport.Segment("A", "v", 0.1, 3.3),
		testsupport.Segment("B", "v", 4.7, 9.2),
		testsupport.Segment("C", "w", 0, 0.25),
		testsupport.Segment("D", "w", 0.5, 2),
	}
	track, duration := c.Compile(context.Background(), segs)
	var sum float64
	for _, it := range track.Items {
		sum += it.Range().Duration
	}
	if sum != duration {
		t.Fatalf("sum %v != duration %v", sum, duration)
	}
	if got := timeline.SumDurations(track.Items); math.Abs(got-duration) > 1e-9 {
		t.Fatalf("SumDurations %v != duration %v", got, duration)
	}
}

func TestCompileStoresAndReleasesCaptions(t *testing.T) {
	ctx := context.Background()
	c, store := newCompiler(t)
	segs := []descriptor.Segment{
		testsupport.Segment("A", "video.mp4", 0, 4, testsupport.Child("a1", 0, 4, "hello there world")),
	}

	first, _ := c.Compile(ctx, segs)
	payload := first.Segments()[0].Metadata.Captions
	if payload == nil {
		t.Fatal("expected caption payload")
	}
	if payload.Cues != 1 || payload.Language != "en" {
		t.Fatalf("payload: %+v", payload)
	}
	art, err := store.Get(ctx, payload.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	cues, err := captions.ParseVTT(strings.NewReader(art.Body))
	if err != nil || len(cues) != 1 {
		t.Fatalf("ParseVTT: %v cues=%d", err, len(cues))
	}

	second, _ := c.Compile(ctx, segs)
	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != second.Segments()[0].Metadata.Captions.ID {
		t.Fatalf("expected only the newest artifact to remain, got %d", len(list))
	}

	c.Release(ctx)
	list, _ = store.List(ctx)
	if len(list) != 0 {
		t.Fatalf("expected all artifacts released, got %d", len(list))
	}
}

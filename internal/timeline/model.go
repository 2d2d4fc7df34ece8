package timeline

import (
	"github.com/samber/lo"
)

// Epsilon is the tolerance for comparing times derived from different
// notations. Boundaries closer than this are treated as equal.
const Epsilon = 1e-6

// TimeRange is a start/duration pair in seconds.
type TimeRange struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns Start + Duration.
func (r TimeRange) End() float64 {
	return r.Start + r.Duration
}

// Contains reports whether t lies in [Start, End).
func (r TimeRange) Contains(t float64) bool {
	return r.Start <= t && t < r.End()
}

// MediaReference points at the resource backing a clip.
type MediaReference struct {
	Target string `json:"target"`
}

// TimedText is the smallest timed unit of a transcript, usually one word.
//
// Everything after MarkedRange is derived metadata written by the caption
// grouping pass; it must not be changed once the Track is published.
type TimedText struct {
	Text        string    `json:"text"`
	MarkedRange TimeRange `json:"marked_range"`

	Offset          int    `json:"offset"`
	Length          int    `json:"length"`
	StartOfSentence bool   `json:"start_of_sentence,omitempty"`
	EndOfSentence   bool   `json:"end_of_sentence,omitempty"`
	Punctuation     bool   `json:"punctuation,omitempty"`
	CaptionGroup    string `json:"caption_group,omitempty"`

	// Break markers. Pilcrow is the chosen break; the numbered variants record
	// which rule produced or considered it.
	Pilcrow  bool `json:"pilcrow,omitempty"`
	Pilcrow0 bool `json:"pilcrow0,omitempty"`
	Pilcrow2 bool `json:"pilcrow2,omitempty"`
	Pilcrow3 bool `json:"pilcrow3,omitempty"`
	Glue     bool `json:"glue,omitempty"`
}

// End returns the end of the token's marked range.
func (t *TimedText) End() float64 {
	return t.MarkedRange.End()
}

// Effect is a timed overlay declared by a clip. SourceRange is expressed on
// the native axis of the clip that owns it.
type Effect struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	SourceRange TimeRange      `json:"source_range"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// CaptionPayload references a compiled WebVTT artifact.
type CaptionPayload struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Cues     int    `json:"cues"`
}

// Metadata carries opaque descriptor data plus the compiled caption payload.
type Metadata struct {
	Data     map[string]any  `json:"data,omitempty"`
	Captions *CaptionPayload `json:"captions,omitempty"`
}

// Cue is one caption display unit.
type Cue struct {
	Start  float64      `json:"start"`
	End    float64      `json:"end"`
	Text   string       `json:"text"`
	Tokens []*TimedText `json:"-"`
}

// Kind discriminates the Item variants.
type Kind int

const (
	KindClip Kind = iota
	KindGap
)

func (k Kind) String() string {
	if k == KindGap {
		return "gap"
	}
	return "clip"
}

// Item is either a *Clip or a *Gap.
type Item interface {
	ID() string
	Kind() Kind
	Range() TimeRange
	Media() MediaReference
	item()
}

// Clip is a contiguous playable unit. A top-level clip (a segment) owns child
// clips and gaps, its effects and its compiled cues.
type Clip struct {
	ClipID         string         `json:"id"`
	Name           string         `json:"name,omitempty"`
	SourceRange    TimeRange      `json:"source_range"`
	MediaReference MediaReference `json:"media_reference"`
	Metadata       Metadata       `json:"metadata"`
	Children       []Item         `json:"-"`
	TimedTexts     []*TimedText   `json:"-"`
	Effects        []Effect       `json:"effects,omitempty"`
	Cues           []Cue          `json:"-"`
}

func (c *Clip) ID() string            { return c.ClipID }
func (c *Clip) Kind() Kind            { return KindClip }
func (c *Clip) Range() TimeRange      { return c.SourceRange }
func (c *Clip) Media() MediaReference { return c.MediaReference }
func (c *Clip) item()                 {}

// Gap fills a native interval between two items that are not adjacent.
type Gap struct {
	GapID          string         `json:"id"`
	SourceRange    TimeRange      `json:"source_range"`
	MediaReference MediaReference `json:"media_reference"`
}

func (g *Gap) ID() string            { return g.GapID }
func (g *Gap) Kind() Kind            { return KindGap }
func (g *Gap) Range() TimeRange      { return g.SourceRange }
func (g *Gap) Media() MediaReference { return g.MediaReference }
func (g *Gap) item()                 {}

// Track is a compiled timeline.
type Track struct {
	Items    []Item
	Offsets  []float64
	Duration float64
}

// NewTrack lays the items end to end and computes their virtual offsets.
func NewTrack(items []Item) *Track {
	offsets := make([]float64, len(items))
	var running float64
	for i, it := range items {
		offsets[i] = running
		running += it.Range().Duration
	}
	return &Track{Items: items, Offsets: offsets, Duration: running}
}

// Len returns the number of top-level items.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Items)
}

// Segments returns the top-level clips, skipping gaps.
func (t *Track) Segments() []*Clip {
	if t == nil {
		return nil
	}
	return lo.FilterMap(t.Items, func(it Item, _ int) (*Clip, bool) {
		c, ok := it.(*Clip)
		return c, ok
	})
}

// Payloads lists the caption payloads attached to top-level clips.
func (t *Track) Payloads() []*CaptionPayload {
	return lo.FilterMap(t.Segments(), func(c *Clip, _ int) (*CaptionPayload, bool) {
		return c.Metadata.Captions, c.Metadata.Captions != nil
	})
}

// Window returns the virtual window [offset, offset+duration) of item i.
func (t *Track) Window(i int) (TimeRange, bool) {
	if t == nil || i < 0 || i >= len(t.Items) {
		return TimeRange{}, false
	}
	return TimeRange{Start: t.Offsets[i], Duration: t.Items[i].Range().Duration}, true
}

// SumDurations adds the durations of the given items.
func SumDurations(items []Item) float64 {
	return lo.SumBy(items, func(it Item) float64 { return it.Range().Duration })
}

package descriptor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"timedtext/internal/timeline"
)

// ErrMalformed marks timing that is missing or cannot be parsed.
var ErrMalformed = errors.New("malformed descriptor")

// Range carries timing in any of the notations found in transcript markup:
// a "start,end" pair (T), explicit seconds, or milliseconds.
type Range struct {
	T          string   `json:"t,omitempty" yaml:"t,omitempty"`
	Start      *float64 `json:"start,omitempty" yaml:"start,omitempty"`
	Duration   *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	StartMs    *int64   `json:"start_ms,omitempty" yaml:"start_ms,omitempty"`
	DurationMs *int64   `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
}

// Empty reports whether no timing notation is present.
func (r Range) Empty() bool {
	return strings.TrimSpace(r.T) == "" && r.Start == nil && r.Duration == nil && r.StartMs == nil && r.DurationMs == nil
}

// Resolve converts the range to seconds. Seconds take precedence over the
// "start,end" pair, which takes precedence over milliseconds.
func (r Range) Resolve() (timeline.TimeRange, error) {
	switch {
	case r.Start != nil:
		var dur float64
		if r.Duration != nil {
			dur = *r.Duration
		}
		return checked(*r.Start, dur)
	case strings.TrimSpace(r.T) != "":
		return parsePair(r.T)
	case r.StartMs != nil:
		var dur int64
		if r.DurationMs != nil {
			dur = *r.DurationMs
		}
		return checked(float64(*r.StartMs)/1e3, float64(dur)/1e3)
	default:
		return timeline.TimeRange{}, fmt.Errorf("%w: no timing", ErrMalformed)
	}
}

func parsePair(value string) (timeline.TimeRange, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return timeline.TimeRange{}, fmt.Errorf("%w: range %q is not start,end", ErrMalformed, value)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return timeline.TimeRange{}, fmt.Errorf("%w: range start %q", ErrMalformed, parts[0])
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return timeline.TimeRange{}, fmt.Errorf("%w: range end %q", ErrMalformed, parts[1])
	}
	return checked(start, end-start)
}

func checked(start, dur float64) (timeline.TimeRange, error) {
	if math.IsNaN(start) || math.IsInf(start, 0) || math.IsNaN(dur) || math.IsInf(dur, 0) {
		return timeline.TimeRange{}, fmt.Errorf("%w: non-finite timing", ErrMalformed)
	}
	if start < 0 || dur < 0 {
		return timeline.TimeRange{}, fmt.Errorf("%w: negative timing start=%g duration=%g", ErrMalformed, start, dur)
	}
	return timeline.TimeRange{Start: start, Duration: dur}, nil
}

// Seconds builds a Range from explicit seconds.
func Seconds(start, duration float64) Range {
	return Range{Start: &start, Duration: &duration}
}

// Millis builds a Range from millisecond start and duration.
func Millis(start, duration int64) Range {
	return Range{StartMs: &start, DurationMs: &duration}
}

// Pair builds a Range from a "start,end" pair.
func Pair(start, end float64) Range {
	return Range{T: strconv.FormatFloat(start, 'f', -1, 64) + "," + strconv.FormatFloat(end, 'f', -1, 64)}
}

// Token is one timed word or phrase.
type Token struct {
	Text string `json:"text" yaml:"text"`
	Range `yaml:",inline"`
}

// Child is a paragraph-level unit inside a segment.
type Child struct {
	ID     string  `json:"id,omitempty" yaml:"id,omitempty"`
	Media  string  `json:"media,omitempty" yaml:"media,omitempty"`
	Text   string  `json:"text,omitempty" yaml:"text,omitempty"`
	Tokens []Token `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Range  `yaml:",inline"`
}

// Effect is a timed overlay attached to a segment.
type Effect struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string         `json:"name" yaml:"name"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Range      `yaml:",inline"`
}

// Segment describes one independently addressable resource and its
// transcript structure.
type Segment struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Media    string         `json:"media" yaml:"media"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Children []Child        `json:"children,omitempty" yaml:"children,omitempty"`
	Effects  []Effect       `json:"effects,omitempty" yaml:"effects,omitempty"`
	Range    `yaml:",inline"`
}

// Document is the on-disk form of a transcript: an ordered list of segments
// plus optional defaults.
type Document struct {
	Title    string    `json:"title,omitempty" yaml:"title,omitempty"`
	Language string    `json:"language,omitempty" yaml:"language,omitempty"`
	Segments []Segment `json:"segments" yaml:"segments"`
}

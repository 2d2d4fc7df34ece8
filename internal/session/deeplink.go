package session

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidDeepLink reports a deep link that is not a "start,end" pair.
var ErrInvalidDeepLink = errors.New("invalid deep link")

// DeepLink is a playback window addressed from outside the player. End is
// +Inf when the link names only a start.
type DeepLink struct {
	Start float64
	End   float64
}

// ParseDeepLink accepts "start,end", "t=start,end" and "#t=start,end", where
// both values are seconds. The end may be omitted.
func ParseDeepLink(raw string) (DeepLink, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "#")
	value = strings.TrimPrefix(value, "t=")
	if value == "" {
		return DeepLink{}, fmt.Errorf("%w: empty", ErrInvalidDeepLink)
	}

	startText, endText, hasEnd := strings.Cut(value, ",")
	start, err := parseSeconds(startText)
	if err != nil {
		return DeepLink{}, fmt.Errorf("%w: start %q: %v", ErrInvalidDeepLink, startText, err)
	}
	link := DeepLink{Start: start, End: math.Inf(1)}
	if hasEnd && strings.TrimSpace(endText) != "" {
		end, err := parseSeconds(endText)
		if err != nil {
			return DeepLink{}, fmt.Errorf("%w: end %q: %v", ErrInvalidDeepLink, endText, err)
		}
		link.End = end
	}
	if link.End <= link.Start {
		return DeepLink{}, fmt.Errorf("%w: end %g is not after start %g", ErrInvalidDeepLink, link.End, link.Start)
	}
	return link, nil
}

func parseSeconds(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, errors.New("out of range")
	}
	return v, nil
}

// String formats the link the way ParseDeepLink reads it.
func (l DeepLink) String() string {
	start := strconv.FormatFloat(l.Start, 'f', -1, 64)
	if math.IsInf(l.End, 1) {
		return "t=" + start
	}
	return "t=" + start + "," + strconv.FormatFloat(l.End, 'f', -1, 64)
}

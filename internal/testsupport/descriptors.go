package testsupport

import (
	"strings"

	"timedtext/internal/descriptor"
)

// Segment builds a segment descriptor covering native [start, end).
func Segment(id, media string, start, end float64, children ...descriptor.Child) descriptor.Segment {
	return descriptor.Segment{
		ID:       id,
		Media:    media,
		Range:    descriptor.Seconds(start, end-start),
		Children: children,
	}
}

// Child builds a child descriptor covering native [start, end) whose words
// are spread evenly across the range. The display text is the words joined
// by single spaces.
func Child(id string, start, end float64, text string) descriptor.Child {
	words := strings.Fields(text)
	child := descriptor.Child{
		ID:    id,
		Text:  strings.Join(words, " "),
		Range: descriptor.Seconds(start, end-start),
	}
	if len(words) == 0 {
		return child
	}
	step := (end - start) / float64(len(words))
	for i, w := range words {
		child.Tokens = append(child.Tokens, descriptor.Token{
			Text:  w,
			Range: descriptor.Seconds(start+float64(i)*step, step),
		})
	}
	return child
}

// Words returns n space-separated filler words of the given length.
func Words(n, length int) string {
	word := strings.Repeat("x", max(length, 1))
	out := make([]string, n)
	for i := range out {
		out[i] = word
	}
	return strings.Join(out, " ")
}

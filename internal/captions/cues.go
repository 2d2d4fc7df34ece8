package captions

import (
	"strings"

	"timedtext/internal/timeline"
)

// Assemble turns swept tokens into cues. Groups keep first-seen order. When a
// fallback break (Pilcrow0) sits after the group's chosen break, the words
// past the chosen break are glued onto the following group.
func (s *Segmenter) Assemble(tokens []*timeline.TimedText) []timeline.Cue {
	groups := collectGroups(tokens)

	var parts [][]*timeline.TimedText
	for _, g := range groups {
		p := lastIndex(g, func(t *timeline.TimedText) bool { return t.Pilcrow })
		z := lastIndex(g, func(t *timeline.TimedText) bool { return t.Pilcrow0 })
		if p >= 0 && z > p {
			head, tail := g[:p+1], g[p+1:]
			tail[len(tail)-1].Glue = true
			parts = append(parts, head, tail)
			continue
		}
		parts = append(parts, g)
	}

	var merged [][]*timeline.TimedText
	var carry []*timeline.TimedText
	for i, part := range parts {
		if len(carry) > 0 {
			joined := make([]*timeline.TimedText, 0, len(carry)+len(part))
			part = append(append(joined, carry...), part...)
			carry = nil
		}
		if part[len(part)-1].Glue && i < len(parts)-1 {
			carry = part
			continue
		}
		merged = append(merged, part)
	}

	cues := make([]timeline.Cue, 0, len(merged))
	for _, group := range merged {
		cue := timeline.Cue{
			Start:  group[0].MarkedRange.Start,
			End:    group[len(group)-1].End(),
			Tokens: group,
		}
		if n := len(cues); n > 0 && cue.Start < cues[n-1].End {
			cue.Start = cues[n-1].End
		}
		if cue.End < cue.Start {
			cue.End = cue.Start
		}
		cue.Text = s.render(group, cue.Start, cue.End)
		cues = append(cues, cue)
	}
	return cues
}

func collectGroups(tokens []*timeline.TimedText) [][]*timeline.TimedText {
	index := make(map[string]int)
	var groups [][]*timeline.TimedText
	for _, tok := range tokens {
		i, ok := index[tok.CaptionGroup]
		if !ok {
			i = len(groups)
			index[tok.CaptionGroup] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], tok)
	}
	return groups
}

func lastIndex(group []*timeline.TimedText, pred func(*timeline.TimedText) bool) int {
	for i := len(group) - 1; i >= 0; i-- {
		if pred(group[i]) {
			return i
		}
	}
	return -1
}

// render joins the group's words. Karaoke timestamps are held inside
// [start, end] and never move backwards.
func (s *Segmenter) render(group []*timeline.TimedText, start, end float64) string {
	var b strings.Builder
	at := start
	for i, tok := range group {
		word := strings.TrimSpace(tok.Text)
		if word == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if s.opts.Karaoke && i > 0 {
			b.WriteByte('<')
			at = min(max(tok.MarkedRange.Start, at), end)
			b.WriteString(FormatTimestamp(at))
			b.WriteByte('>')
		}
		b.WriteString(word)
	}
	return b.String()
}
